package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
)

type PostgresOrderRepo struct {
	Pool *pgxpool.Pool
}

func NewPostgresOrderRepo(pool *pgxpool.Pool) *PostgresOrderRepo {
	return &PostgresOrderRepo{Pool: pool}
}

const orderColumns = `id, customer_id, uploader_id, items, shipping_address, payment_method,
  items_total::text, shipping_total::text, tax_total::text, grand_total::text,
  is_paid, paid_at, payment_ref, is_delivered, delivered_at, created_at`

func (r *PostgresOrderRepo) Create(ctx context.Context, o domain.Order) error {
	if len(o.Items) == 0 {
		return errors.Wrap(domain.ErrValidation, "no order items")
	}
	for _, it := range o.Items {
		if it.ProductID == "" {
			return errors.Wrap(domain.ErrValidation, "order item without product reference")
		}
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal items")
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}
	_, err = r.Pool.Exec(ctx, `INSERT INTO orders(id, customer_id, uploader_id, items, shipping_address, payment_method,
        items_total, shipping_total, tax_total, grand_total, created_at)
        VALUES($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11)`,
		o.ID, o.CustomerID, o.UploaderID, items, addr, o.PaymentMethod,
		o.Totals.Items.StringFixed(2), o.Totals.Shipping.StringFixed(2),
		o.Totals.Tax.StringFixed(2), o.Totals.Grand.StringFixed(2), o.CreatedAt)
	if isUniqueViolation(err) {
		return errors.Errorf("order %s already exists", o.ID)
	}
	return errors.Wrap(err, "insert order")
}

func (r *PostgresOrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return o, err
}

// List фильтр превращается в WHERE, область видимости не применяется после выборки.
func (r *PostgresOrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.UploaderID != "" {
		args = append(args, f.UploaderID)
		conds = append(conds, fmt.Sprintf("uploader_id = $%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at, id`

	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()
	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "list orders")
}

// SetPaid transitioned=true только у вызова, чей UPDATE изменил строку.
func (r *PostgresOrderRepo) SetPaid(ctx context.Context, id string, at time.Time, paymentRef string) (domain.Order, bool, error) {
	row := r.Pool.QueryRow(ctx, `UPDATE orders SET is_paid = true, paid_at = $2, payment_ref = $3
        WHERE id = $1 AND NOT is_paid RETURNING `+orderColumns, id, at, paymentRef)
	o, err := scanOrder(row)
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	if current.PaymentRef == paymentRef {
		return current, false, nil
	}
	return domain.Order{}, false, errors.Wrapf(domain.ErrInvalidState, "order %s is already paid", id)
}

func (r *PostgresOrderRepo) SetDelivered(ctx context.Context, id string, at time.Time) (domain.Order, error) {
	row := r.Pool.QueryRow(ctx, `UPDATE orders SET is_delivered = true, delivered_at = $2
        WHERE id = $1 AND is_paid AND NOT is_delivered RETURNING `+orderColumns, id, at)
	o, err := scanOrder(row)
	if !errors.Is(err, pgx.ErrNoRows) {
		return o, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !current.IsPaid() {
		return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is not paid", id)
	}
	return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is already delivered", id)
}

func (r *PostgresOrderRepo) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n)
	return n, errors.Wrap(err, "count orders")
}

func (r *PostgresOrderRepo) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	if err := r.Pool.QueryRow(ctx, `SELECT COALESCE(sum(grand_total), 0)::text FROM orders`).Scan(&raw); err != nil {
		return decimal.Zero, errors.Wrap(err, "total sales")
	}
	return decimal.NewFromString(raw)
}

func (r *PostgresOrderRepo) SalesByDay(ctx context.Context) ([]domain.DailySales, error) {
	rows, err := r.Pool.Query(ctx, `SELECT to_char(paid_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, sum(grand_total)::text
        FROM orders WHERE is_paid AND paid_at IS NOT NULL GROUP BY day ORDER BY day`)
	if err != nil {
		return nil, errors.Wrap(err, "sales by day")
	}
	defer rows.Close()
	out := []domain.DailySales{}
	for rows.Next() {
		var day, total string
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, errors.Wrapf(err, "sales total for %s", day)
		}
		out = append(out, domain.DailySales{Date: day, TotalSales: d})
	}
	return out, errors.Wrap(rows.Err(), "sales by day")
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                           domain.Order
		items, addr                 []byte
		itemsT, shipT, taxT, grandT string
		isPaid, isDelivered         bool
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.UploaderID, &items, &addr, &o.PaymentMethod,
		&itemsT, &shipT, &taxT, &grandT,
		&isPaid, &o.PaidAt, &o.PaymentRef, &isDelivered, &o.DeliveredAt, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, errors.Wrapf(err, "order %s items", o.ID)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return domain.Order{}, errors.Wrapf(err, "order %s shipping address", o.ID)
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&o.Totals.Items, itemsT},
		{&o.Totals.Shipping, shipT},
		{&o.Totals.Tax, taxT},
		{&o.Totals.Grand, grandT},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Order{}, errors.Wrapf(err, "order %s totals", o.ID)
		}
		*f.dst = v
	}
	o.Payment = domain.Unpaid
	if isPaid {
		o.Payment = domain.Paid
	}
	o.Delivery = domain.Undelivered
	if isDelivered {
		o.Delivery = domain.Delivered
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ domain.OrderStore  = (*PostgresOrderRepo)(nil)
	_ domain.ReportStore = (*PostgresOrderRepo)(nil)
)
