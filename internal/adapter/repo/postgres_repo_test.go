package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-order-service/internal/domain"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	require.NoError(t, Migrate(url))

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), "DELETE FROM orders")
	require.NoError(t, err)
	_, err = pool.Exec(context.Background(), "DELETE FROM products")
	require.NoError(t, err)
	return pool
}

func testOrder(customer, uploader string, created time.Time) domain.Order {
	return domain.Order{
		ID:         uuid.Must(uuid.NewV7()).String(),
		CustomerID: customer,
		UploaderID: uploader,
		Items: []domain.LineItem{
			{ProductID: "p1", Name: "Mouse", Image: "/img/m.png", UnitPrice: decimal.RequireFromString("30.00"), Quantity: 2},
		},
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod:   "PayPal",
		Totals: domain.Totals{
			Items:    decimal.RequireFromString("60.00"),
			Shipping: decimal.RequireFromString("10.00"),
			Tax:      decimal.RequireFromString("9.00"),
			Grand:    decimal.RequireFromString("79.00"),
		},
		Payment:   domain.Unpaid,
		Delivery:  domain.Undelivered,
		CreatedAt: created,
	}
}

func TestPostgresOrderRepo(t *testing.T) {
	pool := setupTestDB(t)
	r := NewPostgresOrderRepo(pool)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	o := testOrder("c1", "s1", created)
	require.NoError(t, r.Create(ctx, o))

	got, err := r.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items[0].Name, got.Items[0].Name)
	assert.True(t, got.Items[0].UnitPrice.Equal(o.Items[0].UnitPrice))
	assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, "79.00", got.Totals.Grand.StringFixed(2))
	assert.True(t, got.CreatedAt.Equal(created))
	assert.False(t, got.IsPaid())

	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.SetDelivered(ctx, o.ID, created)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	paid, transitioned, err := r.SetPaid(ctx, o.ID, created.Add(time.Hour), "cs_1")
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.True(t, paid.IsPaid())
	assert.Equal(t, "cs_1", paid.PaymentRef)

	again, transitioned, err := r.SetPaid(ctx, o.ID, created.Add(2*time.Hour), "cs_1")
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.True(t, again.PaidAt.Equal(*paid.PaidAt))

	_, _, err = r.SetPaid(ctx, o.ID, created, "cs_2")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	delivered, err := r.SetDelivered(ctx, o.ID, created.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered())

	_, err = r.SetDelivered(ctx, o.ID, created.Add(4*time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, _, err = r.SetPaid(ctx, "missing", created, "cs")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresOrderRepoListAndReports(t *testing.T) {
	pool := setupTestDB(t)
	r := NewPostgresOrderRepo(pool)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	o1 := testOrder("c1", "s1", created)
	o2 := testOrder("c2", "s1", created.Add(time.Minute))
	o3 := testOrder("c1", "s2", created.Add(2*time.Minute))
	for _, o := range []domain.Order{o1, o2, o3} {
		require.NoError(t, r.Create(ctx, o))
	}

	bySeller, err := r.List(ctx, domain.OrderFilter{UploaderID: "s1"})
	require.NoError(t, err)
	require.Len(t, bySeller, 2)
	assert.Equal(t, o1.ID, bySeller[0].ID)
	assert.Equal(t, o2.ID, bySeller[1].ID)

	both, err := r.List(ctx, domain.OrderFilter{CustomerID: "c1", UploaderID: "s2"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, o3.ID, both[0].ID)

	_, _, err = r.SetPaid(ctx, o1.ID, created, "a")
	require.NoError(t, err)
	_, _, err = r.SetPaid(ctx, o2.ID, created.AddDate(0, 0, 1), "b")
	require.NoError(t, err)

	n, err := r.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	total, err := r.TotalSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, "237.00", total.StringFixed(2))

	days, err := r.SalesByDay(ctx)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-06-01", days[0].Date)
	assert.Equal(t, "2024-06-02", days[1].Date)
	assert.Equal(t, "79.00", days[1].TotalSales.StringFixed(2))
}

func TestCatalogResolveProducts(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO products(id, name, image, price, uploaded_by) VALUES
        ('p1', 'Mouse', '/img/m.png', 30.00, 's1'), ('p2', 'Keyboard', '', 40.50, 's2')`)
	require.NoError(t, err)

	c := NewCatalog(pool)
	got, err := c.ResolveProducts(ctx, []string{"p2", "p1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, "40.50", got[0].Price.StringFixed(2))
	assert.Equal(t, "s1", got[1].UploaderID)

	_, err = c.ResolveProducts(ctx, []string{"p1", "ghost"})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}
