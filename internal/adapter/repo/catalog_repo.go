package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
)

// Catalog читает актуальные цены и владельцев товаров из таблицы каталога.
type Catalog struct {
	Pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{Pool: pool}
}

func (c *Catalog) ResolveProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	rows, err := c.Pool.Query(ctx, `SELECT id, name, image, price::text, uploaded_by FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	defer rows.Close()

	found := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Image, &price, &p.UploaderID); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "product %s price", p.ID)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}

	out := make([]domain.Product, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, &domain.ProductNotFoundError{IDs: missing}
	}
	return out, nil
}

var _ domain.Catalog = (*Catalog)(nil)
