package memory

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
)

// Catalog каталог в памяти для локального запуска и тестов.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

type productJSON struct {
	ID         string          `json:"_id"`
	Name       string          `json:"name"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price"`
	UploadedBy string          `json:"uploadedBy"`
}

// LoadCatalog читает каталог из JSON-массива товаров в формате каталог-сервиса.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var items []productJSON
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	c := NewCatalog()
	for i, it := range items {
		if it.ID == "" {
			return nil, errors.Errorf("catalog entry %d has no _id", i)
		}
		if it.Price.IsNegative() {
			return nil, errors.Errorf("catalog entry %s has negative price", it.ID)
		}
		c.products[it.ID] = domain.Product{ID: it.ID, Name: it.Name, Image: it.Image, Price: it.Price, UploaderID: it.UploadedBy}
	}
	return c, nil
}

func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

func (c *Catalog) ResolveProducts(_ context.Context, ids []string) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := c.products[id]
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
