// Package pricing считает итоговые суммы заказа по позициям корзины.
package pricing

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
)

var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShipping          = decimal.NewFromInt(10)
	taxRate               = decimal.RequireFromString("0.15")
)

// Line цена за единицу и количество одной позиции.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Compute возвращает суммы заказа. Доставка бесплатна, если сумма позиций
// больше 100, иначе 10; порог сравнивается с суммой до округления. Налог 15%
// от суммы позиций. Округление до центов половиной вверх.
func Compute(lines []Line) (domain.Totals, error) {
	items := decimal.Zero
	for i, l := range lines {
		if l.UnitPrice.IsNegative() {
			return domain.Totals{}, errors.Wrapf(domain.ErrValidation, "line %d: negative unit price %s", i, l.UnitPrice)
		}
		if l.Quantity <= 0 {
			return domain.Totals{}, errors.Wrapf(domain.ErrValidation, "line %d: quantity must be positive, got %d", i, l.Quantity)
		}
		items = items.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	shipping := flatShipping
	if items.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}
	items = items.Round(2)
	tax := items.Mul(taxRate).Round(2)

	return domain.Totals{
		Items:    items,
		Shipping: shipping,
		Tax:      tax,
		Grand:    items.Add(shipping).Add(tax).Round(2),
	}, nil
}
