package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/scope"
)

// Reports отчёты администратора по заказам и выручке.
type Reports struct {
	Store domain.ReportStore
}

func (uc Reports) CountOrders(ctx context.Context, actor domain.Actor) (int64, error) {
	if err := scope.CanReport(actor); err != nil {
		return 0, err
	}
	return uc.Store.CountOrders(ctx)
}

// TotalSales сумма grandTotal по всем заказам, включая неоплаченные.
func (uc Reports) TotalSales(ctx context.Context, actor domain.Actor) (decimal.Decimal, error) {
	if err := scope.CanReport(actor); err != nil {
		return decimal.Zero, err
	}
	return uc.Store.TotalSales(ctx)
}

// SalesByDay выручка оплаченных заказов по дням оплаты.
func (uc Reports) SalesByDay(ctx context.Context, actor domain.Actor) ([]domain.DailySales, error) {
	if err := scope.CanReport(actor); err != nil {
		return nil, err
	}
	return uc.Store.SalesByDay(ctx)
}
