package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem снимок позиции каталога на момент оформления заказа.
type LineItem struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
}

// ShippingAddress хранится в том виде, в каком его передал покупатель.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Totals итоговые суммы заказа, две цифры после запятой.
type Totals struct {
	Items    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Grand    decimal.Decimal
}

type PaymentState string

const (
	Unpaid PaymentState = "unpaid"
	Paid   PaymentState = "paid"
)

type DeliveryState string

const (
	Undelivered DeliveryState = "undelivered"
	Delivered   DeliveryState = "delivered"
)

// Order доменная сущность заказа. Позиции, суммы, покупатель и продавец
// неизменны после создания; меняются только состояния оплаты и доставки.
type Order struct {
	ID              string
	CustomerID      string
	UploaderID      string
	Items           []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Totals          Totals

	Payment    PaymentState
	PaidAt     *time.Time
	PaymentRef string

	Delivery    DeliveryState
	DeliveredAt *time.Time

	CreatedAt time.Time
}

func (o Order) IsPaid() bool { return o.Payment == Paid }

func (o Order) IsDelivered() bool { return o.Delivery == Delivered }

// Clone возвращает копию, не разделяющую память с исходным заказом.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return c
}

// OrderFilter условие выборки заказов. Пустое поле не ограничивает выборку.
type OrderFilter struct {
	CustomerID string
	UploaderID string
}

func (f OrderFilter) Match(o Order) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.UploaderID != "" && o.UploaderID != f.UploaderID {
		return false
	}
	return true
}

// Product позиция каталога, как её отдаёт внешний сервис каталога.
type Product struct {
	ID         string
	Name       string
	Image      string
	Price      decimal.Decimal
	UploaderID string
}

// DailySales выручка по оплаченным заказам за календарный день (UTC).
type DailySales struct {
	Date       string
	TotalSales decimal.Decimal
}
