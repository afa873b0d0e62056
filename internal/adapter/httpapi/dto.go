package httpapi

import (
	"time"

	"github.com/example/storefront-order-service/internal/domain"
)

type orderItemJSON struct {
	Product string `json:"product"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Price   string `json:"price"`
	Qty     int    `json:"qty"`
}

// orderJSON суммы отдаются строками с двумя знаками после запятой.
type orderJSON struct {
	ID              string                 `json:"_id"`
	User            string                 `json:"user"`
	UploadedBy      string                 `json:"uploadedBy"`
	OrderItems      []orderItemJSON        `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ItemsPrice      string                 `json:"itemsPrice"`
	ShippingPrice   string                 `json:"shippingPrice"`
	TaxPrice        string                 `json:"taxPrice"`
	TotalPrice      string                 `json:"totalPrice"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          *time.Time             `json:"paidAt,omitempty"`
	PaymentRef      string                 `json:"paymentRef,omitempty"`
	IsDelivered     bool                   `json:"isDelivered"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

type dailySalesJSON struct {
	Date       string `json:"date"`
	TotalSales string `json:"totalSales"`
}

func toOrderJSON(o domain.Order) orderJSON {
	items := make([]orderItemJSON, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemJSON{
			Product: it.ProductID,
			Name:    it.Name,
			Image:   it.Image,
			Price:   it.UnitPrice.StringFixed(2),
			Qty:     it.Quantity,
		})
	}
	return orderJSON{
		ID:              o.ID,
		User:            o.CustomerID,
		UploadedBy:      o.UploaderID,
		OrderItems:      items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ItemsPrice:      o.Totals.Items.StringFixed(2),
		ShippingPrice:   o.Totals.Shipping.StringFixed(2),
		TaxPrice:        o.Totals.Tax.StringFixed(2),
		TotalPrice:      o.Totals.Grand.StringFixed(2),
		IsPaid:          o.IsPaid(),
		PaidAt:          o.PaidAt,
		PaymentRef:      o.PaymentRef,
		IsDelivered:     o.IsDelivered(),
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
}
