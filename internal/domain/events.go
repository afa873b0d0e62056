package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type Event interface {
	Type() string
	Key() string
}

type OrderPlaced struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	UploaderID string `json:"uploader_id"`
	GrandTotal string `json:"grand_total"`
}

func (e OrderPlaced) Type() string { return "OrderPlaced" }
func (e OrderPlaced) Key() string  { return e.OrderID }

type OrderPaid struct {
	OrderID    string    `json:"order_id"`
	PaymentRef string    `json:"payment_ref"`
	PaidAt     time.Time `json:"paid_at"`
}

func (e OrderPaid) Type() string { return "OrderPaid" }
func (e OrderPaid) Key() string  { return e.OrderID }

type OrderDelivered struct {
	OrderID     string    `json:"order_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (e OrderDelivered) Type() string { return "OrderDelivered" }
func (e OrderDelivered) Key() string  { return e.OrderID }

// NopPublisher отбрасывает события; используется, когда брокер не настроен.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ Event) error { return nil }

// Envelope формат доменного события в брокере сообщений.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(e Event, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s", e.Type())
	}
	return Envelope{Type: e.Type(), Key: e.Key(), OccurredAt: at.UTC(), Payload: payload}, nil
}
