package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStore порт персистентности заказов.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы, подходящие под фильтр; пустой фильтр означает все заказы.
	List(ctx context.Context, f OrderFilter) ([]Order, error)
	// SetPaid атомарно переводит заказ в оплаченное состояние. Повтор с той же
	// ссылкой на платёж возвращает заказ без изменений и transitioned=false.
	SetPaid(ctx context.Context, id string, at time.Time, paymentRef string) (o Order, transitioned bool, err error)
	// SetDelivered атомарно отмечает доставку оплаченного заказа.
	SetDelivered(ctx context.Context, id string, at time.Time) (Order, error)
}

// ReportStore агрегаты для отчётов администратора.
type ReportStore interface {
	CountOrders(ctx context.Context) (int64, error)
	TotalSales(ctx context.Context) (decimal.Decimal, error)
	SalesByDay(ctx context.Context) ([]DailySales, error)
}

// Catalog внешний сервис каталога. Если какой-то идентификатор не найден,
// возвращает *ProductNotFoundError со списком недостающих.
type Catalog interface {
	ResolveProducts(ctx context.Context, ids []string) ([]Product, error)
}

type CheckoutRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway внешний платёжный шлюз с хостовой страницей оплаты.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	// GetCheckoutSession состояние сессии по данным самого шлюза. Неизвестная
	// шлюзу сессия возвращает ErrValidation.
	GetCheckoutSession(ctx context.Context, sessionID string) (PaymentConfirmation, error)
}

// PaymentConfirmation подтверждение оплаты. AmountTotal в минимальных единицах
// валюты (центах). Verified выставляет только адаптер, получивший данные от
// шлюза по доверенному каналу (подписанный вебхук, запрос к API шлюза);
// из JSON сообщения оно не читается.
type PaymentConfirmation struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
	Paid        bool   `json:"paid"`
	Verified    bool   `json:"-"`
}

// EventPublisher порт публикации доменных событий.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// IdempotencyStore резервирует ключ идемпотентности за заказом до его создания.
type IdempotencyStore interface {
	// Reserve атомарно закрепляет ключ за orderID, если ключ свободен.
	// Иначе reserved=false и возвращается заказ, за которым ключ уже закреплён.
	Reserve(ctx context.Context, key, orderID string) (owner string, reserved bool, err error)
	// Release освобождает ключ, если он всё ещё закреплён за orderID.
	Release(ctx context.Context, key, orderID string) error
}

// MessageSubscriber порт подписчика на входящие сообщения.
type MessageSubscriber interface {
	// Subscribe регистрирует обработчик; ack/повторные доставки реализует адаптер.
	Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error
}
