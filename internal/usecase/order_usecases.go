package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/payment"
	"github.com/example/storefront-order-service/internal/pricing"
	"github.com/example/storefront-order-service/internal/scope"
)

// CartLine позиция корзины: клиент передаёт только товар и количество,
// цена всегда берётся из каталога.
type CartLine struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	Items           []CartLine
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	IdempotencyKey  string
}

// PlaceOrder оформить заказ по корзине покупателя.
type PlaceOrder struct {
	Catalog     domain.Catalog
	Store       domain.OrderStore
	Events      domain.EventPublisher
	Idempotency domain.IdempotencyStore
	Log         logrus.FieldLogger
	Now         func() time.Time
}

// Execute возвращает созданный заказ. replayed=true, если заказ с тем же
// ключом идемпотентности уже был создан раньше и возвращён повторно.
func (uc PlaceOrder) Execute(ctx context.Context, actor domain.Actor, in PlaceOrderInput) (o domain.Order, replayed bool, err error) {
	if actor.ID == "" {
		return domain.Order{}, false, domain.ErrUnauthenticated
	}
	if len(in.Items) == 0 {
		return domain.Order{}, false, errors.Wrap(domain.ErrValidation, "no order items")
	}
	ids := make([]string, 0, len(in.Items))
	seen := make(map[string]bool, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" {
			return domain.Order{}, false, errors.Wrapf(domain.ErrValidation, "item %d has no product id", i)
		}
		if it.Quantity <= 0 {
			return domain.Order{}, false, errors.Wrapf(domain.ErrValidation, "item %d: quantity must be positive", i)
		}
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Order{}, false, errors.Wrap(err, "order id")
	}
	log := logger(uc.Log).WithFields(logrus.Fields{"order_id": id.String(), "actor_id": actor.ID})

	// Ключ закрепляется за заказом до его создания: из параллельных повторов
	// с одним ключом заказ создаёт только один.
	idemKey := ""
	if in.IdempotencyKey != "" && uc.Idempotency != nil {
		idemKey = actor.ID + ":" + in.IdempotencyKey
		owner, reserved, err := uc.Idempotency.Reserve(ctx, idemKey, id.String())
		if err != nil {
			return domain.Order{}, false, errors.Wrap(err, "reserve idempotency key")
		}
		if !reserved {
			existing, err := uc.Store.Get(ctx, owner)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Order{}, false, errors.Wrapf(domain.ErrInvalidState, "order for idempotency key %q is still being placed", in.IdempotencyKey)
			}
			if err != nil {
				return domain.Order{}, false, errors.Wrapf(err, "idempotent replay of %s", owner)
			}
			return existing, true, nil
		}
	}

	o, err = uc.create(ctx, actor, in, ids, id.String())
	if err != nil {
		if idemKey != "" {
			if rerr := uc.Idempotency.Release(ctx, idemKey, id.String()); rerr != nil {
				log.WithError(rerr).Warn("release idempotency key")
			}
		}
		return domain.Order{}, false, err
	}

	log.WithField("grand_total", o.Totals.Grand.StringFixed(2)).Info("order placed")
	publish(ctx, uc.Events, log, domain.OrderPlaced{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		UploaderID: o.UploaderID,
		GrandTotal: o.Totals.Grand.StringFixed(2),
	})
	return o, false, nil
}

// create собирает снимок позиций по каталогу, считает суммы и сохраняет заказ.
func (uc PlaceOrder) create(ctx context.Context, actor domain.Actor, in PlaceOrderInput, ids []string, id string) (domain.Order, error) {
	products, err := uc.Catalog.ResolveProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	lines := make([]pricing.Line, 0, len(in.Items))
	var missing []string
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		items = append(items, domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}
	if len(missing) > 0 {
		return domain.Order{}, &domain.ProductNotFoundError{IDs: missing}
	}

	totals, err := pricing.Compute(lines)
	if err != nil {
		return domain.Order{}, err
	}

	o := domain.Order{
		ID:         id,
		CustomerID: actor.ID,
		// Продавцом заказа считается владелец первой позиции, даже если в
		// корзине товары нескольких продавцов.
		UploaderID:      byID[in.Items[0].ProductID].UploaderID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Totals:          totals,
		Payment:         domain.Unpaid,
		Delivery:        domain.Undelivered,
		CreatedAt:       now(uc.Now).UTC().Truncate(time.Microsecond),
	}
	if err := uc.Store.Create(ctx, o); err != nil {
		return domain.Order{}, errors.Wrap(err, "store order")
	}
	return o, nil
}

// ListOrders заказы в области видимости пользователя.
type ListOrders struct {
	Store domain.OrderStore
}

func (uc ListOrders) Execute(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	f, err := scope.ListFilter(actor)
	if err != nil {
		return nil, err
	}
	return uc.Store.List(ctx, f)
}

// ListMyOrders заказы, оформленные самим пользователем.
type ListMyOrders struct {
	Store domain.OrderStore
}

func (uc ListMyOrders) Execute(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return uc.Store.List(ctx, scope.OwnFilter(actor))
}

// GetOrderByID получить заказ с проверкой прав на просмотр.
type GetOrderByID struct {
	Store domain.OrderStore
}

func (uc GetOrderByID) Execute(ctx context.Context, actor domain.Actor, id string) (domain.Order, error) {
	o, err := uc.Store.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := scope.CanView(actor, o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// PayOrder открыть сессию оплаты для своего неоплаченного заказа.
type PayOrder struct {
	Store    domain.OrderStore
	Payments *payment.Coordinator
}

func (uc PayOrder) Execute(ctx context.Context, actor domain.Actor, id string) (domain.CheckoutSession, error) {
	o, err := uc.Store.Get(ctx, id)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if err := scope.CanPay(actor, o); err != nil {
		return domain.CheckoutSession{}, err
	}
	return uc.Payments.Begin(ctx, o)
}

// ConfirmPayment применить подтверждение оплаты от шлюза.
type ConfirmPayment struct {
	Payments *payment.Coordinator
	Events   domain.EventPublisher
	Log      logrus.FieldLogger
}

func (uc ConfirmPayment) Execute(ctx context.Context, pc domain.PaymentConfirmation) (domain.Order, error) {
	o, changed, err := uc.Payments.Confirm(ctx, pc)
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		publish(ctx, uc.Events, logger(uc.Log).WithField("order_id", o.ID), domain.OrderPaid{
			OrderID:    o.ID,
			PaymentRef: o.PaymentRef,
			PaidAt:     *o.PaidAt,
		})
	}
	return o, nil
}

// MarkDelivered отметить доставку оплаченного заказа.
type MarkDelivered struct {
	Store  domain.OrderStore
	Events domain.EventPublisher
	Log    logrus.FieldLogger
	Now    func() time.Time
}

func (uc MarkDelivered) Execute(ctx context.Context, actor domain.Actor, id string) (domain.Order, error) {
	o, err := uc.Store.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := scope.CanDeliver(actor, o); err != nil {
		return domain.Order{}, err
	}
	if !o.IsPaid() {
		return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is not paid", id)
	}
	if o.IsDelivered() {
		return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is already delivered", id)
	}
	o, err = uc.Store.SetDelivered(ctx, id, now(uc.Now).UTC().Truncate(time.Microsecond))
	if err != nil {
		return domain.Order{}, err
	}
	log := logger(uc.Log).WithFields(logrus.Fields{"order_id": o.ID, "actor_id": actor.ID})
	log.Info("order delivered")
	publish(ctx, uc.Events, log, domain.OrderDelivered{OrderID: o.ID, DeliveredAt: *o.DeliveredAt})
	return o, nil
}

func now(f func() time.Time) time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

// publish ошибки брокера не откатывают уже сохранённое состояние заказа.
func publish(ctx context.Context, pub domain.EventPublisher, log logrus.FieldLogger, e domain.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		log.WithError(err).WithField("event", e.Type()).Error("publish event")
	}
}
