// Package payment координирует оплату заказа через внешний платёжный шлюз.
//
// Сначала открывается сессия оплаты у шлюза, и покупатель уходит по её URL.
// Заказ становится оплаченным только после проверенного подтверждения от шлюза,
// поэтому сбой или таймаут шлюза оставляют заказ неоплаченным.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
)

// Config параметры шлюза, передаются явно при создании координатора.
type Config struct {
	FrontendURL string
	Currency    string
	Timeout     time.Duration
}

type Coordinator struct {
	gateway domain.PaymentGateway
	store   domain.OrderStore
	cfg     Config
	log     logrus.FieldLogger
	now     func() time.Time
	calls   *prometheus.CounterVec
}

type Option func(*Coordinator)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithGatewayCalls считает обращения к шлюзу по исходу (ok, error, timeout).
func WithGatewayCalls(v *prometheus.CounterVec) Option {
	return func(c *Coordinator) { c.calls = v }
}

func NewCoordinator(gw domain.PaymentGateway, store domain.OrderStore, cfg Config, log logrus.FieldLogger, opts ...Option) *Coordinator {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Coordinator{
		gateway: gw,
		store:   store,
		cfg:     cfg,
		log:     log.WithField("component", "payment"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin открывает сессию оплаты для неоплаченного заказа. Состояние заказа не меняется.
func (c *Coordinator) Begin(ctx context.Context, o domain.Order) (domain.CheckoutSession, error) {
	if o.IsPaid() {
		return domain.CheckoutSession{}, errors.Wrapf(domain.ErrInvalidState, "order %s is already paid", o.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	base := strings.TrimRight(c.cfg.FrontendURL, "/")
	session, err := c.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		OrderID:     o.ID,
		Amount:      o.Totals.Grand,
		Currency:    c.cfg.Currency,
		Description: "Order #" + o.ID,
		SuccessURL:  base + "/order/" + o.ID,
		CancelURL:   base,
	})
	if err == nil && session.URL == "" {
		err = errors.New("gateway returned a session without redirect url")
	}
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.observe(outcome)
		c.log.WithError(err).WithFields(logrus.Fields{"order_id": o.ID, "outcome": outcome}).Warn("checkout session failed")
		if errors.Is(err, domain.ErrPaymentGateway) {
			return domain.CheckoutSession{}, err
		}
		return domain.CheckoutSession{}, errors.Wrapf(domain.ErrPaymentGateway, "create checkout session: %v", err)
	}

	c.observe("ok")
	c.log.WithFields(logrus.Fields{"order_id": o.ID, "session_id": session.ID}).Info("checkout session opened")
	return session, nil
}

// Confirm применяет подтверждение оплаты. Неподтверждённое шлюзом сообщение
// сначала сверяется с сессией через API шлюза, и дальше используются данные
// шлюза. Сумма и валюта должны совпасть с заказом. Повтор подтверждения той же
// сессии ничего не меняет; changed сообщает, перевёл ли именно этот вызов заказ
// в оплаченное состояние.
func (c *Coordinator) Confirm(ctx context.Context, pc domain.PaymentConfirmation) (o domain.Order, changed bool, err error) {
	if pc.OrderID == "" || pc.SessionID == "" {
		return domain.Order{}, false, errors.Wrap(domain.ErrValidation, "confirmation without order or session id")
	}
	log := c.log.WithFields(logrus.Fields{"order_id": pc.OrderID, "session_id": pc.SessionID})
	if !pc.Verified {
		pc, err = c.verify(ctx, pc)
		if err != nil {
			log.WithError(err).Warn("confirmation not verified by gateway")
			return domain.Order{}, false, err
		}
	}
	if !pc.Paid {
		log.Info("ignoring unpaid checkout session")
		return domain.Order{}, false, errors.Wrapf(domain.ErrInvalidState, "session %s is not paid", pc.SessionID)
	}

	o, err = c.store.Get(ctx, pc.OrderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if !strings.EqualFold(pc.Currency, c.cfg.Currency) {
		log.WithField("currency", pc.Currency).Warn("confirmation currency mismatch")
		return domain.Order{}, false, errors.Wrapf(domain.ErrValidation, "currency %q does not match %q", pc.Currency, c.cfg.Currency)
	}
	if want := MinorUnits(o.Totals.Grand); want != pc.AmountTotal {
		log.WithFields(logrus.Fields{"want": want, "got": pc.AmountTotal}).Warn("confirmation amount mismatch")
		return domain.Order{}, false, errors.Wrapf(domain.ErrValidation, "amount %d does not match order total %d", pc.AmountTotal, want)
	}
	if o.IsPaid() {
		if o.PaymentRef == pc.SessionID {
			return o, false, nil
		}
		log.WithField("payment_ref", o.PaymentRef).Warn("order already paid by another session")
		return domain.Order{}, false, errors.Wrapf(domain.ErrInvalidState, "order %s already paid by %s", o.ID, o.PaymentRef)
	}

	o, changed, err = c.store.SetPaid(ctx, pc.OrderID, c.now().UTC().Truncate(time.Microsecond), pc.SessionID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if changed {
		log.Info("order paid")
	}
	return o, changed, nil
}

// verify запрашивает сессию у шлюза и проверяет, что она выписана на этот заказ.
func (c *Coordinator) verify(ctx context.Context, pc domain.PaymentConfirmation) (domain.PaymentConfirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	got, err := c.gateway.GetCheckoutSession(ctx, pc.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrPaymentGateway) {
			return domain.PaymentConfirmation{}, err
		}
		return domain.PaymentConfirmation{}, errors.Wrapf(domain.ErrPaymentGateway, "get checkout session: %v", err)
	}
	if got.SessionID != pc.SessionID || got.OrderID != pc.OrderID {
		return domain.PaymentConfirmation{}, errors.Wrapf(domain.ErrValidation, "session %s belongs to order %q", pc.SessionID, got.OrderID)
	}
	got.Verified = true
	return got, nil
}

func (c *Coordinator) observe(outcome string) {
	if c.calls != nil {
		c.calls.WithLabelValues(outcome).Inc()
	}
}
