package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront-order-service/internal/adapter/memory"
	"github.com/example/storefront-order-service/internal/domain"
)

type fakeGateway struct {
	session domain.CheckoutSession
	err     error
	block   bool
	got     []domain.CheckoutRequest

	sessions map[string]domain.PaymentConfirmation
	getErr   error
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (domain.PaymentConfirmation, error) {
	if g.getErr != nil {
		return domain.PaymentConfirmation{}, g.getErr
	}
	pc, ok := g.sessions[id]
	if !ok {
		return domain.PaymentConfirmation{}, errors.Wrapf(domain.ErrValidation, "no such checkout session %s", id)
	}
	return pc, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	g.got = append(g.got, req)
	if g.block {
		<-ctx.Done()
		return domain.CheckoutSession{}, ctx.Err()
	}
	return g.session, g.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, gw *fakeGateway) (*Coordinator, *memory.OrderStore, *prometheus.CounterVec) {
	t.Helper()
	store := memory.NewOrderStore()
	require.NoError(t, store.Create(context.Background(), domain.Order{
		ID:         "o1",
		CustomerID: "c1",
		UploaderID: "s1",
		Items:      []domain.LineItem{{ProductID: "p1", UnitPrice: decimal.NewFromInt(30), Quantity: 2}},
		Totals:     domain.Totals{Grand: decimal.RequireFromString("79.00")},
		Payment:    domain.Unpaid,
		Delivery:   domain.Undelivered,
		CreatedAt:  fixedNow,
	}))
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_calls_total"}, []string{"outcome"})
	logger, _ := test.NewNullLogger()
	c := NewCoordinator(gw, store, Config{
		FrontendURL: "https://shop.example/",
		Currency:    "usd",
		Timeout:     50 * time.Millisecond,
	}, logger, WithClock(func() time.Time { return fixedNow }), WithGatewayCalls(calls))
	return c, store, calls
}

func TestBegin(t *testing.T) {
	ctx := context.Background()

	t.Run("opens session without touching order state", func(t *testing.T) {
		gw := &fakeGateway{session: domain.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}}
		c, store, calls := setup(t, gw)
		o, _ := store.Get(ctx, "o1")

		s, err := c.Begin(ctx, o)
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example/cs_1", s.URL)

		require.Len(t, gw.got, 1)
		req := gw.got[0]
		assert.Equal(t, "o1", req.OrderID)
		assert.Equal(t, "79.00", req.Amount.StringFixed(2))
		assert.Equal(t, "usd", req.Currency)
		assert.Equal(t, "Order #o1", req.Description)
		assert.Equal(t, "https://shop.example/order/o1", req.SuccessURL)
		assert.Equal(t, "https://shop.example", req.CancelURL)

		after, _ := store.Get(ctx, "o1")
		assert.False(t, after.IsPaid())
		assert.Equal(t, float64(1), testutil.ToFloat64(calls.WithLabelValues("ok")))
	})

	t.Run("gateway failure leaves order unpaid", func(t *testing.T) {
		gw := &fakeGateway{err: errors.New("card network down")}
		c, store, calls := setup(t, gw)
		o, _ := store.Get(ctx, "o1")

		_, err := c.Begin(ctx, o)
		require.ErrorIs(t, err, domain.ErrPaymentGateway)

		after, _ := store.Get(ctx, "o1")
		assert.False(t, after.IsPaid())
		assert.Equal(t, float64(1), testutil.ToFloat64(calls.WithLabelValues("error")))
	})

	t.Run("gateway timeout is a gateway error", func(t *testing.T) {
		gw := &fakeGateway{block: true}
		c, store, calls := setup(t, gw)
		o, _ := store.Get(ctx, "o1")

		_, err := c.Begin(ctx, o)
		require.ErrorIs(t, err, domain.ErrPaymentGateway)
		assert.Equal(t, float64(1), testutil.ToFloat64(calls.WithLabelValues("timeout")))

		after, _ := store.Get(ctx, "o1")
		assert.False(t, after.IsPaid())
	})

	t.Run("session without url is rejected", func(t *testing.T) {
		gw := &fakeGateway{session: domain.CheckoutSession{ID: "cs_1"}}
		c, store, _ := setup(t, gw)
		o, _ := store.Get(ctx, "o1")

		_, err := c.Begin(ctx, o)
		require.ErrorIs(t, err, domain.ErrPaymentGateway)
	})

	t.Run("paid order cannot be paid again", func(t *testing.T) {
		gw := &fakeGateway{session: domain.CheckoutSession{ID: "cs_1", URL: "u"}}
		c, store, _ := setup(t, gw)
		o, _, err := store.SetPaid(ctx, "o1", fixedNow, "cs_0")
		require.NoError(t, err)

		_, err = c.Begin(ctx, o)
		require.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Empty(t, gw.got)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	valid := domain.PaymentConfirmation{OrderID: "o1", SessionID: "cs_1", AmountTotal: 7900, Currency: "USD", Paid: true, Verified: true}

	t.Run("marks order paid with session reference", func(t *testing.T) {
		c, store, _ := setup(t, &fakeGateway{})

		o, changed, err := c.Confirm(ctx, valid)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, o.IsPaid())
		assert.Equal(t, "cs_1", o.PaymentRef)
		require.NotNil(t, o.PaidAt)
		assert.True(t, o.PaidAt.Equal(fixedNow))

		stored, _ := store.Get(ctx, "o1")
		assert.True(t, stored.IsPaid())
	})

	t.Run("repeat confirmation is a no-op", func(t *testing.T) {
		c, _, _ := setup(t, &fakeGateway{})
		_, _, err := c.Confirm(ctx, valid)
		require.NoError(t, err)

		o, changed, err := c.Confirm(ctx, valid)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "cs_1", o.PaymentRef)
	})

	t.Run("concurrent confirmations on a frozen clock change the order once", func(t *testing.T) {
		c, _, _ := setup(t, &fakeGateway{})

		var changes int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, changed, err := c.Confirm(ctx, valid); err == nil && changed {
					atomic.AddInt32(&changes, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), changes)
	})

	t.Run("different session on paid order", func(t *testing.T) {
		c, _, _ := setup(t, &fakeGateway{})
		_, _, err := c.Confirm(ctx, valid)
		require.NoError(t, err)

		other := valid
		other.SessionID = "cs_2"
		_, _, err = c.Confirm(ctx, other)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})

	tests := []struct {
		name   string
		mutate func(pc *domain.PaymentConfirmation)
		want   error
	}{
		{"unpaid session", func(pc *domain.PaymentConfirmation) { pc.Paid = false }, domain.ErrInvalidState},
		{"amount mismatch", func(pc *domain.PaymentConfirmation) { pc.AmountTotal = 100 }, domain.ErrValidation},
		{"currency mismatch", func(pc *domain.PaymentConfirmation) { pc.Currency = "eur" }, domain.ErrValidation},
		{"missing session", func(pc *domain.PaymentConfirmation) { pc.SessionID = "" }, domain.ErrValidation},
		{"unknown order", func(pc *domain.PaymentConfirmation) { pc.OrderID = "nope" }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, _ := setup(t, &fakeGateway{})
			pc := valid
			tt.mutate(&pc)

			_, changed, err := c.Confirm(ctx, pc)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, changed)

			o, _ := store.Get(ctx, "o1")
			assert.False(t, o.IsPaid())
		})
	}
}

func TestConfirmChecksUnverifiedSessionWithGateway(t *testing.T) {
	ctx := context.Background()
	msg := domain.PaymentConfirmation{OrderID: "o1", SessionID: "cs_1", AmountTotal: 7900, Currency: "usd", Paid: true}

	tests := []struct {
		name     string
		sessions map[string]domain.PaymentConfirmation
		getErr   error
		want     error
	}{
		{"unknown session", nil, nil, domain.ErrValidation},
		{
			"session of another order",
			map[string]domain.PaymentConfirmation{"cs_1": {OrderID: "o2", SessionID: "cs_1", AmountTotal: 7900, Currency: "usd", Paid: true}},
			nil, domain.ErrValidation,
		},
		{
			"gateway reports unpaid",
			map[string]domain.PaymentConfirmation{"cs_1": {OrderID: "o1", SessionID: "cs_1", AmountTotal: 7900, Currency: "usd"}},
			nil, domain.ErrInvalidState,
		},
		{
			"gateway amount differs from order",
			map[string]domain.PaymentConfirmation{"cs_1": {OrderID: "o1", SessionID: "cs_1", AmountTotal: 100, Currency: "usd", Paid: true}},
			nil, domain.ErrValidation,
		},
		{"gateway unavailable", nil, errors.New("dial tcp: i/o timeout"), domain.ErrPaymentGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, _ := setup(t, &fakeGateway{sessions: tt.sessions, getErr: tt.getErr})

			_, changed, err := c.Confirm(ctx, msg)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, changed)

			o, _ := store.Get(ctx, "o1")
			assert.False(t, o.IsPaid())
		})
	}

	t.Run("session confirmed by gateway", func(t *testing.T) {
		gw := &fakeGateway{sessions: map[string]domain.PaymentConfirmation{
			"cs_1": {OrderID: "o1", SessionID: "cs_1", AmountTotal: 7900, Currency: "usd", Paid: true},
		}}
		c, _, _ := setup(t, gw)

		forged := msg
		forged.AmountTotal = 1
		o, changed, err := c.Confirm(ctx, forged)
		require.NoError(t, err, "gateway data replaces message data")
		assert.True(t, changed)
		assert.Equal(t, "cs_1", o.PaymentRef)
	})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(7900), MinorUnits(decimal.RequireFromString("79.00")))
	assert.Equal(t, int64(1012), MinorUnits(decimal.RequireFromString("10.12")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
