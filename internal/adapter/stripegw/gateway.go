// Package stripegw платёжный шлюз на Stripe Checkout.
package stripegw

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/payment"
)

type Gateway struct {
	api *client.API
}

// New apiURL переопределяет адрес API (stripe-mock, тесты); пустая строка означает api.stripe.com.
func New(secretKey, apiURL string) *Gateway {
	var backends *stripe.Backends
	if apiURL != "" {
		cfg := &stripe.BackendConfig{
			URL:               stripe.String(strings.TrimRight(apiURL, "/")),
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
		}
	}
	return &Gateway{api: client.New(secretKey, backends)}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(payment.MinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.SetIdempotencyKey("checkout-" + req.OrderID + "-" + payment.AmountKey(req.Amount))

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return domain.CheckoutSession{}, gatewayError(err)
	}
	return domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// GetCheckoutSession сессия, которой Stripe не знает, даёт ErrValidation.
func (g *Gateway) GetCheckoutSession(ctx context.Context, sessionID string) (domain.PaymentConfirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return domain.PaymentConfirmation{}, errors.Wrapf(domain.ErrValidation, "unknown checkout session %s", sessionID)
		}
		return domain.PaymentConfirmation{}, gatewayError(err)
	}
	pc := confirmationOf(s)
	pc.Verified = true
	return pc, nil
}

func confirmationOf(s *stripe.CheckoutSession) domain.PaymentConfirmation {
	return domain.PaymentConfirmation{
		OrderID:     s.ClientReferenceID,
		SessionID:   s.ID,
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
}

func gatewayError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return errors.Wrapf(domain.ErrPaymentGateway, "stripe %s (%d): %s", se.Type, se.HTTPStatusCode, se.Msg)
	}
	return errors.Wrapf(domain.ErrPaymentGateway, "stripe: %v", err)
}

var _ domain.PaymentGateway = (*Gateway)(nil)
