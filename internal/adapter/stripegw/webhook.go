package stripegw

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/example/storefront-order-service/internal/domain"
)

// WebhookVerifier проверяет подпись Stripe-Signature и извлекает подтверждение оплаты.
type WebhookVerifier struct {
	Secret    string
	Tolerance time.Duration
}

// Confirmation ok=false означает событие, не относящееся к оплате заказа.
func (v WebhookVerifier) Confirmation(payload []byte, signature string) (pc domain.PaymentConfirmation, ok bool, err error) {
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.Secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentConfirmation{}, false, errors.Wrapf(domain.ErrValidation, "webhook signature: %v", err)
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return domain.PaymentConfirmation{}, false, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return domain.PaymentConfirmation{}, false, errors.Wrap(domain.ErrValidation, "webhook session payload")
	}
	pc = confirmationOf(&s)
	pc.Verified = true
	return pc, true, nil
}
