package natsstan

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
)

// DecodeConfirmation разбирает подтверждение оплаты из тела сообщения.
func DecodeConfirmation(raw []byte) (domain.PaymentConfirmation, error) {
	var pc domain.PaymentConfirmation
	if err := json.Unmarshal(raw, &pc); err != nil {
		return domain.PaymentConfirmation{}, errors.Wrap(domain.ErrValidation, err.Error())
	}
	if pc.OrderID == "" || pc.SessionID == "" {
		return domain.PaymentConfirmation{}, errors.Wrap(domain.ErrValidation, "missing order_id or session_id")
	}
	return pc, nil
}

// ConfirmFunc применяет подтверждение оплаты к заказу.
type ConfirmFunc func(ctx context.Context, pc domain.PaymentConfirmation) error

// ConfirmationHandler обработчик для Subscriber. Содержимое сообщения не считается
// проверенным: confirm сверяет сессию со шлюзом. Сообщения, которые не станут
// корректными при повторе (битые, поддельная сессия, неизвестный заказ),
// подтверждаются и только логируются; сбои шлюза и внутренние ошибки
// возвращаются для повторной доставки.
func ConfirmationHandler(confirm ConfirmFunc, log logrus.FieldLogger, observe func(result string)) func(ctx context.Context, raw []byte) error {
	if observe == nil {
		observe = func(string) {}
	}
	return func(ctx context.Context, raw []byte) error {
		pc, err := DecodeConfirmation(raw)
		if err != nil {
			observe("rejected")
			log.WithError(err).Warn("drop malformed confirmation")
			return nil
		}
		l := log.WithFields(logrus.Fields{"order_id": pc.OrderID, "session_id": pc.SessionID})
		if !pc.Paid {
			observe("ignored")
			l.Info("skip unpaid confirmation")
			return nil
		}
		err = confirm(ctx, pc)
		if err == nil {
			observe("applied")
			return nil
		}
		if k := domain.KindOf(err); k == domain.KindInternal || k == domain.KindPaymentGateway {
			observe("retry")
			return err
		}
		observe("rejected")
		l.WithError(err).Warn("drop confirmation")
		return nil
	}
}
