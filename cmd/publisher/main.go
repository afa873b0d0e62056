// Команда publisher публикует подтверждение оплаты из stdin в NATS Streaming.
// Используется для ручной сверки платежей и в локальном окружении вместо
// ретранслятора вебхуков. Сервис сверяет каждую сессию со шлюзом, поэтому
// сообщение лишь просит перепроверить оплату и само заказ не оплачивает.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/storefront-order-service/internal/adapter/natsstan"
)

type settings struct {
	ClusterID string `envconfig:"STAN_CLUSTER_ID" default:"storefront-cluster"`
	ClientID  string `envconfig:"STAN_PUB_ID" default:"order-publisher"`
	NatsURL   string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	Subject   string `envconfig:"STAN_PAYMENTS_SUBJECT" default:"payments.confirmations"`
}

func main() {
	app := &cli.App{
		Name:      "publisher",
		Usage:     "publish a payment confirmation JSON read from stdin",
		UsageText: `echo '{"order_id":"...","session_id":"cs_...","amount_total":7900,"currency":"usd","paid":true}' | publisher`,
		Action: func(c *cli.Context) error {
			var s settings
			if err := envconfig.Process("", &s); err != nil {
				return errors.Wrap(err, "read environment")
			}
			return publish(s, os.Stdin)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("publisher")
	}
}

func publish(s settings, in io.Reader) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "read stdin")
	}
	pc, err := natsstan.DecodeConfirmation(raw)
	if err != nil {
		return err
	}
	data, err := json.Marshal(pc)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	sc, err := natsstan.Connect(s.ClusterID, s.ClientID, s.NatsURL)
	if err != nil {
		return err
	}
	defer sc.Close()

	if err := sc.Publish(s.Subject, data); err != nil {
		return errors.Wrap(err, "publish")
	}
	logrus.WithFields(logrus.Fields{"subject": s.Subject, "order_id": pc.OrderID, "bytes": len(data)}).Info("published")
	return nil
}
