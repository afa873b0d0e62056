package natsstan

import (
	"context"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
)

// Subscriber читает подтверждения оплаты из NATS Streaming. Сообщение
// подтверждается только после успешной обработки, иначе брокер доставит его снова.
type Subscriber struct {
	Conn       stan.Conn
	Subject    string
	QueueGroup string
	Durable    string
	AckWait    time.Duration
	Log        logrus.FieldLogger
}

func (s *Subscriber) Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error {
	ackWait := s.AckWait
	if ackWait <= 0 {
		ackWait = 10 * time.Second
	}
	sub, err := s.Conn.QueueSubscribe(s.Subject, s.QueueGroup, func(m *stan.Msg) {
		hCtx, cancel := context.WithTimeout(context.Background(), ackWait/2)
		defer cancel()
		log := s.Log.WithFields(logrus.Fields{"subject": m.Subject, "sequence": m.Sequence})
		if err := handler(hCtx, m.Data); err != nil {
			// не подтверждаем, даём сообщению переотправиться
			log.WithError(err).Warn("handler error")
			return
		}
		if err := m.Ack(); err != nil {
			log.WithError(err).Error("ack failed")
		}
	}, stan.DurableName(s.Durable), stan.SetManualAckMode(), stan.AckWait(ackWait), stan.DeliverAllAvailable())
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", s.Subject)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return nil
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)

// Connect подключение к кластеру NATS Streaming.
func Connect(clusterID, clientID, natsURL string) (stan.Conn, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("order-svc-%d", time.Now().UnixNano())
	}
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(natsURL))
	if err != nil {
		return nil, errors.Wrapf(err, "stan connect %s", natsURL)
	}
	return sc, nil
}
