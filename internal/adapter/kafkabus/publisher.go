// Package kafkabus публикует доменные события заказов в Kafka.
package kafkabus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/example/storefront-order-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher ключ сообщения равен идентификатору заказа, поэтому события
// одного заказа попадают в одну партицию и сохраняют порядок.
type Publisher struct {
	w messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	now := time.Now().UTC()
	env, err := domain.NewEnvelope(e, now)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.Key()),
		Value:   data,
		Time:    now,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type())}},
	})
	return errors.Wrapf(err, "write %s", e.Type())
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

var _ domain.EventPublisher = (*Publisher)(nil)
