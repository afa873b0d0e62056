package natsstan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/example/storefront-order-service/internal/domain"
)

// publishConn часть stan.Conn, нужная издателю.
type publishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher публикует доменные события в один subject NATS Streaming.
type Publisher struct {
	Conn    publishConn
	Subject string
}

func (p *Publisher) Publish(_ context.Context, e domain.Event) error {
	env, err := domain.NewEnvelope(e, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return errors.Wrapf(p.Conn.Publish(p.Subject, data), "publish %s", e.Type())
}

var _ domain.EventPublisher = (*Publisher)(nil)
