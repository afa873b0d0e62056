// Package redisidem хранит ключи идемпотентности оформления заказа в Redis.
package redisidem

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/example/storefront-order-service/internal/domain"
)

const keyPrefix = "checkout:idem:"

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// releaseScript удаляет ключ, только если он закреплён за переданным заказом.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Reserve первый SETNX выигрывает; остальные получают заказ победителя.
func (s *Store) Reserve(ctx context.Context, key, orderID string) (string, bool, error) {
	k := keyPrefix + key
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.client.SetNX(ctx, k, orderID, s.ttl).Result()
		if err != nil {
			return "", false, errors.Wrap(err, "redis setnx")
		}
		if ok {
			return orderID, true, nil
		}
		owner, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// ключ истёк между SETNX и GET
			continue
		}
		if err != nil {
			return "", false, errors.Wrap(err, "redis get")
		}
		return owner, false, nil
	}
	return "", false, errors.Errorf("idempotency key %s keeps expiring", key)
}

func (s *Store) Release(ctx context.Context, key, orderID string) error {
	return errors.Wrap(releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, orderID).Err(), "redis release")
}

var _ domain.IdempotencyStore = (*Store)(nil)
