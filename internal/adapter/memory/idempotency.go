package memory

import (
	"context"
	"sync"
	"time"

	"github.com/example/storefront-order-service/internal/domain"
)

type idemEntry struct {
	orderID string
	expires time.Time
}

// IdempotencyStore ключи идемпотентности в памяти, с TTL.
type IdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]idemEntry
	now  func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, keys: make(map[string]idemEntry), now: time.Now}
}

func (s *IdempotencyStore) Reserve(_ context.Context, key, orderID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && (s.ttl <= 0 || s.now().Before(e.expires)) {
		return e.orderID, false, nil
	}
	s.keys[key] = idemEntry{orderID: orderID, expires: s.now().Add(s.ttl)}
	return orderID, true, nil
}

func (s *IdempotencyStore) Release(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && e.orderID == orderID {
		delete(s.keys, key)
	}
	return nil
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
