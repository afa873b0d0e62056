package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/storefront-order-service/internal/domain"
)

// OrderStore хранит заказы в памяти процесса. Все изменения заказа выполняются
// под одной блокировкой, поэтому переходы оплаты и доставки атомарны.
type OrderStore struct {
	mu    sync.RWMutex
	store map[string]*domain.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{store: make(map[string]*domain.Order)}
}

func (s *OrderStore) Create(_ context.Context, o domain.Order) error {
	if o.ID == "" {
		return errors.Wrap(domain.ErrValidation, "order id is empty")
	}
	if len(o.Items) == 0 {
		return errors.Wrap(domain.ErrValidation, "no order items")
	}
	for _, it := range o.Items {
		if it.ProductID == "" {
			return errors.Wrap(domain.ErrValidation, "order item without product reference")
		}
	}
	c := o.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[o.ID]; ok {
		return errors.Errorf("order %s already exists", o.ID)
	}
	s.store[o.ID] = &c
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.store[id]
	if !ok {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return o.Clone(), nil
}

func (s *OrderStore) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	out := make([]domain.Order, 0, len(s.store))
	for _, o := range s.store {
		if f.Match(*o) {
			out = append(out, o.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *OrderStore) SetPaid(_ context.Context, id string, at time.Time, paymentRef string) (domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.store[id]
	if !ok {
		return domain.Order{}, false, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	if o.IsPaid() {
		if o.PaymentRef == paymentRef {
			return o.Clone(), false, nil
		}
		return domain.Order{}, false, errors.Wrapf(domain.ErrInvalidState, "order %s is already paid", id)
	}
	o.Payment = domain.Paid
	o.PaidAt = &at
	o.PaymentRef = paymentRef
	return o.Clone(), true, nil
}

func (s *OrderStore) SetDelivered(_ context.Context, id string, at time.Time) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.store[id]
	if !ok {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	if !o.IsPaid() {
		return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is not paid", id)
	}
	if o.IsDelivered() {
		return domain.Order{}, errors.Wrapf(domain.ErrInvalidState, "order %s is already delivered", id)
	}
	o.Delivery = domain.Delivered
	o.DeliveredAt = &at
	return o.Clone(), nil
}

func (s *OrderStore) CountOrders(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.store)), nil
}

func (s *OrderStore) TotalSales(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, o := range s.store {
		total = total.Add(o.Totals.Grand)
	}
	return total, nil
}

func (s *OrderStore) SalesByDay(_ context.Context) ([]domain.DailySales, error) {
	s.mu.RLock()
	byDay := make(map[string]decimal.Decimal)
	for _, o := range s.store {
		if !o.IsPaid() || o.PaidAt == nil {
			continue
		}
		day := o.PaidAt.UTC().Format("2006-01-02")
		byDay[day] = byDay[day].Add(o.Totals.Grand)
	}
	s.mu.RUnlock()

	out := make([]domain.DailySales, 0, len(byDay))
	for day, total := range byDay {
		out = append(out, domain.DailySales{Date: day, TotalSales: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

var (
	_ domain.OrderStore  = (*OrderStore)(nil)
	_ domain.ReportStore = (*OrderStore)(nil)
)
