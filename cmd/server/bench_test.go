package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/storefront-order-service/internal/adapter/httpapi"
	"github.com/example/storefront-order-service/internal/adapter/memory"
	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/usecase"
)

func seededStore(b *testing.B, n int) *memory.OrderStore {
	b.Helper()
	store := memory.NewOrderStore()
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := store.Create(context.Background(), domain.Order{
			ID:         fmt.Sprintf("order-%d", i),
			CustomerID: fmt.Sprintf("cust-%d", i%50),
			UploaderID: "seller-1",
			Items:      []domain.LineItem{{ProductID: "p1", UnitPrice: decimal.NewFromInt(30), Quantity: 1}},
			Totals:     domain.Totals{Items: decimal.NewFromInt(30), Grand: decimal.NewFromInt(30)},
			Payment:    domain.Unpaid,
			Delivery:   domain.Undelivered,
			CreatedAt:  created.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	return store
}

func BenchmarkHandleGet(b *testing.B) {
	store := seededStore(b, 1000)
	log, _ := test.NewNullLogger()
	router := httpapi.NewServer(httpapi.Deps{GetOrder: usecase.GetOrderByID{Store: store}, Log: log}).Router

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/orders/order-%d", i%1000), nil)
			req.Header.Set("X-User-ID", "admin")
			req.Header.Set("X-User-Role", "admin")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			i++
		}
	})
}

func BenchmarkStoreListSeller(b *testing.B) {
	store := seededStore(b, 10000)
	f := domain.OrderFilter{UploaderID: "seller-1"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.List(context.Background(), f)
	}
}
