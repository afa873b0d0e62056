package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	stan "github.com/nats-io/stan.go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/adapter/httpapi"
	"github.com/example/storefront-order-service/internal/adapter/kafkabus"
	"github.com/example/storefront-order-service/internal/adapter/memory"
	"github.com/example/storefront-order-service/internal/adapter/natsstan"
	"github.com/example/storefront-order-service/internal/adapter/redisidem"
	"github.com/example/storefront-order-service/internal/adapter/repo"
	"github.com/example/storefront-order-service/internal/adapter/stripegw"
	"github.com/example/storefront-order-service/internal/config"
	"github.com/example/storefront-order-service/internal/domain"
	"github.com/example/storefront-order-service/internal/metrics"
	"github.com/example/storefront-order-service/internal/payment"
	"github.com/example/storefront-order-service/internal/usecase"
)

type app struct {
	handler http.Handler
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

type closeFunc func()

func (f closeFunc) Close() error { f(); return nil }

type stores struct {
	orders  domain.OrderStore
	reports domain.ReportStore
	catalog domain.Catalog
}

// buildApp собирает адаптеры по конфигурации. Без DATABASE_URL заказы и каталог
// живут в памяти процесса, каталог тогда читается из CATALOG_FILE. При ошибке
// всё, что успели открыть, закрывается.
func buildApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	a := &app{}
	if err := a.wire(ctx, cfg, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	var st stores
	if cfg.DatabaseURL != "" {
		if err := repo.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "db connect")
		}
		a.closers = append(a.closers, closeFunc(pool.Close))
		orders := repo.NewPostgresOrderRepo(pool)
		st = stores{orders: orders, reports: orders, catalog: repo.NewCatalog(pool)}
	} else {
		log.Warn("DATABASE_URL is not set, using in-memory order store and catalog")
		catalog, err := memoryCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}
		orders := memory.NewOrderStore()
		st = stores{orders: orders, reports: orders, catalog: catalog}
	}

	var idem domain.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return errors.Wrap(err, "redis ping")
		}
		a.closers = append(a.closers, rdb)
		idem = redisidem.New(rdb, cfg.Idempotency.TTL)
	} else {
		idem = memory.NewIdempotencyStore(cfg.Idempotency.TTL)
	}

	var sc stan.Conn
	if cfg.Backend == config.BackendStan || cfg.PaymentsSubject != "" {
		var err error
		sc, err = natsstan.Connect(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closeFunc(func() { _ = sc.Close() }))
	}

	var events domain.EventPublisher = domain.NopPublisher{}
	switch cfg.Backend {
	case config.BackendStan:
		events = &natsstan.Publisher{Conn: sc, Subject: cfg.EventsSubject}
	case config.BackendKafka:
		p := kafkabus.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, p)
		events = p
	}

	if cfg.StripeKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, checkout sessions will fail")
	}
	m := metrics.New()
	coord := payment.NewCoordinator(
		stripegw.New(cfg.StripeKey, cfg.StripeAPIURL),
		st.orders,
		payment.Config{FrontendURL: cfg.FrontendURL, Currency: cfg.Currency, Timeout: cfg.Payment.Timeout},
		log,
		payment.WithGatewayCalls(m.GatewayCalls),
	)
	confirm := usecase.ConfirmPayment{Payments: coord, Events: events, Log: log}

	deps := httpapi.Deps{
		PlaceOrder:     usecase.PlaceOrder{Catalog: st.catalog, Store: st.orders, Events: events, Idempotency: idem, Log: log},
		ListOrders:     usecase.ListOrders{Store: st.orders},
		ListMyOrders:   usecase.ListMyOrders{Store: st.orders},
		GetOrder:       usecase.GetOrderByID{Store: st.orders},
		PayOrder:       usecase.PayOrder{Store: st.orders, Payments: coord},
		ConfirmPayment: confirm,
		MarkDelivered:  usecase.MarkDelivered{Store: st.orders, Events: events, Log: log},
		Reports:        usecase.Reports{Store: st.reports},
		Metrics:        m,
		Log:            log,
	}
	if cfg.WebhookSecret != "" {
		deps.Webhook = stripegw.WebhookVerifier{Secret: cfg.WebhookSecret}
	}

	if cfg.PaymentsSubject != "" {
		sub := &natsstan.Subscriber{
			Conn:       sc,
			Subject:    cfg.PaymentsSubject,
			QueueGroup: "order-service",
			Durable:    cfg.Durable,
			Log:        log.WithField("component", "confirmations"),
		}
		handler := natsstan.ConfirmationHandler(
			func(ctx context.Context, pc domain.PaymentConfirmation) error {
				_, err := confirm.Execute(ctx, pc)
				return err
			},
			log.WithField("component", "confirmations"),
			func(result string) { m.Confirmations.WithLabelValues("stan", result).Inc() },
		)
		if err := sub.Subscribe(ctx, handler); err != nil {
			return err
		}
		log.WithField("subject", cfg.PaymentsSubject).Info("consuming payment confirmations")
	}

	a.handler = httpapi.NewServer(deps).Router
	return nil
}

// memoryCatalog читает каталог из JSON-файла. Без файла каталог пуст.
func memoryCatalog(path string) (*memory.Catalog, error) {
	if path == "" {
		return memory.NewCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()
	return memory.LoadCatalog(f)
}
