// Package config загружает настройки сервиса из переменных окружения.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	CatalogFile string `envconfig:"CATALOG_FILE"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	Payment
	Events
	Idempotency
}

type Payment struct {
	FrontendURL   string        `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	Currency      string        `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	Timeout       time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	StripeKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIURL  string        `envconfig:"STRIPE_API_URL"`
}

type Events struct {
	Backend         string   `envconfig:"EVENTS_BACKEND" default:"none"`
	StanClusterID   string   `envconfig:"STAN_CLUSTER_ID" default:"storefront-cluster"`
	StanClientID    string   `envconfig:"STAN_CLIENT_ID"`
	NatsURL         string   `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	EventsSubject   string   `envconfig:"STAN_EVENTS_SUBJECT" default:"orders.events"`
	PaymentsSubject string   `envconfig:"STAN_PAYMENTS_SUBJECT"`
	Durable         string   `envconfig:"STAN_DURABLE" default:"order-service"`
	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic      string   `envconfig:"KAFKA_TOPIC" default:"orders.events"`
}

type Idempotency struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL           time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

const (
	BackendNone  = "none"
	BackendStan  = "stan"
	BackendKafka = "kafka"
)

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	c.Events.Backend = strings.ToLower(c.Events.Backend)
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Events.Backend {
	case BackendNone, BackendStan:
	case BackendKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka events backend")
		}
	default:
		return errors.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}
	if c.Payment.Timeout <= 0 {
		return errors.New("PAYMENT_TIMEOUT must be positive")
	}
	if c.Payment.Currency == "" {
		return errors.New("PAYMENT_CURRENCY is required")
	}
	return nil
}
