package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/xraph/orders"
	audithook "github.com/xraph/orders/audit_hook"
	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/notify"
	"github.com/xraph/orders/observability"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/store/memory"
	"github.com/xraph/orders/store/mongo"
	"github.com/xraph/orders/store/postgres"
)

const appID = "orders"

// config is read from ORDERS_* environment variables.
type config struct {
	Driver      string `envconfig:"driver" default:"memory"`
	DatabaseURL string `envconfig:"database_url"`
	MongoDB     string `envconfig:"mongo_database" default:"orders"`

	TaxRate          string        `envconfig:"tax_rate" default:"0.19"`
	Currency         string        `envconfig:"currency" default:"cop"`
	Reconciliation   string        `envconfig:"reconciliation" default:"single"`
	PaymentTermsDays int           `envconfig:"payment_terms_days" default:"30"`
	ErpTimeout       time.Duration `envconfig:"erp_timeout" default:"30s"`

	ErpURL        string `envconfig:"erp_url"`
	ErpAPIKey     string `envconfig:"erp_api_key"`
	ErpMaxRetries uint   `envconfig:"erp_max_retries" default:"3"`

	KafkaBrokers []string `envconfig:"kafka_brokers"`
	KafkaTopic   string   `envconfig:"kafka_topic" default:"orders.events"`

	LogLevel string `envconfig:"log_level" default:"info"`
	LogJSON  bool   `envconfig:"log_json"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, fmt.Errorf("orders: read environment: %w", err)
	}
	return c, nil
}

func (c *config) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (c *config) openStore(ctx context.Context) (store.Store, error) {
	switch strings.ToLower(c.Driver) {
	case "memory", "":
		return memory.New(), nil
	case "postgres", "pg":
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("orders: ORDERS_DATABASE_URL is required for driver %q", c.Driver)
		}
		s, err := postgres.Open(ctx, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo", "mongodb":
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("orders: ORDERS_DATABASE_URL is required for driver %q", c.Driver)
		}
		s, err := mongo.Open(ctx, c.DatabaseURL, c.MongoDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("orders: unknown driver %q", c.Driver)
	}
}

// engineOptions wires the configured ERP adapter and plugins.
func (c *config) engineOptions(logger *slog.Logger) ([]orders.Option, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("orders: invalid ORDERS_TAX_RATE %q: %w", c.TaxRate, err)
	}
	policy := orders.ReconciliationPolicy(c.Reconciliation)
	if !policy.Valid() {
		return nil, fmt.Errorf("orders: unknown ORDERS_RECONCILIATION %q", c.Reconciliation)
	}

	opts := []orders.Option{
		orders.WithLogger(logger),
		orders.WithTaxRate(rate),
		orders.WithCurrency(c.Currency),
		orders.WithReconciliationPolicy(policy),
		orders.WithPaymentTermsDays(c.PaymentTermsDays),
		orders.WithErpTimeout(c.ErpTimeout),
		orders.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
		orders.WithPlugin(observability.NewMetricsExtension(
			observability.NewPrometheusFactory(prometheus.DefaultRegisterer),
		)),
	}

	if c.ErpURL != "" {
		adapter, err := erp.NewHTTPAdapter(c.ErpURL,
			erp.WithAPIKey(c.ErpAPIKey),
			erp.WithMaxRetries(c.ErpMaxRetries),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orders.WithErpAdapter(adapter))
	}

	if len(c.KafkaBrokers) > 0 {
		w := notify.NewWriter(c.KafkaBrokers, c.KafkaTopic)
		opts = append(opts, orders.WithPlugin(notify.New(w, notify.WithLogger(logger))))
	}

	return opts, nil
}

// auditLog records audit events as structured log lines.
func auditLog(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		logger.Info("audit",
			"action", evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"outcome", evt.Outcome,
			"severity", evt.Severity,
		)
		return nil
	})
}
