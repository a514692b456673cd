package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/plugin"
	"github.com/xraph/orders/store"
)

// DefaultTaxRate is the IVA rate applied to net amounts.
var DefaultTaxRate = decimal.RequireFromString("0.19")

// ReconciliationPolicy decides when payments settle an invoice.
type ReconciliationPolicy string

const (
	// ReconcileSinglePayment marks an invoice paid when one payment covers its total.
	ReconcileSinglePayment ReconciliationPolicy = "single"
	// ReconcileCumulative marks an invoice paid when its non-cancelled
	// payments together cover the total.
	ReconcileCumulative ReconciliationPolicy = "cumulative"
)

// Valid reports whether p is a known policy.
func (p ReconciliationPolicy) Valid() bool {
	return p == ReconcileSinglePayment || p == ReconcileCumulative
}

// Engine is the order lifecycle core. It owns carts, stock reservations,
// orders, invoices and payments on top of a store.Store.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	erp      erp.Adapter
	clients  ClientDirectory
	tracer   trace.Tracer
	validate *validator.Validate
	now      func() time.Time

	// Background snapshot workers; no new work starts once stopped is set.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	// Configuration
	taxRate          decimal.Decimal
	currency         string
	policy           ReconciliationPolicy
	erpTimeout       time.Duration
	snapshotTimeout  time.Duration
	invoiceRetries   uint
	paymentTermsDays int
	autoIssueInvoice bool
	invoiceType      invoice.Type
}

// New creates a new Engine.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		tracer:           otel.Tracer("github.com/xraph/orders"),
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		now:              time.Now,
		taxRate:          DefaultTaxRate,
		currency:         "cop",
		policy:           ReconcileSinglePayment,
		erpTimeout:       30 * time.Second,
		snapshotTimeout:  10 * time.Second,
		invoiceRetries:   5,
		paymentTermsDays: 30,
		autoIssueInvoice: true,
		invoiceType:      invoice.TypeStandard,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithErpAdapter sets the ERP integration. Without one SendToErp fails with
// ErrErpAdapterMissing.
func WithErpAdapter(a erp.Adapter) Option {
	return func(e *Engine) { e.erp = a }
}

// WithClientDirectory sets where billing identities come from.
func WithClientDirectory(d ClientDirectory) Option {
	return func(e *Engine) { e.clients = d }
}

// WithTaxRate overrides the IVA rate.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(e *Engine) { e.taxRate = rate }
}

// WithCurrency sets the currency used for empty totals.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		if c := strings.ToLower(strings.TrimSpace(currency)); c != "" {
			e.currency = c
		}
	}
}

// WithReconciliationPolicy sets how payments settle invoices.
func WithReconciliationPolicy(p ReconciliationPolicy) Option {
	return func(e *Engine) {
		if p.Valid() {
			e.policy = p
		}
	}
}

// WithErpTimeout bounds one ERP call.
func WithErpTimeout(d time.Duration) Option {
	return func(e *Engine) { e.erpTimeout = d }
}

// WithSnapshotTimeout bounds background snapshot attachment.
func WithSnapshotTimeout(d time.Duration) Option {
	return func(e *Engine) { e.snapshotTimeout = d }
}

// WithInvoiceRetryAttempts bounds retries after an invoice numbering race.
func WithInvoiceRetryAttempts(n uint) Option {
	return func(e *Engine) {
		if n > 0 {
			e.invoiceRetries = n
		}
	}
}

// WithPaymentTermsDays sets the invoice due date offset.
func WithPaymentTermsDays(days int) Option {
	return func(e *Engine) { e.paymentTermsDays = days }
}

// WithAutoIssueInvoice toggles issuing an invoice right after MarkInvoiced.
func WithAutoIssueInvoice(on bool) Option {
	return func(e *Engine) { e.autoIssueInvoice = on }
}

// WithInvoiceType sets the type of automatically issued invoices.
func WithInvoiceType(t invoice.Type) Option {
	return func(e *Engine) {
		if t.Valid() {
			e.invoiceType = t
		}
	}
}

// WithTracer replaces the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.logger.Info("orders engine started",
		"currency", e.currency,
		"tax_rate", e.taxRate.String(),
		"reconciliation", string(e.policy),
		"erp_configured", e.erp != nil,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop drains background work, shuts plugins down and closes the store.
// Snapshots scheduled after Stop are skipped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Wait blocks until background snapshot work has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// startSpan opens a span and returns a closer that records *err.
func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := e.tracer.Start(ctx, "orders."+name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// check runs struct validation and converts failures into ValidationErrors.
func (e *Engine) check(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationError{Field: "input", Message: err.Error()}
	}

	var multi MultiError
	for _, fe := range verrs {
		multi.Add(ValidationError{Field: fe.Namespace(), Message: describeTag(fe)})
	}
	return multi.ErrorOrNil()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "dive":
		return "is invalid"
	}
	return "failed " + fe.Tag() + " check"
}
