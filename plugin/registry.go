package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onOrderCreated       []OnOrderCreated
	onOrderStatusChanged []OnOrderStatusChanged
	onOrderSentToErp     []OnOrderSentToErp
	onErpFailed          []OnErpFailed
	onOrderInvoiced      []OnOrderInvoiced
	onInvoiceIssued      []OnInvoiceIssued
	onInvoiceCancelled   []OnInvoiceCancelled
	onInvoicePaid        []OnInvoicePaid
	onPaymentRegistered  []OnPaymentRegistered
	onPaymentConfirmed   []OnPaymentConfirmed
	onPaymentCancelled   []OnPaymentCancelled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(ok bool, name string, add func()) {
		if ok {
			add()
			hooks = append(hooks, name)
		}
	}

	v1, ok := p.(OnInit)
	cache(ok, "OnInit", func() { r.onInit = append(r.onInit, v1) })
	v2, ok := p.(OnShutdown)
	cache(ok, "OnShutdown", func() { r.onShutdown = append(r.onShutdown, v2) })
	v3, ok := p.(OnOrderCreated)
	cache(ok, "OnOrderCreated", func() { r.onOrderCreated = append(r.onOrderCreated, v3) })
	v4, ok := p.(OnOrderStatusChanged)
	cache(ok, "OnOrderStatusChanged", func() { r.onOrderStatusChanged = append(r.onOrderStatusChanged, v4) })
	v5, ok := p.(OnOrderSentToErp)
	cache(ok, "OnOrderSentToErp", func() { r.onOrderSentToErp = append(r.onOrderSentToErp, v5) })
	v6, ok := p.(OnErpFailed)
	cache(ok, "OnErpFailed", func() { r.onErpFailed = append(r.onErpFailed, v6) })
	v7, ok := p.(OnOrderInvoiced)
	cache(ok, "OnOrderInvoiced", func() { r.onOrderInvoiced = append(r.onOrderInvoiced, v7) })
	v8, ok := p.(OnInvoiceIssued)
	cache(ok, "OnInvoiceIssued", func() { r.onInvoiceIssued = append(r.onInvoiceIssued, v8) })
	v9, ok := p.(OnInvoiceCancelled)
	cache(ok, "OnInvoiceCancelled", func() { r.onInvoiceCancelled = append(r.onInvoiceCancelled, v9) })
	v10, ok := p.(OnInvoicePaid)
	cache(ok, "OnInvoicePaid", func() { r.onInvoicePaid = append(r.onInvoicePaid, v10) })
	v11, ok := p.(OnPaymentRegistered)
	cache(ok, "OnPaymentRegistered", func() { r.onPaymentRegistered = append(r.onPaymentRegistered, v11) })
	v12, ok := p.(OnPaymentConfirmed)
	cache(ok, "OnPaymentConfirmed", func() { r.onPaymentConfirmed = append(r.onPaymentConfirmed, v12) })
	v13, ok := p.(OnPaymentCancelled)
	cache(ok, "OnPaymentCancelled", func() { r.onPaymentCancelled = append(r.onPaymentCancelled, v13) })

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every hook in hooks, logging failures.
func emit[H Plugin](ctx context.Context, r *Registry, hooks []H, event string, fn func(H) error) {
	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error { return fn(h) }); err != nil {
			r.logger.Warn("plugin "+event+" failed",
				"plugin", h.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[H any](r *Registry, hooks *[]H) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, snapshot(r, &r.onInit), "OnInit", func(h OnInit) error {
		return h.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, snapshot(r, &r.onShutdown), "OnShutdown", func(h OnShutdown) error {
		return h.OnShutdown(ctx)
	})
}

// EmitOrderCreated emits an order created event.
func (r *Registry) EmitOrderCreated(ctx context.Context, o *order.Order) {
	emit(ctx, r, snapshot(r, &r.onOrderCreated), "OnOrderCreated", func(h OnOrderCreated) error {
		return h.OnOrderCreated(ctx, o)
	})
}

// EmitOrderStatusChanged emits a status transition event.
func (r *Registry) EmitOrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) {
	emit(ctx, r, snapshot(r, &r.onOrderStatusChanged), "OnOrderStatusChanged", func(h OnOrderStatusChanged) error {
		return h.OnOrderStatusChanged(ctx, o, from)
	})
}

// EmitOrderSentToErp emits an ERP acceptance event.
func (r *Registry) EmitOrderSentToErp(ctx context.Context, o *order.Order) {
	emit(ctx, r, snapshot(r, &r.onOrderSentToErp), "OnOrderSentToErp", func(h OnOrderSentToErp) error {
		return h.OnOrderSentToErp(ctx, o)
	})
}

// EmitErpFailed emits an ERP failure event.
func (r *Registry) EmitErpFailed(ctx context.Context, o *order.Order, cause error) {
	emit(ctx, r, snapshot(r, &r.onErpFailed), "OnErpFailed", func(h OnErpFailed) error {
		return h.OnErpFailed(ctx, o, cause)
	})
}

// EmitOrderInvoiced emits an order invoiced event.
func (r *Registry) EmitOrderInvoiced(ctx context.Context, o *order.Order) {
	emit(ctx, r, snapshot(r, &r.onOrderInvoiced), "OnOrderInvoiced", func(h OnOrderInvoiced) error {
		return h.OnOrderInvoiced(ctx, o)
	})
}

// EmitInvoiceIssued emits an invoice issued event.
func (r *Registry) EmitInvoiceIssued(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, snapshot(r, &r.onInvoiceIssued), "OnInvoiceIssued", func(h OnInvoiceIssued) error {
		return h.OnInvoiceIssued(ctx, inv)
	})
}

// EmitInvoiceCancelled emits an invoice cancelled event.
func (r *Registry) EmitInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, snapshot(r, &r.onInvoiceCancelled), "OnInvoiceCancelled", func(h OnInvoiceCancelled) error {
		return h.OnInvoiceCancelled(ctx, inv)
	})
}

// EmitInvoicePaid emits an invoice paid event.
func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, snapshot(r, &r.onInvoicePaid), "OnInvoicePaid", func(h OnInvoicePaid) error {
		return h.OnInvoicePaid(ctx, inv)
	})
}

// EmitPaymentRegistered emits a payment registered event.
func (r *Registry) EmitPaymentRegistered(ctx context.Context, p *payment.Payment) {
	emit(ctx, r, snapshot(r, &r.onPaymentRegistered), "OnPaymentRegistered", func(h OnPaymentRegistered) error {
		return h.OnPaymentRegistered(ctx, p)
	})
}

// EmitPaymentConfirmed emits a payment confirmed event.
func (r *Registry) EmitPaymentConfirmed(ctx context.Context, p *payment.Payment) {
	emit(ctx, r, snapshot(r, &r.onPaymentConfirmed), "OnPaymentConfirmed", func(h OnPaymentConfirmed) error {
		return h.OnPaymentConfirmed(ctx, p)
	})
}

// EmitPaymentCancelled emits a payment cancelled event.
func (r *Registry) EmitPaymentCancelled(ctx context.Context, p *payment.Payment) {
	emit(ctx, r, snapshot(r, &r.onPaymentCancelled), "OnPaymentCancelled", func(h OnPaymentCancelled) error {
		return h.OnPaymentCancelled(ctx, p)
	})
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
