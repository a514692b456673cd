// Package plugin provides the extension points of the order engine.
// Plugins opt into lifecycle events by implementing the hook interfaces
// below; hooks run after the triggering transaction has committed and their
// failures never affect the operation's result.
package plugin

import (
	"context"

	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnOrderCreated is called after an order and its reservations commit.
type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o *order.Order) error
}

// OnOrderStatusChanged is called after any committed status transition.
type OnOrderStatusChanged interface {
	Plugin
	OnOrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) error
}

// OnOrderSentToErp is called after the ERP accepted an order.
type OnOrderSentToErp interface {
	Plugin
	OnOrderSentToErp(ctx context.Context, o *order.Order) error
}

// OnErpFailed is called after a failed ERP hand-off was recorded.
type OnErpFailed interface {
	Plugin
	OnErpFailed(ctx context.Context, o *order.Order, err error) error
}

// OnOrderInvoiced is called once per order when it reaches invoiced.
type OnOrderInvoiced interface {
	Plugin
	OnOrderInvoiced(ctx context.Context, o *order.Order) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued is called after an invoice number was assigned.
type OnInvoiceIssued interface {
	Plugin
	OnInvoiceIssued(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceCancelled is called after an invoice was cancelled.
type OnInvoiceCancelled interface {
	Plugin
	OnInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoicePaid is called when reconciliation marks an invoice paid.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered is called after a payment was recorded.
type OnPaymentRegistered interface {
	Plugin
	OnPaymentRegistered(ctx context.Context, p *payment.Payment) error
}

// OnPaymentConfirmed is called after a payment was confirmed.
type OnPaymentConfirmed interface {
	Plugin
	OnPaymentConfirmed(ctx context.Context, p *payment.Payment) error
}

// OnPaymentCancelled is called after a payment was cancelled.
type OnPaymentCancelled interface {
	Plugin
	OnPaymentCancelled(ctx context.Context, p *payment.Payment) error
}
