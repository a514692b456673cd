// Package audithook bridges order lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnOrderCreated       = (*Extension)(nil)
	_ plugin.OnOrderStatusChanged = (*Extension)(nil)
	_ plugin.OnOrderSentToErp     = (*Extension)(nil)
	_ plugin.OnErpFailed          = (*Extension)(nil)
	_ plugin.OnOrderInvoiced      = (*Extension)(nil)
	_ plugin.OnInvoiceIssued      = (*Extension)(nil)
	_ plugin.OnInvoiceCancelled   = (*Extension)(nil)
	_ plugin.OnInvoicePaid        = (*Extension)(nil)
	_ plugin.OnPaymentRegistered  = (*Extension)(nil)
	_ plugin.OnPaymentConfirmed   = (*Extension)(nil)
	_ plugin.OnPaymentCancelled   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges order lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryFulfillment, nil,
		"user_id", o.UserID,
		"lines", len(o.Lines),
		"total", o.TotalAmount.String(),
	)
}

// OnOrderStatusChanged implements plugin.OnOrderStatusChanged.
func (e *Extension) OnOrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) error {
	action := ActionOrderStatusChanged
	if o.Status == order.StatusCancelled {
		action = ActionOrderCancelled
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryFulfillment, nil,
		"from", string(from),
		"to", string(o.Status),
	)
}

// OnOrderSentToErp implements plugin.OnOrderSentToErp.
func (e *Extension) OnOrderSentToErp(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderSentToErp, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryIntegration, nil,
		"erp_reference", o.ErpReference,
	)
}

// OnErpFailed implements plugin.OnErpFailed.
func (e *Extension) OnErpFailed(ctx context.Context, o *order.Order, err error) error {
	return e.record(ctx, ActionOrderErpFailed, SeverityError, OutcomeFailure,
		ResourceOrder, o.ID.String(), CategoryIntegration, err,
		"status", string(o.Status),
	)
}

// OnOrderInvoiced implements plugin.OnOrderInvoiced.
func (e *Extension) OnOrderInvoiced(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderInvoiced, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryBilling, nil,
		"erp_reference", o.ErpReference,
		"invoice_number", o.InvoiceNumber,
	)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (e *Extension) OnInvoiceIssued(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceIssued, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"number", inv.Number,
		"order_id", inv.OrderID.String(),
		"total", inv.TotalAmount.String(),
	)
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (e *Extension) OnInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceCancelled, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"number", inv.Number,
		"reason", inv.CancelReason,
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryPayment, nil,
		"number", inv.Number,
		"total", inv.TotalAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered implements plugin.OnPaymentRegistered.
func (e *Extension) OnPaymentRegistered(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentRegistered, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"type", string(p.Type),
		"amount", p.Amount.String(),
		"method", p.Method,
	)
}

// OnPaymentConfirmed implements plugin.OnPaymentConfirmed.
func (e *Extension) OnPaymentConfirmed(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentConfirmed, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"amount", p.Amount.String(),
	)
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (e *Extension) OnPaymentCancelled(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentCancelled, SeverityWarning, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"amount", p.Amount.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
