// Package observability provides a metrics extension for the order engine
// that records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/plugin"
	"github.com/xraph/orders/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated       = (*MetricsExtension)(nil)
	_ plugin.OnOrderStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnOrderSentToErp     = (*MetricsExtension)(nil)
	_ plugin.OnErpFailed          = (*MetricsExtension)(nil)
	_ plugin.OnOrderInvoiced      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceIssued      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCancelled   = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRegistered  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentConfirmed   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCancelled   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track order and billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Order metrics
	OrderCreated   Counter
	OrderCancelled Counter
	OrderRejected  Counter
	OrderInvoiced  Counter
	OrderTotal     Histogram
	OrderLines     Histogram

	// ERP metrics
	ErpSent   Counter
	ErpFailed Counter

	// Invoice metrics
	InvoiceIssued    Counter
	InvoiceCancelled Counter
	InvoicePaid      Counter
	InvoiceTotal     Histogram

	// Payment metrics
	PaymentRegistered Counter
	PaymentConfirmed  Counter
	PaymentCancelled  Counter
	PaymentAmount     Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		OrderCreated:   factory.Counter("orders.order.created"),
		OrderCancelled: factory.Counter("orders.order.cancelled"),
		OrderRejected:  factory.Counter("orders.order.rejected"),
		OrderInvoiced:  factory.Counter("orders.order.invoiced"),
		OrderTotal:     factory.Histogram("orders.order.total_amount"),
		OrderLines:     factory.Histogram("orders.order.lines"),

		ErpSent:   factory.Counter("orders.erp.sent"),
		ErpFailed: factory.Counter("orders.erp.failed"),

		InvoiceIssued:    factory.Counter("orders.invoice.issued"),
		InvoiceCancelled: factory.Counter("orders.invoice.cancelled"),
		InvoicePaid:      factory.Counter("orders.invoice.paid"),
		InvoiceTotal:     factory.Histogram("orders.invoice.total_amount"),

		PaymentRegistered: factory.Counter("orders.payment.registered"),
		PaymentConfirmed:  factory.Counter("orders.payment.confirmed"),
		PaymentCancelled:  factory.Counter("orders.payment.cancelled"),
		PaymentAmount:     factory.Histogram("orders.payment.amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (m *MetricsExtension) OnOrderCreated(_ context.Context, o *order.Order) error {
	m.OrderCreated.Inc()
	m.OrderTotal.Observe(majorUnits(o.TotalAmount))
	m.OrderLines.Observe(float64(len(o.Lines)))
	return nil
}

// OnOrderStatusChanged implements plugin.OnOrderStatusChanged.
func (m *MetricsExtension) OnOrderStatusChanged(_ context.Context, o *order.Order, _ order.Status) error {
	switch o.Status {
	case order.StatusCancelled:
		m.OrderCancelled.Inc()
	case order.StatusRejected:
		m.OrderRejected.Inc()
	}
	return nil
}

// OnOrderSentToErp implements plugin.OnOrderSentToErp.
func (m *MetricsExtension) OnOrderSentToErp(_ context.Context, _ *order.Order) error {
	m.ErpSent.Inc()
	return nil
}

// OnErpFailed implements plugin.OnErpFailed.
func (m *MetricsExtension) OnErpFailed(_ context.Context, _ *order.Order, _ error) error {
	m.ErpFailed.Inc()
	return nil
}

// OnOrderInvoiced implements plugin.OnOrderInvoiced.
func (m *MetricsExtension) OnOrderInvoiced(_ context.Context, _ *order.Order) error {
	m.OrderInvoiced.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (m *MetricsExtension) OnInvoiceIssued(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceIssued.Inc()
	m.InvoiceTotal.Observe(majorUnits(inv.TotalAmount))
	return nil
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (m *MetricsExtension) OnInvoiceCancelled(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceCancelled.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered implements plugin.OnPaymentRegistered.
func (m *MetricsExtension) OnPaymentRegistered(_ context.Context, p *payment.Payment) error {
	m.PaymentRegistered.Inc()
	m.PaymentAmount.Observe(majorUnits(p.Amount))
	return nil
}

// OnPaymentConfirmed implements plugin.OnPaymentConfirmed.
func (m *MetricsExtension) OnPaymentConfirmed(_ context.Context, _ *payment.Payment) error {
	m.PaymentConfirmed.Inc()
	return nil
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (m *MetricsExtension) OnPaymentCancelled(_ context.Context, _ *payment.Payment) error {
	m.PaymentCancelled.Inc()
	return nil
}

// majorUnits converts money to a float in major units for histograms.
func majorUnits(m types.Money) float64 {
	return m.Decimal().InexactFloat64()
}
