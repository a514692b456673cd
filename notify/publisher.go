// Package notify publishes order lifecycle events to Kafka.
//
// Publisher is an engine plugin: every committed order, invoice and payment
// event becomes one JSON message keyed by order ID, so all events for an
// order land on the same partition in commit order. The active trace context
// travels in the message headers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Publisher)(nil)
	_ plugin.OnShutdown           = (*Publisher)(nil)
	_ plugin.OnOrderCreated       = (*Publisher)(nil)
	_ plugin.OnOrderStatusChanged = (*Publisher)(nil)
	_ plugin.OnErpFailed          = (*Publisher)(nil)
	_ plugin.OnInvoiceIssued      = (*Publisher)(nil)
	_ plugin.OnInvoiceCancelled   = (*Publisher)(nil)
	_ plugin.OnInvoicePaid        = (*Publisher)(nil)
	_ plugin.OnPaymentRegistered  = (*Publisher)(nil)
	_ plugin.OnPaymentConfirmed   = (*Publisher)(nil)
	_ plugin.OnPaymentCancelled   = (*Publisher)(nil)
)

// Event types carried in the "event-type" header and the envelope.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderErpFailed     = "order.erp_failed"
	EventInvoiceIssued      = "invoice.issued"
	EventInvoiceCancelled   = "invoice.cancelled"
	EventInvoicePaid        = "invoice.paid"
	EventPaymentRegistered  = "payment.registered"
	EventPaymentConfirmed   = "payment.confirmed"
	EventPaymentCancelled   = "payment.cancelled"
)

// HeaderEventType names the header holding the event type.
const HeaderEventType = "event-type"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON envelope written as the message value.
type Event struct {
	ID         id.EventID `json:"id"`
	Type       string     `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	OrderID    string     `json:"order_id,omitempty"`
	From       string     `json:"from,omitempty"`
	Error      string     `json:"error,omitempty"`
	Data       any        `json:"data"`
}

// Publisher writes lifecycle events to Kafka.
type Publisher struct {
	writer     MessageWriter
	logger     *slog.Logger
	now        func() time.Time
	propagator propagation.TextMapPropagator // nil = otel global
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for the publisher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithPropagator sets the propagator used to inject trace headers.
func WithPropagator(tp propagation.TextMapPropagator) Option {
	return func(p *Publisher) { p.propagator = tp }
}

// New creates a Publisher writing through w.
func New(w MessageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		writer: w,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWriter returns a kafka.Writer for topic on brokers, balanced by key hash
// so events of one order stay ordered.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-notify" }

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

// ──────────────────────────────────────────────────
// Order hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (p *Publisher) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, Event{Type: EventOrderCreated, OrderID: o.ID.String(), Data: o})
}

// OnOrderStatusChanged implements plugin.OnOrderStatusChanged.
func (p *Publisher) OnOrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) error {
	return p.publish(ctx, Event{
		Type:    EventOrderStatusChanged,
		OrderID: o.ID.String(),
		From:    string(from),
		Data:    o,
	})
}

// OnErpFailed implements plugin.OnErpFailed.
func (p *Publisher) OnErpFailed(ctx context.Context, o *order.Order, err error) error {
	evt := Event{Type: EventOrderErpFailed, OrderID: o.ID.String(), Data: o}
	if err != nil {
		evt.Error = err.Error()
	}
	return p.publish(ctx, evt)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (p *Publisher) OnInvoiceIssued(ctx context.Context, inv *invoice.Invoice) error {
	return p.publish(ctx, Event{Type: EventInvoiceIssued, OrderID: inv.OrderID.String(), Data: inv})
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (p *Publisher) OnInvoiceCancelled(ctx context.Context, inv *invoice.Invoice) error {
	return p.publish(ctx, Event{Type: EventInvoiceCancelled, OrderID: inv.OrderID.String(), Data: inv})
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (p *Publisher) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return p.publish(ctx, Event{Type: EventInvoicePaid, OrderID: inv.OrderID.String(), Data: inv})
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered implements plugin.OnPaymentRegistered.
func (p *Publisher) OnPaymentRegistered(ctx context.Context, pay *payment.Payment) error {
	return p.publish(ctx, paymentEvent(EventPaymentRegistered, pay))
}

// OnPaymentConfirmed implements plugin.OnPaymentConfirmed.
func (p *Publisher) OnPaymentConfirmed(ctx context.Context, pay *payment.Payment) error {
	return p.publish(ctx, paymentEvent(EventPaymentConfirmed, pay))
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (p *Publisher) OnPaymentCancelled(ctx context.Context, pay *payment.Payment) error {
	return p.publish(ctx, paymentEvent(EventPaymentCancelled, pay))
}

func paymentEvent(typ string, pay *payment.Payment) Event {
	evt := Event{Type: typ, Data: pay}
	if !pay.OrderID.IsNil() {
		evt.OrderID = pay.OrderID.String()
	}
	return evt
}

// publish stamps the envelope and writes one message. Advance payments have
// no order and are keyed by client.
func (p *Publisher) publish(ctx context.Context, evt Event) error {
	evt.ID = id.NewEventID()
	evt.OccurredAt = p.now()

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", evt.Type, err)
	}

	key := evt.OrderID
	if key == "" {
		if pay, ok := evt.Data.(*payment.Payment); ok {
			key = pay.ClientID
		}
	}

	prop := p.propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	carrier := propagation.MapCarrier{}
	prop.Inject(ctx, carrier)
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte(evt.Type)}}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    evt.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("notify: publish failed",
			"event", evt.Type,
			"order_id", evt.OrderID,
			"error", err,
		)
		return fmt.Errorf("notify: publish %s: %w", evt.Type, err)
	}
	return nil
}
