package orders_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/store/memory"
	"github.com/xraph/orders/types"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type harness struct {
	engine *orders.Engine
	store  *memory.Store
	erp    *erp.Fake
	events *recorder
}

func newHarness(t *testing.T, opts ...orders.Option) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(),
		erp:    erp.NewFake(),
		events: &recorder{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := []orders.Option{
		orders.WithLogger(logger),
		orders.WithErpAdapter(h.erp),
		orders.WithClock(func() time.Time { return testNow }),
		orders.WithPlugin(h.events),
	}
	h.engine = orders.New(h.store, append(base, opts...)...)
	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(func() { _ = h.engine.Stop() })
	return h
}

func (h *harness) seed(t *testing.T, sku string, stock int64, price types.Money) {
	t.Helper()
	require.NoError(t, h.engine.PutProduct(context.Background(), &product.Product{
		SKU:       sku,
		Name:      "Product " + sku,
		StockQty:  stock,
		UnitPrice: price,
	}))
}

func (h *harness) stock(t *testing.T, sku string) int64 {
	t.Helper()
	p, err := h.engine.LookupProduct(context.Background(), sku)
	require.NoError(t, err)
	return p.StockQty
}

// placeOrder creates a one-line order and waits for its snapshot.
func (h *harness) placeOrder(t *testing.T, sku string, qty int64) *order.Order {
	t.Helper()
	o, err := h.engine.CreateOrder(context.Background(), "user-1", []orders.LineInput{{SKU: sku, Qty: qty}})
	require.NoError(t, err)
	h.engine.Wait()
	return o
}

// forceStatus puts an order into any status, bypassing the graph.
func (h *harness) forceStatus(t *testing.T, orderID id.OrderID, status order.Status) {
	t.Helper()
	require.NoError(t, h.store.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		o.Status = status
		return tx.UpdateOrder(ctx, o)
	}))
}

// recorder is a plugin that captures every lifecycle event name.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) OnOrderCreated(context.Context, *order.Order) error {
	r.add("order.created")
	return nil
}

func (r *recorder) OnOrderStatusChanged(_ context.Context, o *order.Order, from order.Status) error {
	r.add("order." + string(from) + "->" + string(o.Status))
	return nil
}

func (r *recorder) OnOrderSentToErp(context.Context, *order.Order) error {
	r.add("order.sent_to_erp")
	return nil
}

func (r *recorder) OnErpFailed(context.Context, *order.Order, error) error {
	r.add("order.erp_failed")
	return nil
}

func (r *recorder) OnOrderInvoiced(context.Context, *order.Order) error {
	r.add("order.invoiced")
	return nil
}

func (r *recorder) OnInvoiceIssued(context.Context, *invoice.Invoice) error {
	r.add("invoice.issued")
	return nil
}

func (r *recorder) OnInvoiceCancelled(context.Context, *invoice.Invoice) error {
	r.add("invoice.cancelled")
	return nil
}

func (r *recorder) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	r.add("invoice.paid")
	return nil
}

func (r *recorder) OnPaymentRegistered(context.Context, *payment.Payment) error {
	r.add("payment.registered")
	return nil
}

func (r *recorder) OnPaymentConfirmed(context.Context, *payment.Payment) error {
	r.add("payment.confirmed")
	return nil
}

func (r *recorder) OnPaymentCancelled(context.Context, *payment.Payment) error {
	r.add("payment.cancelled")
	return nil
}
