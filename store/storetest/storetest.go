// Package storetest is a conformance suite run against every store.Store
// backend. Keys are randomized per run so the suite can share a database
// with earlier runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orders "github.com/xraph/orders"
	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/types"
)

// Run executes the suite. newStore must return a migrated, empty-enough
// store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ReserveStockNeverOversells", testReserveNeverOversells},
		{"ReserveStockErrors", testReserveErrors},
		{"RunInTxRollsBack", testRollback},
		{"CartVersions", testCartVersions},
		{"OrderVersions", testOrderVersions},
		{"ListOrders", testListOrders},
		{"InvoiceNumbering", testInvoiceNumbering},
		{"Payments", testPayments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func unique(prefix string) string {
	return prefix + "-" + id.NewEventID().String()
}

func seedProduct(t *testing.T, s store.Store, stock int64) string {
	t.Helper()
	sku := unique("SKU")
	require.NoError(t, s.PutProduct(context.Background(), &product.Product{
		Entity:    types.NewEntity(),
		SKU:       sku,
		Name:      "Product",
		StockQty:  stock,
		UnitPrice: types.COP(100000),
	}))
	return sku
}

func seedOrder(t *testing.T, s store.Store, userID string) *order.Order {
	t.Helper()
	line := order.NewLine("SKU", "Product", 1, types.COP(1000))
	o := &order.Order{
		Entity:      types.NewEntity(),
		ID:          id.NewOrderID(),
		UserID:      userID,
		Lines:       []order.Line{line},
		TotalAmount: line.Subtotal,
		Status:      order.StatusConfirmed,
	}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func testReserveNeverOversells(t *testing.T, s store.Store) {
	ctx := context.Background()
	sku := seedProduct(t, s, 10)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		short     atomic.Int64
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ReserveStock(ctx, sku, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Equal(t, int64(15), short.Load())

	p, err := s.GetProduct(ctx, sku)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.StockQty)
}

func testReserveErrors(t *testing.T, s store.Store) {
	ctx := context.Background()
	sku := seedProduct(t, s, 2)

	_, err := s.ReserveStock(ctx, unique("NOPE"), 1)
	assert.ErrorIs(t, err, orders.ErrProductNotFound)

	_, err = s.ReserveStock(ctx, sku, 3)
	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.Available)

	remaining, err := s.ReleaseStock(ctx, sku, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), remaining)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	sku := seedProduct(t, s, 5)
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.ReserveStock(ctx, sku, 3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, sku)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.StockQty)
}

func testCartVersions(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := unique("user")

	_, err := s.GetCart(ctx, user)
	assert.ErrorIs(t, err, orders.ErrCartNotFound)

	require.NoError(t, s.EnsureCart(ctx, user))
	require.NoError(t, s.EnsureCart(ctx, user))

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.LockCart(ctx, user)
		if err != nil {
			return err
		}
		c.Add("SKU-A", "Widget", 2)
		return tx.SaveCart(ctx, c)
	})
	require.NoError(t, err)

	c, err := s.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, cart.Item{SKU: "SKU-A", Name: "Widget", Qty: 2}, c.Items[0])

	stale := c.Clone()
	c.Add("SKU-B", "", 1)
	require.NoError(t, s.SaveCart(ctx, c))
	assert.ErrorIs(t, s.SaveCart(ctx, stale), orders.ErrConcurrencyConflict)
}

func testOrderVersions(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := seedOrder(t, s, unique("user"))
	assert.Equal(t, int64(1), o.Version)

	got, err := s.LockOrder(ctx, o.ID)
	require.NoError(t, err)
	stale := got.Clone()

	now := time.Now().UTC().Truncate(time.Millisecond)
	got.Status = order.StatusSentToErp
	got.ErpReference = "ERP-000001"
	got.InvoicedAt = &now
	got.Snapshot = &order.FinancialSnapshot{
		NetAmount:   types.COP(1000),
		IvaAmount:   types.COP(190),
		TotalAmount: types.COP(1190),
		Client:      order.ClientSnapshot{ID: o.UserID, Name: "Client"},
		Items:       o.Lines,
		CapturedAt:  now,
	}
	require.NoError(t, s.UpdateOrder(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	assert.ErrorIs(t, s.UpdateOrder(ctx, stale), orders.ErrConcurrencyConflict)

	reloaded, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSentToErp, reloaded.Status)
	assert.Equal(t, "ERP-000001", reloaded.ErpReference)
	require.NotNil(t, reloaded.Snapshot)
	assert.Equal(t, types.COP(1190), reloaded.Snapshot.TotalAmount)
	require.NotNil(t, reloaded.InvoicedAt)
	assert.True(t, now.Equal(*reloaded.InvoicedAt))
	assert.Equal(t, o.Lines, reloaded.Lines)

	_, err = s.GetOrder(ctx, id.NewOrderID())
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	missing := &order.Order{ID: id.NewOrderID(), Version: 1}
	assert.ErrorIs(t, s.UpdateOrder(ctx, missing), orders.ErrOrderNotFound)
}

func testListOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := unique("user")
	first := seedOrder(t, s, user)
	time.Sleep(2 * time.Millisecond)
	second := seedOrder(t, s, user)
	seedOrder(t, s, unique("other"))

	list, err := s.ListOrders(ctx, order.ListOpts{UserID: user})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = s.ListOrders(ctx, order.ListOpts{UserID: user, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	list, err = s.ListOrders(ctx, order.ListOpts{UserID: user, Status: order.StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func newInvoice(o *order.Order, number string) *invoice.Invoice {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &invoice.Invoice{
		Entity:      types.NewEntityAt(now),
		ID:          id.NewInvoiceID(),
		Number:      number,
		OrderID:     o.ID,
		ClientID:    o.UserID,
		Type:        invoice.TypeStandard,
		Status:      invoice.StatusIssued,
		NetAmount:   types.COP(1000),
		IvaAmount:   types.COP(190),
		TotalAmount: types.COP(1190),
		ClientName:  "Client",
		IssueDate:   now,
		DueDate:     now.AddDate(0, 0, 30),
	}
}

func testInvoiceNumbering(t *testing.T, s store.Store) {
	ctx := context.Background()
	day := unique("day")

	for want := int64(1); want <= 3; want++ {
		var got int64
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			got, err = tx.NextSequence(ctx, day)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	o := seedOrder(t, s, unique("user"))
	number := unique("FAC")
	inv := newInvoice(o, number)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	// Second active invoice for the same order.
	assert.ErrorIs(t, s.CreateInvoice(ctx, newInvoice(o, unique("FAC"))), orders.ErrInvoiceExists)

	// Duplicate number on another order.
	other := seedOrder(t, s, unique("user"))
	assert.ErrorIs(t, s.CreateInvoice(ctx, newInvoice(other, number)), orders.ErrConcurrencyConflict)

	byNumber, err := s.GetInvoiceByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)
	assert.Equal(t, types.COP(1190), byNumber.TotalAmount)

	now := time.Now().UTC()
	inv.Status = invoice.StatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = "typo"
	require.NoError(t, s.UpdateInvoice(ctx, inv))

	_, err = s.GetActiveInvoiceByOrder(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrInvoiceNotFound)

	replacement := newInvoice(o, unique("FAC"))
	require.NoError(t, s.CreateInvoice(ctx, replacement))
	active, err := s.GetActiveInvoiceByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, active.ID)

	cancelled, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "typo", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
}

func testPayments(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := seedOrder(t, s, unique("user"))
	inv := newInvoice(o, unique("FAC"))
	require.NoError(t, s.CreateInvoice(ctx, inv))

	pay := func(amount int64, invID id.InvoiceID) *payment.Payment {
		p := &payment.Payment{
			Entity:      types.NewEntity(),
			ID:          id.NewPaymentID(),
			InvoiceID:   invID,
			OrderID:     o.ID,
			ClientID:    o.UserID,
			Type:        payment.TypeInvoice,
			Amount:      types.COP(amount),
			Status:      payment.StatusPending,
			Method:      "cash",
			PaymentDate: time.Now().UTC(),
		}
		require.NoError(t, s.CreatePayment(ctx, p))
		return p
	}

	pay(600, inv.ID)
	cancelled := pay(300, inv.ID)
	cancelled.Status = payment.StatusCancelled
	require.NoError(t, s.UpdatePayment(ctx, cancelled))

	advance := pay(50, id.Nil)
	got, err := s.GetPayment(ctx, advance.ID)
	require.NoError(t, err)
	assert.True(t, got.InvoiceID.IsNil())

	sum, err := s.SumPayments(ctx, inv.ID, "cop")
	require.NoError(t, err)
	assert.Equal(t, types.COP(600), sum)

	list, err := s.ListPaymentsByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.GetPayment(ctx, id.NewPaymentID())
	assert.ErrorIs(t, err, orders.ErrPaymentNotFound)
}
