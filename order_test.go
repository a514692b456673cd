package orders_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/types"
)

func TestCreateOrderPricesAndReserves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(250000))
	h.seed(t, "SKU-B", 5, types.COP(100000))

	o, err := h.engine.CreateOrder(ctx, "user-1", []orders.LineInput{
		{SKU: "sku-a", Qty: 2},
		{SKU: "SKU-B", Qty: 1},
		{SKU: "SKU-A", Qty: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusConfirmed, o.Status)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, int64(3), o.Lines[0].Qty)
	assert.Equal(t, types.COP(750000), o.Lines[0].Subtotal)
	assert.Equal(t, types.COP(850000), o.TotalAmount)

	assert.Equal(t, int64(7), h.stock(t, "SKU-A"))
	assert.Equal(t, int64(4), h.stock(t, "SKU-B"))
	assert.Equal(t, 1, h.events.count("order.created"))
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	h.seed(t, "SKU-B", 1, types.COP(1000))

	_, err := h.engine.CreateOrder(ctx, "user-1", []orders.LineInput{
		{SKU: "SKU-A", Qty: 4},
		{SKU: "SKU-B", Qty: 2},
	})
	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "SKU-B", stockErr.SKU)
	assert.Equal(t, int64(1), stockErr.Available)

	assert.Equal(t, int64(10), h.stock(t, "SKU-A"))
	assert.Equal(t, int64(1), h.stock(t, "SKU-B"))

	list, err := h.engine.ListOrders(ctx, order.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrderErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	h.seed(t, "SKU-USD", 10, types.USD(1000))

	tests := []struct {
		name   string
		user   string
		lines  []orders.LineInput
		target error
	}{
		{"no lines", "user-1", nil, orders.ErrInvalidInput},
		{"blank user", " ", []orders.LineInput{{SKU: "SKU-A", Qty: 1}}, orders.ErrInvalidInput},
		{"zero qty", "user-1", []orders.LineInput{{SKU: "SKU-A", Qty: 0}}, orders.ErrInvalidInput},
		{"blank sku", "user-1", []orders.LineInput{{SKU: "  ", Qty: 1}}, orders.ErrInvalidInput},
		{"unknown sku", "user-1", []orders.LineInput{{SKU: "NOPE", Qty: 1}}, orders.ErrProductNotFound},
		{"mixed currency", "user-1", []orders.LineInput{{SKU: "SKU-A", Qty: 1}, {SKU: "SKU-USD", Qty: 1}}, orders.ErrCurrencyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateOrder(ctx, tt.user, tt.lines)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.Equal(t, int64(10), h.stock(t, "SKU-A"))
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 7, types.COP(1000))

	var (
		wg      sync.WaitGroup
		placed  atomic.Int64
		refused atomic.Int64
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.CreateOrder(ctx, "user-1", []orders.LineInput{{SKU: "SKU-A", Qty: 1}})
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(7), placed.Load())
	assert.Equal(t, int64(13), refused.Load())
	assert.Equal(t, int64(0), h.stock(t, "SKU-A"))
}

func TestCreateOrderFromCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 5, types.COP(1000))

	_, err := h.engine.AddToCart(ctx, "user-1", "SKU-A", "Widget", 3)
	require.NoError(t, err)

	o, err := h.engine.CreateOrderFromCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.COP(3000), o.TotalAmount)
	assert.Equal(t, int64(2), h.stock(t, "SKU-A"))

	sum, err := h.engine.CartSummary(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, sum.ItemCount)

	_, err = h.engine.CreateOrderFromCart(ctx, "user-1")
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
}

func TestCreateOrderFromCartLeavesCartOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 2, types.COP(1000))

	_, err := h.engine.AddToCart(ctx, "user-1", "SKU-A", "Widget", 3)
	require.NoError(t, err)

	_, err = h.engine.CreateOrderFromCart(ctx, "user-1")
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	sum, err := h.engine.CartSummary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.TotalUnits)
	assert.Equal(t, int64(2), h.stock(t, "SKU-A"))
}

func TestSnapshotAttachedAfterCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 5, types.COP(100000))

	o := h.placeOrder(t, "SKU-A", 1)

	got, err := h.engine.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, types.COP(100000), got.Snapshot.NetAmount)
	assert.Equal(t, types.COP(19000), got.Snapshot.IvaAmount)
	assert.Equal(t, types.COP(119000), got.Snapshot.TotalAmount)
	assert.Equal(t, "user-1", got.Snapshot.Client.ID)
	assert.Len(t, got.Snapshot.Items, 1)
}

func TestSnapshotFailureDoesNotFailOrder(t *testing.T) {
	boom := errors.New("directory down")
	h := newHarness(t, orders.WithClientDirectory(orders.ClientDirectoryFunc(
		func(context.Context, string) (*order.ClientSnapshot, error) { return nil, boom },
	)))
	ctx := context.Background()
	h.seed(t, "SKU-A", 5, types.COP(1000))

	o := h.placeOrder(t, "SKU-A", 1)

	got, err := h.engine.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Nil(t, got.Snapshot)
}

func TestClientDirectorySnapshot(t *testing.T) {
	h := newHarness(t, orders.WithClientDirectory(orders.ClientDirectoryFunc(
		func(_ context.Context, userID string) (*order.ClientSnapshot, error) {
			return &order.ClientSnapshot{Name: "Ana Gómez", TaxID: "900123456", City: "Bogotá"}, nil
		},
	)))
	h.seed(t, "SKU-A", 5, types.COP(1000))

	o := h.placeOrder(t, "SKU-A", 1)

	got, err := h.engine.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "user-1", got.Snapshot.Client.ID)
	assert.Equal(t, "Ana Gómez", got.Snapshot.Client.Name)
	assert.Equal(t, "900123456", got.Snapshot.Client.TaxID)
}

func TestUpdateStatusFollowsGraph(t *testing.T) {
	allowed := map[order.Status][]order.Status{
		order.StatusDraft:     {order.StatusConfirmed, order.StatusCancelled},
		order.StatusConfirmed: {order.StatusSentToErp, order.StatusCancelled, order.StatusRejected, order.StatusError, order.StatusInvoiced},
		order.StatusSentToErp: {order.StatusInvoiced, order.StatusError},
		order.StatusError:     {order.StatusSentToErp},
		order.StatusInvoiced:  nil,
		order.StatusCancelled: nil,
		order.StatusRejected:  nil,
	}
	all := []order.Status{
		order.StatusDraft, order.StatusConfirmed, order.StatusSentToErp, order.StatusError,
		order.StatusInvoiced, order.StatusCancelled, order.StatusRejected,
	}

	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 1000, types.COP(1000))

	for _, from := range all {
		for _, to := range all {
			o := h.placeOrder(t, "SKU-A", 1)
			h.forceStatus(t, o.ID, from)

			_, err := h.engine.UpdateStatus(ctx, o.ID, to)
			got, getErr := h.engine.GetOrder(ctx, o.ID)
			require.NoError(t, getErr)

			if contains(allowed[from], to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got.Status)
			} else {
				assert.ErrorIs(t, err, orders.ErrInvalidTransition, "%s -> %s", from, to)
				assert.Equal(t, from, got.Status, "%s -> %s", from, to)
			}
		}
	}
}

func contains(list []order.Status, s order.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCancelOrderReleasesStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 5, types.COP(1000))

	o := h.placeOrder(t, "SKU-A", 3)
	assert.Equal(t, int64(2), h.stock(t, "SKU-A"))

	got, err := h.engine.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, int64(5), h.stock(t, "SKU-A"))

	_, err = h.engine.CancelOrder(ctx, o.ID)
	var te *orders.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "cancelled", te.From)
	assert.Equal(t, int64(5), h.stock(t, "SKU-A"))
	assert.Equal(t, 1, h.events.count("order.confirmed->cancelled"))
}

func TestRejectOrderReleasesStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 5, types.COP(1000))

	o := h.placeOrder(t, "SKU-A", 3)
	assert.Equal(t, int64(2), h.stock(t, "SKU-A"))

	got, err := h.engine.UpdateStatus(ctx, o.ID, order.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRejected, got.Status)
	assert.Equal(t, int64(5), h.stock(t, "SKU-A"))
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))

	first := h.placeOrder(t, "SKU-A", 1)
	h.placeOrder(t, "SKU-A", 1)
	_, err := h.engine.CancelOrder(ctx, first.ID)
	require.NoError(t, err)

	mine, err := h.engine.ListOrders(ctx, order.ListOpts{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	cancelled, err := h.engine.ListOrders(ctx, order.ListOpts{Status: order.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, first.ID, cancelled[0].ID)

	_, err = h.engine.ListOrders(ctx, order.ListOpts{Status: "lost"})
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	_, err = h.engine.GetOrder(ctx, orders.ID{})
	assert.True(t, orders.IsNotFound(err))
}
