package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orders "github.com/xraph/orders"
	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/store/memory"
	"github.com/xraph/orders/store/storetest"
	"github.com/xraph/orders/types"
)

func seed(t *testing.T, s *memory.Store, sku string, stock int64) {
	t.Helper()
	require.NoError(t, s.PutProduct(context.Background(), &product.Product{
		Entity:    types.NewEntity(),
		SKU:       sku,
		Name:      sku,
		StockQty:  stock,
		UnitPrice: types.COP(100000),
	}))
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestReserveStockErrors(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, "SKU-1", 2)

	_, err := s.ReserveStock(ctx, "NOPE", 1)
	assert.True(t, orders.IsNotFound(err))

	_, err = s.ReserveStock(ctx, "SKU-1", 3)
	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(3), stockErr.Requested)
}

func TestRunInTxRollsBackCarts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.EnsureCart(ctx, "u1"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, orders.ErrCartNotFound)
}

func TestCartRoundTripDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.EnsureCart(ctx, "u1"))

	c, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	c.Add("A", "a", 1)
	require.NoError(t, s.SaveCart(ctx, c))

	c.Add("A", "a", 100)

	stored, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	it, _ := stored.Find("A")
	assert.Equal(t, int64(1), it.Qty)

	stale := cart.New("u1")
	assert.ErrorIs(t, s.SaveCart(ctx, stale), orders.ErrConcurrencyConflict)
}

func TestInvoiceSequencePerDay(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a, err := s.NextSequence(ctx, "20250101")
	require.NoError(t, err)
	b, err := s.NextSequence(ctx, "20250101")
	require.NoError(t, err)
	c, err := s.NextSequence(ctx, "20250102")
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 1}, []int64{a, b, c})
	assert.Equal(t, "FAC-20250101-0002", invoice.FormatNumber("20250101", b))
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(context.Background()), orders.ErrStoreClosed)
	_, err := s.GetProduct(context.Background(), "X")
	assert.ErrorIs(t, err, orders.ErrStoreClosed)
}
