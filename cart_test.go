package orders_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
)

func TestAddToCartConsolidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.AddToCart(ctx, "u1", "sku-a", "Widget", 2)
	require.NoError(t, err)
	item, err := h.engine.AddToCart(ctx, "u1", " SKU-A ", "", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.Qty)
	assert.Equal(t, "Widget", item.Name)

	_, err = h.engine.AddToCart(ctx, "u1", "SKU-B", "Gadget", 1)
	require.NoError(t, err)

	sum, err := h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ItemCount)
	assert.Equal(t, int64(6), sum.TotalUnits)
	assert.Equal(t, "SKU-A", sum.Items[0].SKU)
}

func TestAddToCartValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.AddToCart(ctx, "u1", "SKU-A", "", 0)
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	_, err = h.engine.AddToCart(ctx, "", "", "", 1)
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
	var multi orders.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)
}

func TestConcurrentCartAddsAreNotLost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sku := "SKU-A"
			if i%2 == 1 {
				sku = "SKU-B"
			}
			_, err := h.engine.AddToCart(ctx, "u1", sku, "", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sum, err := h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), sum.TotalUnits)
	assert.Equal(t, 2, sum.ItemCount)
}

func TestSetCartQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.AddToCart(ctx, "u1", "SKU-A", "Widget", 2)
	require.NoError(t, err)

	require.NoError(t, h.engine.SetCartQuantity(ctx, "u1", "SKU-A", 7))
	sum, err := h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum.TotalUnits)

	require.NoError(t, h.engine.SetCartQuantity(ctx, "u1", "SKU-A", 0))
	sum, err = h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.ItemCount)

	// Removing from a user that never had a cart is a no-op.
	require.NoError(t, h.engine.SetCartQuantity(ctx, "ghost", "SKU-A", -1))
	_, err = h.engine.Store().GetCart(ctx, "ghost")
	assert.ErrorIs(t, err, orders.ErrCartNotFound)
}

func TestSetCartQuantityRequiresExistingLine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.AddToCart(ctx, "u1", "SKU-A", "Widget", 1)
	require.NoError(t, err)

	err = h.engine.SetCartQuantity(ctx, "u1", "NOPE", 4)
	assert.ErrorIs(t, err, orders.ErrCartItemNotFound)
	assert.True(t, orders.IsNotFound(err))

	sum, err := h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, "SKU-A", sum.Items[0].SKU)

	err = h.engine.SetCartQuantity(ctx, "ghost", "SKU-A", 2)
	assert.ErrorIs(t, err, orders.ErrCartItemNotFound)
	_, err = h.engine.Store().GetCart(ctx, "ghost")
	assert.ErrorIs(t, err, orders.ErrCartNotFound)
}

func TestRemoveAndClearCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := h.engine.AddToCart(ctx, "u1", fmt.Sprintf("SKU-%d", i), "", 1)
		require.NoError(t, err)
	}

	require.NoError(t, h.engine.RemoveFromCart(ctx, "u1", "SKU-1"))
	require.NoError(t, h.engine.RemoveFromCart(ctx, "u1", "SKU-404"))
	sum, err := h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ItemCount)

	require.NoError(t, h.engine.ClearCart(ctx, "u1"))
	sum, err = h.engine.CartSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.ItemCount)
	assert.NotNil(t, sum.Items)
}

func TestCartSummaryWithoutCart(t *testing.T) {
	h := newHarness(t)

	sum, err := h.engine.CartSummary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", sum.UserID)
	assert.Zero(t, sum.ItemCount)
	assert.Empty(t, sum.Items)
}
