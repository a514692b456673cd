package orders_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/types"
)

func TestCreateInvoiceAmounts(t *testing.T) {
	tests := []struct {
		name  string
		price types.Money
		qty   int64
		net   types.Money
		iva   types.Money
		total types.Money
	}{
		{"1000.00", types.COP(100000), 1, types.COP(100000), types.COP(19000), types.COP(119000)},
		{"half cent rounds up", types.COP(50), 1, types.COP(50), types.COP(10), types.COP(60)},
		{"below half rounds down", types.COP(1), 2, types.COP(2), types.COP(0), types.COP(2)},
		{"multi unit", types.COP(333333), 3, types.COP(999999), types.COP(190000), types.COP(1189999)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, "SKU-A", 10, tt.price)
			o := h.placeOrder(t, "SKU-A", tt.qty)

			inv, err := h.engine.CreateInvoiceFromOrder(context.Background(), o.ID, "")
			require.NoError(t, err)
			assert.Equal(t, tt.net, inv.NetAmount)
			assert.Equal(t, tt.iva, inv.IvaAmount)
			assert.Equal(t, tt.total, inv.TotalAmount)
			assert.Equal(t, inv.NetAmount.Add(inv.IvaAmount), inv.TotalAmount)
		})
	}
}

func TestCreateInvoiceFromOrder(t *testing.T) {
	h := newHarness(t, orders.WithPaymentTermsDays(15))
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(100000))
	o := h.placeOrder(t, "SKU-A", 1)

	inv, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, invoice.TypeElectronic)
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250314-0001", inv.Number)
	assert.Equal(t, invoice.StatusIssued, inv.Status)
	assert.Equal(t, invoice.TypeElectronic, inv.Type)
	assert.Equal(t, "user-1", inv.ClientID)
	assert.Equal(t, testNow.AddDate(0, 0, 15), inv.DueDate)

	got, err := h.engine.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusInvoiced, got.Status)
	assert.Equal(t, inv.Number, got.InvoiceNumber)

	_, err = h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
	assert.ErrorIs(t, err, orders.ErrInvoiceExists)

	byNumber, err := h.engine.GetInvoiceByNumber(ctx, inv.Number)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)

	_, err = h.engine.CreateInvoiceFromOrder(ctx, o.ID, "proforma")
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
}

func TestCreateInvoiceRequiresInvoiceableOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	o := h.placeOrder(t, "SKU-A", 1)

	_, err := h.engine.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
	assert.ErrorIs(t, err, orders.ErrOrderNotInvoiceable)

	_, err = h.engine.CreateInvoiceFromOrder(ctx, orders.ID{}, "")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestConcurrentInvoiceNumbersAreUnique(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 100, types.COP(1000))

	const n = 20
	placed := make([]*order.Order, n)
	for i := range placed {
		placed[i] = h.placeOrder(t, "SKU-A", 1)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for _, o := range placed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, numbers[inv.Number], "duplicate number %s", inv.Number)
			numbers[inv.Number] = true
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("FAC-20250314-%04d", i)])
	}
}

func TestConcurrentInvoiceForSameOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	o := h.placeOrder(t, "SKU-A", 1)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
			if err == nil {
				mu.Lock()
				issued++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, orders.ErrInvoiceExists)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, issued)
}

func TestCancelInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	o := h.placeOrder(t, "SKU-A", 1)

	inv, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
	require.NoError(t, err)

	cancelled, err := h.engine.CancelInvoice(ctx, inv.ID, " wrong client ")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusCancelled, cancelled.Status)
	assert.Equal(t, "wrong client", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := h.engine.CancelInvoice(ctx, inv.ID, "other")
	require.NoError(t, err)
	assert.Equal(t, "wrong client", again.CancelReason)
	assert.Equal(t, 1, h.events.count("invoice.cancelled"))

	got, err := h.engine.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusInvoiced, got.Status)
	assert.Empty(t, got.InvoiceNumber)

	replacement, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "FAC-20250314-0002", replacement.Number)

	active, err := h.engine.GetInvoiceByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, active.ID)
}

func TestCancelPaidInvoiceFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-A", 10, types.COP(1000))
	o := h.placeOrder(t, "SKU-A", 1)

	inv, err := h.engine.CreateInvoiceFromOrder(ctx, o.ID, "")
	require.NoError(t, err)
	_, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID,
		Type:      "invoice",
		Amount:    inv.TotalAmount,
		Method:    "transfer",
	})
	require.NoError(t, err)

	_, err = h.engine.CancelInvoice(ctx, inv.ID, "")
	assert.ErrorIs(t, err, orders.ErrInvoicePaid)
}

func TestCustomTaxRate(t *testing.T) {
	h := newHarness(t, orders.WithTaxRate(decimal.RequireFromString("0.05")))
	h.seed(t, "SKU-A", 10, types.COP(100000))
	o := h.placeOrder(t, "SKU-A", 1)

	inv, err := h.engine.CreateInvoiceFromOrder(context.Background(), o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.COP(5000), inv.IvaAmount)
	assert.Equal(t, types.COP(105000), inv.TotalAmount)
}
