package orders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/types"
)

func issueInvoice(t *testing.T, h *harness, price types.Money) *invoice.Invoice {
	t.Helper()
	h.seed(t, "SKU-A", 10, price)
	o := h.placeOrder(t, "SKU-A", 1)
	inv, err := h.engine.CreateInvoiceFromOrder(context.Background(), o.ID, "")
	require.NoError(t, err)
	return inv
}

func TestRegisterPaymentSinglePolicy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(100000)) // total 1190.00

	partial, err := h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID,
		Type:      payment.TypeInvoice,
		Amount:    types.COP(60000),
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, partial.Status)
	assert.Equal(t, inv.OrderID, partial.OrderID)
	assert.Equal(t, "user-1", partial.ClientID)
	assert.Equal(t, testNow, partial.PaymentDate)

	got, err := h.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusIssued, got.Status)

	_, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID,
		Type:      payment.TypeInvoice,
		Amount:    types.COP(119000),
		Method:    "transfer",
		Reference: "TRX-1",
	})
	require.NoError(t, err)

	got, err = h.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	require.NotNil(t, got.PaidDate)
	assert.Equal(t, 1, h.events.count("invoice.paid"))

	_, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID,
		Type:      payment.TypeInvoice,
		Amount:    types.COP(1),
		Method:    "cash",
	})
	assert.ErrorIs(t, err, orders.ErrInvoicePaid)

	payments, err := h.engine.ListInvoicePayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestRegisterPaymentCumulativePolicy(t *testing.T) {
	h := newHarness(t, orders.WithReconciliationPolicy(orders.ReconcileCumulative))
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(100000))

	for _, amount := range []int64{60000, 59000} {
		_, err := h.engine.RegisterPayment(ctx, orders.PaymentInput{
			InvoiceID: inv.ID,
			Type:      payment.TypeInvoice,
			Amount:    types.COP(amount),
			Method:    "cash",
		})
		require.NoError(t, err)
	}

	got, err := h.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)
}

func TestRegisterPaymentCurrencySpelling(t *testing.T) {
	for _, policy := range []orders.ReconciliationPolicy{orders.ReconcileSinglePayment, orders.ReconcileCumulative} {
		t.Run(string(policy), func(t *testing.T) {
			h := newHarness(t, orders.WithReconciliationPolicy(policy))
			ctx := context.Background()
			inv := issueInvoice(t, h, types.Money{Amount: 100000, Currency: "COP"})
			require.Equal(t, "cop", inv.TotalAmount.Currency)

			var (
				p   *payment.Payment
				err error
			)
			assert.NotPanics(t, func() {
				p, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
					InvoiceID: inv.ID,
					Type:      payment.TypeInvoice,
					Amount:    types.Money{Amount: 119000, Currency: "COP"},
					Method:    "cash",
				})
			})
			require.NoError(t, err)
			assert.Equal(t, "cop", p.Amount.Currency)

			got, err := h.engine.GetInvoice(ctx, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, invoice.StatusPaid, got.Status)
		})
	}
}

func TestRegisterPaymentRejectsOtherCurrency(t *testing.T) {
	h := newHarness(t)
	inv := issueInvoice(t, h, types.COP(100000))

	_, err := h.engine.RegisterPayment(context.Background(), orders.PaymentInput{
		InvoiceID: inv.ID,
		Type:      payment.TypeInvoice,
		Amount:    types.USD(119000),
		Method:    "cash",
	})
	assert.ErrorIs(t, err, orders.ErrCurrencyMismatch)
}

func TestCumulativeIgnoresCancelledPayments(t *testing.T) {
	h := newHarness(t, orders.WithReconciliationPolicy(orders.ReconcileCumulative))
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(100000))

	first, err := h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(60000), Method: "cash",
	})
	require.NoError(t, err)
	_, err = h.engine.CancelPayment(ctx, first.ID)
	require.NoError(t, err)

	_, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(59000), Method: "cash",
	})
	require.NoError(t, err)

	got, err := h.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusIssued, got.Status)
}

func TestRegisterPaymentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(1000))

	tests := []struct {
		name   string
		in     orders.PaymentInput
		target error
	}{
		{"zero amount", orders.PaymentInput{InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(0), Method: "cash"}, orders.ErrInvalidInput},
		{"negative amount", orders.PaymentInput{InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(-5), Method: "cash"}, orders.ErrInvalidInput},
		{"unknown type", orders.PaymentInput{InvoiceID: inv.ID, Type: "barter", Amount: types.COP(5), Method: "cash"}, orders.ErrInvalidInput},
		{"missing method", orders.PaymentInput{InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(5)}, orders.ErrInvalidInput},
		{"invoice type without invoice", orders.PaymentInput{Type: payment.TypeInvoice, Amount: types.COP(5), Method: "cash"}, orders.ErrInvalidInput},
		{"order type without order", orders.PaymentInput{Type: payment.TypeOrder, Amount: types.COP(5), Method: "cash"}, orders.ErrInvalidInput},
		{"advance without client", orders.PaymentInput{Type: payment.TypeAdvance, Amount: types.COP(5), Method: "cash"}, orders.ErrInvalidInput},
		{"currency mismatch", orders.PaymentInput{InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.USD(5), Method: "cash"}, orders.ErrCurrencyMismatch},
		{"order payment", orders.PaymentInput{OrderID: inv.OrderID, Type: payment.TypeOrder, Amount: types.COP(5), Method: "cash", ClientID: "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RegisterPayment(ctx, tt.in)
			if tt.target == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestRegisterPaymentOnCancelledInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(1000))

	_, err := h.engine.CancelInvoice(ctx, inv.ID, "duplicate")
	require.NoError(t, err)

	_, err = h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(1190), Method: "cash",
	})
	assert.ErrorIs(t, err, orders.ErrInvoiceCancelled)
}

func TestAdvancePayment(t *testing.T) {
	h := newHarness(t)

	p, err := h.engine.RegisterPayment(context.Background(), orders.PaymentInput{
		ClientID: "client-9",
		Type:     payment.TypeAdvance,
		Amount:   types.Money{Amount: 50000},
		Method:   "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "cop", p.Amount.Currency)
	assert.True(t, p.InvoiceID.IsNil())
}

func TestConfirmAndCancelPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := issueInvoice(t, h, types.COP(100000))

	p, err := h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(1000), Method: "cash",
	})
	require.NoError(t, err)

	confirmed, err := h.engine.ConfirmPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	_, err = h.engine.ConfirmPayment(ctx, p.ID)
	var te *orders.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "payment", te.Entity)

	_, err = h.engine.CancelPayment(ctx, p.ID)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	other, err := h.engine.RegisterPayment(ctx, orders.PaymentInput{
		InvoiceID: inv.ID, Type: payment.TypeInvoice, Amount: types.COP(1000), Method: "cash",
	})
	require.NoError(t, err)
	cancelled, err := h.engine.CancelPayment(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, cancelled.Status)

	stored, err := h.engine.GetPayment(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, stored.Status)

	_, err = h.engine.GetPayment(ctx, orders.ID{})
	assert.ErrorIs(t, err, orders.ErrPaymentNotFound)

	assert.Equal(t, []int{1, 1}, []int{
		h.events.count("payment.confirmed"),
		h.events.count("payment.cancelled"),
	})
}
