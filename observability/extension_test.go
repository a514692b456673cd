package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/observability"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/types"
)

func TestMetricsExtensionCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	ctx := context.Background()

	o := &order.Order{ID: id.NewOrderID(), TotalAmount: types.COP(119000), Lines: make([]order.Line, 2)}
	require.NoError(t, m.OnOrderCreated(ctx, o))
	require.NoError(t, m.OnOrderCreated(ctx, o))

	o.Status = order.StatusCancelled
	require.NoError(t, m.OnOrderStatusChanged(ctx, o, order.StatusConfirmed))
	o.Status = order.StatusSentToErp
	require.NoError(t, m.OnOrderStatusChanged(ctx, o, order.StatusConfirmed))

	require.NoError(t, m.OnErpFailed(ctx, o, errors.New("down")))
	require.NoError(t, m.OnInvoiceIssued(ctx, &invoice.Invoice{TotalAmount: types.COP(119000)}))
	require.NoError(t, m.OnPaymentRegistered(ctx, &payment.Payment{Amount: types.COP(500)}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrderCreated.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderCancelled.(prometheus.Counter)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OrderRejected.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErpFailed.(prometheus.Counter)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvoiceIssued.(prometheus.Counter)))

	n, err := testutil.GatherAndCount(reg, "orders_order_total_amount", "orders_payment_amount")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	second := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	first.InvoicePaid.Inc()
	second.InvoicePaid.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.InvoicePaid.(prometheus.Counter)))

	f := observability.NewPrometheusFactory(reg)
	assert.Same(t, f.Counter("orders.x"), f.Counter("orders.x"))
}
