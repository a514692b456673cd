package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store/memory"
	"github.com/xraph/orders/types"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{Currency: "usd"})
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, "0.19", cfg.TaxRate)
	assert.Equal(t, "single", cfg.Reconciliation)
	assert.Equal(t, 30, cfg.PaymentTermsDays)
	assert.Equal(t, 30*time.Second, cfg.ErpTimeout)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{TaxRate: "0.05"}
	prog := Config{TaxRate: "0.10", Reconciliation: "cumulative", DisableMigrate: true}

	cfg := mergeConfigurations(yaml, prog)
	assert.Equal(t, "0.05", cfg.TaxRate)
	assert.Equal(t, "cumulative", cfg.Reconciliation)
	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, "cop", cfg.Currency)
}

func TestBuildEngineOptsRejectsBadValues(t *testing.T) {
	_, err := buildEngineOpts(Config{TaxRate: "abc"}, nil)
	assert.Error(t, err)

	_, err = buildEngineOpts(Config{TaxRate: "-0.1"}, nil)
	assert.Error(t, err)

	_, err = buildEngineOpts(Config{Reconciliation: "monthly"}, nil)
	assert.Error(t, err)
}

func TestBuildEngineOptsConfiguresEngine(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.PutProduct(ctx, &product.Product{
		SKU:       "SKU-A",
		Name:      "Widget",
		StockQty:  5,
		UnitPrice: types.COP(100000),
	}))

	cfg := mergeWithDefaults(Config{TaxRate: "0.05", DisableAutoInvoice: true})
	opts, err := buildEngineOpts(cfg, []orders.Option{orders.WithErpAdapter(erp.NewFake())})
	require.NoError(t, err)

	eng := orders.New(s, opts...)
	require.NoError(t, eng.Start(ctx))
	defer func() { _ = eng.Stop() }()

	o, err := eng.CreateOrder(ctx, "user-1", []orders.LineInput{{SKU: "SKU-A", Qty: 1}})
	require.NoError(t, err)
	_, err = eng.SendToErp(ctx, o.ID)
	require.NoError(t, err)

	got, err := eng.MarkInvoiced(ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusInvoiced, got.Status)
	assert.Empty(t, got.InvoiceNumber)

	inv, err := eng.CreateInvoiceFromOrder(ctx, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.COP(5000), inv.IvaAmount)
}
