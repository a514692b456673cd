package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
)

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"SKU-A:2", " sku-b ", "SKU-C: 5"})
	require.NoError(t, err)
	assert.Equal(t, []orders.LineInput{
		{SKU: "SKU-A", Qty: 2},
		{SKU: "sku-b", Qty: 1},
		{SKU: "SKU-C", Qty: 5},
	}, lines)

	_, err = parseLines([]string{"SKU-A:two"})
	assert.Error(t, err)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("ORDERS_DRIVER", "postgres")
	t.Setenv("ORDERS_TAX_RATE", "0.05")
	t.Setenv("ORDERS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := parseEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "0.05", cfg.TaxRate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "cop", cfg.Currency)
	assert.Equal(t, "orders.events", cfg.KafkaTopic)
}

func TestEngineOptionsValidation(t *testing.T) {
	cfg := &config{TaxRate: "x", Reconciliation: "single"}
	_, err := cfg.engineOptions(cfg.logger())
	assert.Error(t, err)

	cfg = &config{TaxRate: "0.19", Reconciliation: "weekly"}
	_, err = cfg.engineOptions(cfg.logger())
	assert.Error(t, err)

	cfg = &config{TaxRate: "0.19", Reconciliation: "single", ErpURL: "not-a-url"}
	_, err = cfg.engineOptions(cfg.logger())
	assert.Error(t, err)
}

func TestOpenStoreRequiresURL(t *testing.T) {
	for _, driver := range []string{"postgres", "mongo"} {
		_, err := (&config{Driver: driver}).openStore(context.Background())
		assert.Error(t, err, driver)
	}
	_, err := (&config{Driver: "sqlite"}).openStore(context.Background())
	assert.Error(t, err)
}

func TestProductRoundTripOnMemoryStore(t *testing.T) {
	t.Setenv("ORDERS_DRIVER", "memory")
	t.Setenv("ORDERS_LOG_LEVEL", "error")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{"orders", "product", "put",
		"--sku", "SKU-A", "--name", "Widget", "--stock", "3", "--price", "1500.50"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"sku": "SKU-A"`)
	assert.Contains(t, out.String(), `"stock_qty": 3`)
}
