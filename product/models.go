// Package product holds the stock ledger's catalog entries.
package product

import (
	"strings"

	"github.com/xraph/orders/types"
)

// Product is a sellable item keyed by SKU. StockQty is only changed through
// atomic reserve and release operations.
type Product struct {
	types.Entity
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	StockQty  int64       `json:"stock_qty"`
	UnitPrice types.Money `json:"unit_price"`
}

// NormalizeSKU trims and upper-cases a SKU so lookups are case-insensitive.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
