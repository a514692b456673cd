package orders

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/product"
	"github.com/xraph/orders/types"
)

// ──────────────────────────────────────────────────
// Stock Ledger
// ──────────────────────────────────────────────────

// LookupProduct returns the catalog entry for sku.
func (e *Engine) LookupProduct(ctx context.Context, sku string) (*product.Product, error) {
	return e.store.GetProduct(ctx, product.NormalizeSKU(sku))
}

// ListProducts lists catalog entries ordered by SKU.
func (e *Engine) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	return e.store.ListProducts(ctx, opts)
}

// PutProduct creates or replaces a catalog entry.
func (e *Engine) PutProduct(ctx context.Context, p *product.Product) (err error) {
	ctx, end := e.startSpan(ctx, "PutProduct")
	defer end(&err)

	p.SKU = product.NormalizeSKU(p.SKU)
	p.Name = strings.TrimSpace(p.Name)

	var errs MultiError
	if p.SKU == "" {
		errs.Add(ValidationError{Field: "sku", Message: "is required"})
	}
	if p.StockQty < 0 {
		errs.Add(ValidationError{Field: "stock_qty", Message: "must not be negative"})
	}
	if p.UnitPrice.IsNegative() {
		errs.Add(ValidationError{Field: "unit_price", Message: "must not be negative"})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	currency := strings.ToLower(strings.TrimSpace(p.UnitPrice.Currency))
	if currency == "" {
		currency = e.currency
	}
	p.UnitPrice = types.Money{Amount: p.UnitPrice.Amount, Currency: currency}
	if p.CreatedAt.IsZero() {
		p.Entity = types.NewEntityAt(e.now())
	} else {
		p.TouchAt(e.now())
	}

	return e.store.PutProduct(ctx, p)
}

// ReserveStock atomically takes qty units of sku and returns what remains.
// It fails with InsufficientStockError rather than going negative.
func (e *Engine) ReserveStock(ctx context.Context, sku string, qty int64) (remaining int64, err error) {
	ctx, end := e.startSpan(ctx, "ReserveStock", attribute.String("sku", sku), attribute.Int64("qty", qty))
	defer end(&err)

	if qty < 1 {
		return 0, ValidationError{Field: "qty", Message: "must be at least 1"}
	}
	return e.store.ReserveStock(ctx, product.NormalizeSKU(sku), qty)
}

// ReleaseStock returns qty previously reserved units of sku.
func (e *Engine) ReleaseStock(ctx context.Context, sku string, qty int64) (remaining int64, err error) {
	ctx, end := e.startSpan(ctx, "ReleaseStock", attribute.String("sku", sku), attribute.Int64("qty", qty))
	defer end(&err)

	if qty < 1 {
		return 0, ValidationError{Field: "qty", Message: "must be at least 1"}
	}
	return e.store.ReleaseStock(ctx, product.NormalizeSKU(sku), qty)
}
