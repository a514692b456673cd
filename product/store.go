package product

import "context"

// Store persists products. ReserveStock must decrement in a single
// conditional statement so concurrent reservations can never oversell.
type Store interface {
	GetProduct(ctx context.Context, sku string) (*Product, error)
	PutProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, opts ListOpts) ([]*Product, error)
	ReserveStock(ctx context.Context, sku string, qty int64) (remaining int64, err error)
	ReleaseStock(ctx context.Context, sku string, qty int64) (remaining int64, err error)
}

// ListOpts filters a product listing.
type ListOpts struct {
	InStockOnly bool
	Limit       int
	Offset      int
}
