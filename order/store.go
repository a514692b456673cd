package order

import (
	"context"

	"github.com/xraph/orders/id"
)

// Store persists orders. Lines are written once by CreateOrder and never
// updated.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	LockOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	ListOrders(ctx context.Context, opts ListOpts) ([]*Order, error)
}

// ListOpts filters an order listing. Results are newest first.
type ListOpts struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}
