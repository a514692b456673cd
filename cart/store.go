package cart

import "context"

// Store persists carts, one per user.
//
// LockCart must hold the cart row exclusively until the surrounding
// transaction ends; EnsureCart creates the row if missing without failing
// when a concurrent caller created it first.
type Store interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	EnsureCart(ctx context.Context, userID string) error
	LockCart(ctx context.Context, userID string) (*Cart, error)
	SaveCart(ctx context.Context, c *Cart) error
}
