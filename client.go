package orders

import (
	"context"

	"github.com/xraph/orders/order"
)

// ClientDirectory resolves the billing identity captured in an order's
// financial snapshot.
type ClientDirectory interface {
	LookupClient(ctx context.Context, userID string) (*order.ClientSnapshot, error)
}

// ClientDirectoryFunc adapts a function to ClientDirectory.
type ClientDirectoryFunc func(ctx context.Context, userID string) (*order.ClientSnapshot, error)

// LookupClient implements ClientDirectory.
func (f ClientDirectoryFunc) LookupClient(ctx context.Context, userID string) (*order.ClientSnapshot, error) {
	return f(ctx, userID)
}

// lookupClient falls back to an identity built from the user ID when no
// directory is configured.
func (e *Engine) lookupClient(ctx context.Context, userID string) (order.ClientSnapshot, error) {
	if e.clients == nil {
		return order.ClientSnapshot{ID: userID, Name: userID}, nil
	}
	c, err := e.clients.LookupClient(ctx, userID)
	if err != nil {
		return order.ClientSnapshot{}, err
	}
	snap := *c
	if snap.ID == "" {
		snap.ID = userID
	}
	return snap, nil
}
