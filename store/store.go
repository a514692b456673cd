// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"

	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
)

// Tx is the set of entity stores visible inside one transaction. Lock*
// methods hold the row until the transaction commits or rolls back.
type Tx interface {
	product.Store
	cart.Store
	order.Store
	invoice.Store
	payment.Store
}

// TxFunc is the body of a transaction. Returning an error rolls back every
// write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the unified storage interface. Its Tx methods run in their own
// implicit transaction; RunInTx groups several calls into one atomic unit.
// Calling Store methods from inside fn is not allowed.
type Store interface {
	Tx

	RunInTx(ctx context.Context, fn TxFunc) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
