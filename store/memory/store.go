// Package memory provides an in-process store.Store for tests and
// single-node deployments.
//
// Transactions are serialized by a store-wide lock and run against a copy of
// the committed state that is swapped in on success, so every RunInTx is
// atomic and isolated. Entities are copied on the way in and out; callers
// never share memory with the store.
package memory

import (
	"context"
	"maps"
	"sync"

	orders "github.com/xraph/orders"
	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type state struct {
	products  map[string]product.Product
	carts     map[string]*cart.Cart // by user ID
	orders    map[string]*order.Order
	invoices  map[string]invoice.Invoice
	sequences map[string]int64
	payments  map[string]payment.Payment
}

func newState() *state {
	return &state{
		products:  make(map[string]product.Product),
		carts:     make(map[string]*cart.Cart),
		orders:    make(map[string]*order.Order),
		invoices:  make(map[string]invoice.Invoice),
		sequences: make(map[string]int64),
		payments:  make(map[string]payment.Payment),
	}
}

// clone copies the maps. Stored pointers are never mutated in place, so a
// shallow copy is enough.
func (s *state) clone() *state {
	return &state{
		products:  maps.Clone(s.products),
		carts:     maps.Clone(s.carts),
		orders:    maps.Clone(s.orders),
		invoices:  maps.Clone(s.invoices),
		sequences: maps.Clone(s.sequences),
		payments:  maps.Clone(s.payments),
	}
}

// Store is an in-memory store.Store.
type Store struct {
	txMu sync.Mutex // serializes writers

	mu     sync.RWMutex // guards st and closed
	st     *state
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

// RunInTx implements store.Store.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return orders.ErrStoreClosed
	}
	work := s.st.clone()
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, &txn{st: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return orders.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Further calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// read runs fn against the committed state without blocking writers.
func (s *Store) read(fn func(t *txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return orders.ErrStoreClosed
	}
	return fn(&txn{st: s.st})
}

// write runs fn in its own transaction.
func (s *Store) write(ctx context.Context, fn func(t *txn) error) error {
	return s.RunInTx(ctx, func(_ context.Context, tx store.Tx) error {
		return fn(tx.(*txn))
	})
}
