package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/plugin"
)

type statusCounter struct {
	name  string
	calls atomic.Int32
	err   error
	from  order.Status
}

func (s *statusCounter) Name() string { return s.name }

func (s *statusCounter) OnOrderStatusChanged(_ context.Context, _ *order.Order, from order.Status) error {
	s.calls.Add(1)
	s.from = from
	return s.err
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) OnOrderCreated(context.Context, *order.Order) error { panic("boom") }

type slow struct{ released chan struct{} }

func (slow) Name() string { return "slow" }

func (s slow) OnOrderCreated(context.Context, *order.Order) error {
	<-s.released
	return nil
}

type bare struct{}

func (bare) Name() string { return "bare" }

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(&statusCounter{name: "a"}))
	require.NoError(t, r.Register(bare{}))

	err := r.Register(&statusCounter{name: "a"})
	assert.Error(t, err)
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.List(), 2)
	assert.NotNil(t, r.Get("bare"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := newRegistry()
	failing := &statusCounter{name: "failing", err: errors.New("nope")}
	ok := &statusCounter{name: "ok"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(bare{}))

	o := &order.Order{ID: id.NewOrderID(), Status: order.StatusSentToErp}
	r.EmitOrderStatusChanged(context.Background(), o, order.StatusConfirmed)

	// A failing hook does not stop later hooks.
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, order.StatusConfirmed, ok.from)

	// No implementers: nothing happens.
	r.EmitOrderCreated(context.Background(), o)
}

func TestEmitRecoversPanics(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(panicky{}))

	assert.NotPanics(t, func() {
		r.EmitOrderCreated(context.Background(), &order.Order{ID: id.NewOrderID()})
	})
}

func TestEmitTimesOut(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	s := slow{released: make(chan struct{})}
	defer close(s.released)
	require.NoError(t, r.Register(s))

	start := time.Now()
	r.EmitOrderCreated(context.Background(), &order.Order{ID: id.NewOrderID()})
	assert.Less(t, time.Since(start), time.Second)
}
