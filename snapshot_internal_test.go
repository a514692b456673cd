package orders_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/store/memory"
)

// syncBuffer guards a bytes.Buffer shared with background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestScheduleSnapshotAfterStopIsSkipped(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := orders.New(memory.New(), orders.WithLogger(logger))
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Stop())

	e.ScheduleSnapshot(id.NewOrderID())
	e.Wait()

	assert.Contains(t, logs.String(), "order snapshot skipped")
	assert.NotContains(t, logs.String(), "failed to attach order snapshot")
}

func TestStopRacesScheduleSnapshot(t *testing.T) {
	e := orders.New(memory.New(), orders.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, e.Start(context.Background()))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ScheduleSnapshot(id.NewOrderID())
		}()
	}
	assert.NotPanics(t, func() { _ = e.Stop() })
	wg.Wait()
	e.Wait()
}
