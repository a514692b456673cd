package orders

import (
	"context"
	"fmt"
	"slices"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/store"
)

// scheduleSnapshot attaches the financial snapshot in the background. Stop
// and Wait drain pending work; after Stop nothing is scheduled and SendToErp
// builds the snapshot on demand.
func (e *Engine) scheduleSnapshot(orderID id.OrderID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		e.logger.Debug("engine stopped, order snapshot skipped", "order_id", orderID.String())
		return
	}
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.snapshotTimeout)
		defer cancel()

		if _, err := e.attachSnapshot(ctx, orderID); err != nil {
			e.logger.Error("failed to attach order snapshot",
				"order_id", orderID.String(),
				"error", err,
			)
			return
		}

		e.logger.Debug("order snapshot attached", "order_id", orderID.String())
	}()
}

// attachSnapshot sets the order's financial snapshot unless it already has
// one, and returns the order. It is safe to call repeatedly.
func (e *Engine) attachSnapshot(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Snapshot != nil {
		return o, nil
	}

	client, err := e.lookupClient(ctx, o.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: client lookup: %w", ErrSnapshotUnavailable, err)
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Snapshot != nil {
			return nil
		}
		o.Snapshot = e.buildSnapshot(o, client)
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// buildSnapshot derives net, IVA and total from the order lines.
func (e *Engine) buildSnapshot(o *order.Order, client order.ClientSnapshot) *order.FinancialSnapshot {
	net := o.TotalAmount
	iva := net.MulRate(e.taxRate)
	return &order.FinancialSnapshot{
		NetAmount:   net,
		IvaAmount:   iva,
		TotalAmount: net.Add(iva),
		Client:      client,
		Items:       slices.Clone(o.Lines),
		CapturedAt:  e.now(),
	}
}
