package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/store"
)

// ErpSubmission is the outcome of a successful ERP hand-off.
type ErpSubmission struct {
	OrderID      id.OrderID   `json:"order_id"`
	ErpReference string       `json:"erp_reference"`
	Status       order.Status `json:"status"`
}

// ──────────────────────────────────────────────────
// ERP Integration
// ──────────────────────────────────────────────────

// SendToErp hands a confirmed (or previously failed) order to the ERP.
//
// The adapter is called outside any transaction. A failure moves the order
// to error, records the ERP message and returns an *ErpError. Success stores
// the ERP reference and moves the order to sent_to_erp.
func (e *Engine) SendToErp(ctx context.Context, orderID id.OrderID) (sub *ErpSubmission, err error) {
	ctx, end := e.startSpan(ctx, "SendToErp", attribute.String("order_id", orderID.String()))
	defer end(&err)

	if e.erp == nil {
		return nil, ErrErpAdapterMissing
	}

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanTransition(o.Status, order.StatusSentToErp) {
		return nil, &TransitionError{Entity: "order", From: string(o.Status), To: string(order.StatusSentToErp)}
	}

	o, err = e.attachSnapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	expected := o.Status
	if !order.CanTransition(expected, order.StatusSentToErp) {
		return nil, &TransitionError{Entity: "order", From: string(expected), To: string(order.StatusSentToErp)}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.erpTimeout)
	res, callErr := e.erp.SendInvoice(callCtx, erp.NewDocument(o))
	cancel()

	if callErr != nil || !accepted(res) {
		erpErr, recErr := e.recordErpFailure(ctx, orderID, expected, res, callErr)
		if recErr != nil {
			return nil, errors.Join(erpErr, recErr)
		}
		return nil, erpErr
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != expected {
			return fmt.Errorf("%w: order %s moved to %s during erp hand-off",
				ErrConcurrencyConflict, orderID, o.Status)
		}
		o.ErpReference = res.Reference
		o.ErpMessage = res.Message
		return e.transition(ctx, tx, o, order.StatusSentToErp)
	})
	if err != nil {
		e.logger.Warn("erp accepted order but the result could not be stored",
			"order_id", orderID.String(),
			"erp_reference", res.Reference,
			"error", err,
		)
		return nil, err
	}

	e.statusChanged(ctx, o, expected)

	return &ErpSubmission{
		OrderID:      o.ID,
		ErpReference: o.ErpReference,
		Status:       o.Status,
	}, nil
}

// recordErpFailure parks the order in error and builds the *ErpError for
// the caller. A repeated failure only refreshes the stored message. The
// second result reports a failure to persist the outcome.
func (e *Engine) recordErpFailure(ctx context.Context, orderID id.OrderID, expected order.Status, res *erp.Result, cause error) (*ErpError, error) {
	msg := erpMessage(res, cause)
	erpErr := &ErpError{OrderID: orderID.String(), Message: msg, Err: cause}

	var o *order.Order
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != expected {
			return fmt.Errorf("%w: order %s moved to %s during erp hand-off",
				ErrConcurrencyConflict, orderID, o.Status)
		}
		o.ErpMessage = msg
		if o.Status == order.StatusError {
			return tx.UpdateOrder(ctx, o)
		}
		return e.transition(ctx, tx, o, order.StatusError)
	})
	if err != nil {
		e.logger.Error("failed to record erp failure",
			"order_id", orderID.String(),
			"erp_message", msg,
			"error", err,
		)
		return erpErr, err
	}

	e.logger.Warn("erp hand-off failed",
		"order_id", orderID.String(),
		"erp_message", msg,
	)

	e.statusChanged(ctx, o, expected)
	e.plugins.EmitErpFailed(ctx, o.Clone(), erpErr)
	return erpErr, nil
}

// accepted reports whether res is a success carrying a reference.
func accepted(res *erp.Result) bool {
	return res != nil && res.Success && strings.TrimSpace(res.Reference) != ""
}

func erpMessage(res *erp.Result, cause error) string {
	switch {
	case cause != nil:
		return cause.Error()
	case res == nil:
		return "empty erp response"
	case res.Success && strings.TrimSpace(res.Reference) == "":
		return "erp accepted the document without a reference"
	case strings.TrimSpace(res.Message) != "":
		return res.Message
	}
	return "erp rejected the document"
}

// SyncErpStatus polls the ERP for an order in sent_to_erp. An ERP-reported
// invoice marks the order invoiced; an ERP-reported rejection moves it to
// error. Orders in any other status are returned unchanged.
func (e *Engine) SyncErpStatus(ctx context.Context, orderID id.OrderID) (o *order.Order, err error) {
	ctx, end := e.startSpan(ctx, "SyncErpStatus", attribute.String("order_id", orderID.String()))
	defer end(&err)

	if e.erp == nil {
		return nil, ErrErpAdapterMissing
	}

	o, err = e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusSentToErp {
		return o, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.erpTimeout)
	res, err := e.erp.CheckStatus(callCtx, o.ErpReference)
	cancel()
	if err != nil {
		return nil, &ErpError{OrderID: orderID.String(), Message: err.Error(), Err: err}
	}
	if res == nil {
		return nil, &ErpError{OrderID: orderID.String(), Message: erpMessage(nil, nil)}
	}

	switch {
	case res.Status == erp.StatusInvoiced:
		return e.MarkInvoiced(ctx, orderID, o.ErpReference)
	case res.Status == erp.StatusRejected || !res.Success:
		if _, recErr := e.recordErpFailure(ctx, orderID, order.StatusSentToErp, res, nil); recErr != nil {
			return nil, recErr
		}
		return e.store.GetOrder(ctx, orderID)
	}
	return o, nil
}

// MarkInvoiced records the ERP's invoicing of an order. It requires
// sent_to_erp and, when erpReference is given, that it matches the stored
// reference. Calling it again for an invoiced order is a no-op.
//
// With auto-issue on, the invoice is issued right after; a failure there is
// logged and does not undo the transition.
func (e *Engine) MarkInvoiced(ctx context.Context, orderID id.OrderID, erpReference string) (o *order.Order, err error) {
	ctx, end := e.startSpan(ctx, "MarkInvoiced", attribute.String("order_id", orderID.String()))
	defer end(&err)

	erpReference = strings.TrimSpace(erpReference)

	var (
		from order.Status
		noop bool
	)
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status

		if o.Status == order.StatusInvoiced {
			if erpReference != "" && o.ErpReference != "" && erpReference != o.ErpReference {
				return fmt.Errorf("%w: order %s was invoiced under %q", ErrReferenceMismatch, orderID, o.ErpReference)
			}
			noop = true
			return nil
		}
		if o.Status != order.StatusSentToErp {
			return &TransitionError{Entity: "order", From: string(o.Status), To: string(order.StatusInvoiced)}
		}
		if erpReference != "" && erpReference != o.ErpReference {
			return fmt.Errorf("%w: got %q, order %s has %q", ErrReferenceMismatch, erpReference, orderID, o.ErpReference)
		}
		return e.transition(ctx, tx, o, order.StatusInvoiced)
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return o, nil
	}

	e.statusChanged(ctx, o, from)

	if e.autoIssueInvoice {
		_, err := e.CreateInvoiceFromOrder(ctx, orderID, e.invoiceType)
		switch {
		case err == nil:
			if fresh, err := e.store.GetOrder(ctx, orderID); err == nil {
				o = fresh
			}
		case !errors.Is(err, ErrInvoiceExists):
			e.logger.Warn("failed to issue invoice for invoiced order",
				"order_id", orderID.String(),
				"error", err,
			)
		}
	}

	return o, nil
}
