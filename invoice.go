package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/types"
)

// ──────────────────────────────────────────────────
// Invoice Ledger
// ──────────────────────────────────────────────────

// CreateInvoiceFromOrder issues the invoice for an order in confirmed,
// sent_to_erp or invoiced status. The number FAC-YYYYMMDD-NNNN comes from a
// per-day counter incremented in the same transaction; a lost numbering race
// is retried. IVA is the net amount times the tax rate, rounded half-up to
// the currency's minor unit.
func (e *Engine) CreateInvoiceFromOrder(ctx context.Context, orderID id.OrderID, typ invoice.Type) (inv *invoice.Invoice, err error) {
	ctx, end := e.startSpan(ctx, "CreateInvoiceFromOrder", attribute.String("order_id", orderID.String()))
	defer end(&err)

	if typ == "" {
		typ = e.invoiceType
	}
	if !typ.Valid() {
		return nil, ValidationError{Field: "type", Message: "unknown invoice type " + string(typ)}
	}

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !invoiceable(o.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotInvoiceable, orderID, o.Status)
	}
	if _, err := e.attachSnapshot(ctx, orderID); err != nil {
		return nil, err
	}

	var (
		o2   *order.Order
		from order.Status
	)
	inv, err = backoff.Retry(ctx, func() (*invoice.Invoice, error) {
		inv, issued, prev, err := e.issueInvoice(ctx, orderID, typ)
		if err != nil {
			if IsRetryable(err) {
				e.logger.Debug("invoice numbering conflict, retrying", "order_id", orderID.String(), "error", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		o2, from = issued, prev
		return inv, nil
	},
		backoff.WithBackOff(numberingBackOff()),
		backoff.WithMaxTries(e.invoiceRetries),
	)
	if err != nil {
		return nil, unwrapPermanent(err)
	}

	e.logger.Info("invoice issued",
		"invoice_id", inv.ID.String(),
		"number", inv.Number,
		"order_id", orderID.String(),
		"total", inv.TotalAmount.String(),
	)

	e.plugins.EmitInvoiceIssued(ctx, inv)
	e.statusChanged(ctx, o2, from)
	return inv, nil
}

// issueInvoice runs one numbering attempt in its own transaction.
func (e *Engine) issueInvoice(ctx context.Context, orderID id.OrderID, typ invoice.Type) (*invoice.Invoice, *order.Order, order.Status, error) {
	var (
		inv  *invoice.Invoice
		o    *order.Order
		from order.Status
	)
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if !invoiceable(o.Status) {
			return fmt.Errorf("%w: order %s is %s", ErrOrderNotInvoiceable, orderID, o.Status)
		}

		switch existing, err := tx.GetActiveInvoiceByOrder(ctx, orderID); {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrInvoiceExists, existing.Number)
		case !IsNotFound(err):
			return err
		}

		if o.Snapshot == nil {
			return ErrSnapshotUnavailable
		}

		now := e.now()
		day := invoice.SequenceDay(now)
		seq, err := tx.NextSequence(ctx, day)
		if err != nil {
			return err
		}

		net := o.Snapshot.NetAmount
		iva := net.MulRate(e.taxRate)
		client := o.Snapshot.Client

		inv = &invoice.Invoice{
			Entity:      types.NewEntityAt(now),
			ID:          id.NewInvoiceID(),
			Number:      invoice.FormatNumber(day, seq),
			OrderID:     o.ID,
			ClientID:    client.ID,
			Type:        typ,
			Status:      invoice.StatusIssued,
			NetAmount:   net,
			IvaAmount:   iva,
			TotalAmount: net.Add(iva),
			ClientName:  client.Name,
			TaxID:       client.TaxID,
			Email:       client.Email,
			Phone:       client.Phone,
			Address:     client.Address,
			City:        client.City,
			IssueDate:   now,
			DueDate:     now.AddDate(0, 0, e.paymentTermsDays),
		}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}

		o.InvoiceNumber = inv.Number
		if o.Status == order.StatusInvoiced {
			return tx.UpdateOrder(ctx, o)
		}
		return e.transition(ctx, tx, o, order.StatusInvoiced)
	})
	if err != nil {
		return nil, nil, "", err
	}
	return inv, o, from, nil
}

func invoiceable(s order.Status) bool {
	switch s {
	case order.StatusConfirmed, order.StatusSentToErp, order.StatusInvoiced:
		return true
	}
	return false
}

func numberingBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return b
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invID)
}

// GetInvoiceByNumber retrieves an invoice by its FAC number.
func (e *Engine) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return e.store.GetInvoiceByNumber(ctx, strings.TrimSpace(number))
}

// GetInvoiceByOrder returns the order's non-cancelled invoice.
func (e *Engine) GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return e.store.GetActiveInvoiceByOrder(ctx, orderID)
}

// ListInvoicePayments lists the payments applied to an invoice, oldest first.
func (e *Engine) ListInvoicePayments(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return e.store.ListPaymentsByInvoice(ctx, invID)
}

// CancelInvoice cancels an invoice. Cancelling twice is a no-op; paid
// invoices cannot be cancelled. The order keeps its status but loses the
// invoice number, so a replacement can be issued.
func (e *Engine) CancelInvoice(ctx context.Context, invID id.InvoiceID, reason string) (inv *invoice.Invoice, err error) {
	ctx, end := e.startSpan(ctx, "CancelInvoice", attribute.String("invoice_id", invID.String()))
	defer end(&err)

	var noop bool
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		inv, err = tx.LockInvoice(ctx, invID)
		if err != nil {
			return err
		}

		switch inv.Status {
		case invoice.StatusCancelled:
			noop = true
			return nil
		case invoice.StatusPaid:
			return fmt.Errorf("%w: %s", ErrInvoicePaid, inv.Number)
		}

		now := e.now()
		inv.Status = invoice.StatusCancelled
		inv.CancelledAt = &now
		inv.CancelReason = strings.TrimSpace(reason)
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		o, err := tx.LockOrder(ctx, inv.OrderID)
		if err != nil {
			return err
		}
		if o.InvoiceNumber != inv.Number {
			return nil
		}
		o.InvoiceNumber = ""
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return inv, nil
	}

	e.logger.Info("invoice cancelled",
		"invoice_id", inv.ID.String(),
		"number", inv.Number,
		"reason", inv.CancelReason,
	)

	e.plugins.EmitInvoiceCancelled(ctx, inv)
	return inv, nil
}
