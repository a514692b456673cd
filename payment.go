package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/types"
)

// PaymentInput describes money received. Amount must be positive. Invoice
// payments need InvoiceID and order payments need OrderID; ClientID is
// taken from the invoice or order when omitted.
type PaymentInput struct {
	InvoiceID   id.InvoiceID `json:"invoice_id"`
	OrderID     id.OrderID   `json:"order_id"`
	ClientID    string       `json:"client_id" validate:"max=120"`
	Type        payment.Type `json:"type" validate:"required,oneof=invoice order advance"`
	Amount      types.Money  `json:"amount"`
	Method      string       `json:"method" validate:"required,max=40"`
	Reference   string       `json:"reference" validate:"max=120"`
	PaymentDate time.Time    `json:"payment_date"`
}

// ──────────────────────────────────────────────────
// Payment Ledger
// ──────────────────────────────────────────────────

// RegisterPayment records a pending payment. When it is applied to an
// invoice, the invoice is reconciled under its row lock and marked paid once
// the configured ReconciliationPolicy is satisfied.
func (e *Engine) RegisterPayment(ctx context.Context, in PaymentInput) (p *payment.Payment, err error) {
	ctx, end := e.startSpan(ctx, "RegisterPayment", attribute.String("type", string(in.Type)))
	defer end(&err)

	in.Method = strings.TrimSpace(in.Method)
	in.ClientID = strings.TrimSpace(in.ClientID)
	if err := e.validatePayment(in); err != nil {
		return nil, err
	}

	var paid *invoice.Invoice
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := e.now()
		p = &payment.Payment{
			Entity:      types.NewEntityAt(now),
			ID:          id.NewPaymentID(),
			InvoiceID:   in.InvoiceID,
			OrderID:     in.OrderID,
			ClientID:    in.ClientID,
			Type:        in.Type,
			Amount:      in.Amount,
			Status:      payment.StatusPending,
			Method:      in.Method,
			Reference:   strings.TrimSpace(in.Reference),
			PaymentDate: in.PaymentDate,
		}
		if p.PaymentDate.IsZero() {
			p.PaymentDate = now
		}

		var inv *invoice.Invoice
		if !in.InvoiceID.IsNil() {
			var err error
			inv, err = tx.LockInvoice(ctx, in.InvoiceID)
			if err != nil {
				return err
			}
			switch inv.Status {
			case invoice.StatusCancelled:
				return fmt.Errorf("%w: %s", ErrInvoiceCancelled, inv.Number)
			case invoice.StatusPaid:
				return fmt.Errorf("%w: %s", ErrInvoicePaid, inv.Number)
			}
			if p.OrderID.IsNil() {
				p.OrderID = inv.OrderID
			}
			if p.ClientID == "" {
				p.ClientID = inv.ClientID
			}
			if err := e.matchCurrency(p, inv.TotalAmount.Currency); err != nil {
				return err
			}
		} else if !in.OrderID.IsNil() {
			o, err := tx.GetOrder(ctx, in.OrderID)
			if err != nil {
				return err
			}
			if p.ClientID == "" {
				p.ClientID = o.UserID
			}
			if err := e.matchCurrency(p, o.Currency()); err != nil {
				return err
			}
		} else if err := e.matchCurrency(p, e.currency); err != nil {
			return err
		}

		if p.ClientID == "" {
			return ValidationError{Field: "client_id", Message: "is required"}
		}

		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}

		if inv == nil {
			return nil
		}
		settled, err := e.settles(ctx, tx, inv, p)
		if err != nil || !settled {
			return err
		}
		inv.Status = invoice.StatusPaid
		inv.PaidDate = &now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		paid = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment registered",
		"payment_id", p.ID.String(),
		"type", string(p.Type),
		"amount", p.Amount.String(),
		"invoice_paid", paid != nil,
	)

	e.plugins.EmitPaymentRegistered(ctx, p)
	if paid != nil {
		e.plugins.EmitInvoicePaid(ctx, paid)
	}
	return p, nil
}

// settles applies the reconciliation policy. p is already persisted in tx.
func (e *Engine) settles(ctx context.Context, tx store.Tx, inv *invoice.Invoice, p *payment.Payment) (bool, error) {
	switch e.policy {
	case ReconcileCumulative:
		sum, err := tx.SumPayments(ctx, inv.ID, inv.TotalAmount.Currency)
		if err != nil {
			return false, err
		}
		return sum.GreaterOrEqual(inv.TotalAmount), nil
	default:
		return p.Amount.GreaterOrEqual(inv.TotalAmount), nil
	}
}

func (e *Engine) validatePayment(in PaymentInput) error {
	var errs MultiError
	if err := e.check(in); err != nil {
		errs.Add(err)
	}
	if !in.Amount.IsPositive() {
		errs.Add(ValidationError{Field: "amount", Message: "must be greater than zero"})
	}
	switch in.Type {
	case payment.TypeInvoice:
		if in.InvoiceID.IsNil() {
			errs.Add(ValidationError{Field: "invoice_id", Message: "is required for invoice payments"})
		}
	case payment.TypeOrder:
		if in.OrderID.IsNil() {
			errs.Add(ValidationError{Field: "order_id", Message: "is required for order payments"})
		}
	}
	return errs.ErrorOrNil()
}

// matchCurrency defaults an unset payment currency, rejects a mismatch and
// stores the currency in the expected spelling.
func (e *Engine) matchCurrency(p *payment.Payment, currency string) error {
	if p.Amount.Currency != "" && !strings.EqualFold(p.Amount.Currency, currency) {
		return fmt.Errorf("%w: payment in %s, expected %s", ErrCurrencyMismatch, p.Amount.Currency, currency)
	}
	p.Amount = types.Money{Amount: p.Amount.Amount, Currency: currency}
	return nil
}

// ConfirmPayment moves a pending payment to confirmed.
func (e *Engine) ConfirmPayment(ctx context.Context, paymentID id.PaymentID) (p *payment.Payment, err error) {
	ctx, end := e.startSpan(ctx, "ConfirmPayment", attribute.String("payment_id", paymentID.String()))
	defer end(&err)

	p, err = e.movePayment(ctx, paymentID, payment.StatusConfirmed, func(_ context.Context, _ store.Tx, p *payment.Payment) error {
		now := e.now()
		p.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment confirmed", "payment_id", p.ID.String())
	e.plugins.EmitPaymentConfirmed(ctx, p)
	return p, nil
}

// CancelPayment moves a pending payment to cancelled. Payments on a paid
// invoice cannot be cancelled.
func (e *Engine) CancelPayment(ctx context.Context, paymentID id.PaymentID) (p *payment.Payment, err error) {
	ctx, end := e.startSpan(ctx, "CancelPayment", attribute.String("payment_id", paymentID.String()))
	defer end(&err)

	p, err = e.movePayment(ctx, paymentID, payment.StatusCancelled, func(ctx context.Context, tx store.Tx, p *payment.Payment) error {
		if p.InvoiceID.IsNil() {
			return nil
		}
		inv, err := tx.LockInvoice(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoice.StatusPaid {
			return fmt.Errorf("%w: %s", ErrInvoicePaid, inv.Number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment cancelled", "payment_id", p.ID.String())
	e.plugins.EmitPaymentCancelled(ctx, p)
	return p, nil
}

// movePayment applies pending -> to under the payment row lock.
func (e *Engine) movePayment(ctx context.Context, paymentID id.PaymentID, to payment.Status, apply func(context.Context, store.Tx, *payment.Payment) error) (*payment.Payment, error) {
	var p *payment.Payment
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != payment.StatusPending {
			return &TransitionError{Entity: "payment", From: string(p.Status), To: string(to)}
		}
		if err := apply(ctx, tx, p); err != nil {
			return err
		}
		p.Status = to
		return tx.UpdatePayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayment retrieves a payment by ID.
func (e *Engine) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, paymentID)
}
