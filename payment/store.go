package payment

import (
	"context"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/types"
)

// Store persists payments.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	LockPayment(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Payment, error)
	// SumPayments totals the non-cancelled payments applied to an invoice.
	SumPayments(ctx context.Context, invID id.InvoiceID, currency string) (types.Money, error)
}
