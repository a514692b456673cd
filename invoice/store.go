package invoice

import (
	"context"

	"github.com/xraph/orders/id"
)

// Store persists invoices.
//
// NextSequence atomically increments and returns the counter for day inside
// the caller's transaction. CreateInvoice must reject a duplicate number or a
// second active invoice for the same order.
type Store interface {
	NextSequence(ctx context.Context, day string) (int64, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	GetActiveInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*Invoice, error)
	LockInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
}
