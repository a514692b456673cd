// Package erp defines the contract with the external ERP that receives
// confirmed orders and reports them invoiced.
//
// The engine never holds a store transaction open across an Adapter call.
// Implementations must be safe for concurrent use.
package erp

import (
	"context"
	"time"

	"github.com/xraph/orders/order"
	"github.com/xraph/orders/types"
)

// Status values reported by the ERP.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusInvoiced = "invoiced"
	StatusRejected = "rejected"
)

// Adapter submits orders to an ERP and polls their state.
type Adapter interface {
	// SendInvoice submits doc. A nil error with Success false is a business
	// rejection; a non-nil error is a transport failure.
	SendInvoice(ctx context.Context, doc *Document) (*Result, error)

	// CheckStatus reports the ERP-side state of a previously accepted document.
	CheckStatus(ctx context.Context, reference string) (*Result, error)
}

// Result is the ERP's answer.
type Result struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Document is the payload handed to the ERP for one order.
type Document struct {
	OrderID     string               `json:"order_id"`
	UserID      string               `json:"user_id"`
	Client      order.ClientSnapshot `json:"client"`
	Items       []order.Line         `json:"items"`
	NetAmount   types.Money          `json:"net_amount"`
	IvaAmount   types.Money          `json:"iva_amount"`
	TotalAmount types.Money          `json:"total_amount"`
	Currency    string               `json:"currency"`
	IssuedAt    time.Time            `json:"issued_at"`
}

// NewDocument builds the ERP payload from an order's financial snapshot.
// o.Snapshot must be set.
func NewDocument(o *order.Order) *Document {
	s := o.Snapshot
	return &Document{
		OrderID:     o.ID.String(),
		UserID:      o.UserID,
		Client:      s.Client,
		Items:       s.Items,
		NetAmount:   s.NetAmount,
		IvaAmount:   s.IvaAmount,
		TotalAmount: s.TotalAmount,
		Currency:    o.Currency(),
		IssuedAt:    s.CapturedAt,
	}
}
