// Package payment models money received against invoices and orders.
package payment

import (
	"time"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/types"
)

// Status of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Type says what a payment is applied to.
type Type string

const (
	TypeInvoice Type = "invoice"
	TypeOrder   Type = "order"
	TypeAdvance Type = "advance"
)

// Valid reports whether t is a known payment type.
func (t Type) Valid() bool {
	switch t {
	case TypeInvoice, TypeOrder, TypeAdvance:
		return true
	}
	return false
}

// Payment records money received. Amount is always positive.
type Payment struct {
	types.Entity
	ID          id.PaymentID `json:"id"`
	InvoiceID   id.InvoiceID `json:"invoice_id"`
	OrderID     id.OrderID   `json:"order_id"`
	ClientID    string       `json:"client_id"`
	Type        Type         `json:"type"`
	Amount      types.Money  `json:"amount"`
	Status      Status       `json:"status"`
	Method      string       `json:"method"`
	Reference   string       `json:"reference,omitempty"`
	PaymentDate time.Time    `json:"payment_date"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}
