// Package invoice models invoices issued for orders.
package invoice

import (
	"fmt"
	"time"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/types"
)

// Status of an invoice. Cancelled is terminal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the invoice still counts as the order's invoice.
func (s Status) Active() bool { return s != StatusCancelled }

// Type classifies the invoice document.
type Type string

const (
	TypeStandard   Type = "standard"
	TypeElectronic Type = "electronic"
	TypePOS        Type = "pos"
)

// Valid reports whether t is a known invoice type.
func (t Type) Valid() bool {
	switch t {
	case TypeStandard, TypeElectronic, TypePOS:
		return true
	}
	return false
}

// Invoice is the fiscal document for one order.
// TotalAmount always equals NetAmount plus IvaAmount.
type Invoice struct {
	types.Entity
	ID           id.InvoiceID `json:"id"`
	Number       string       `json:"number"`
	OrderID      id.OrderID   `json:"order_id"`
	ClientID     string       `json:"client_id"`
	Type         Type         `json:"type"`
	Status       Status       `json:"status"`
	NetAmount    types.Money  `json:"net_amount"`
	IvaAmount    types.Money  `json:"iva_amount"`
	TotalAmount  types.Money  `json:"total_amount"`
	ClientName   string       `json:"client_name"`
	TaxID        string       `json:"tax_id,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	City         string       `json:"city,omitempty"`
	IssueDate    time.Time    `json:"issue_date"`
	DueDate      time.Time    `json:"due_date"`
	PaidDate     *time.Time   `json:"paid_date,omitempty"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`
}

// NumberPrefix starts every invoice number.
const NumberPrefix = "FAC"

// SequenceDay returns the per-day counter key for t, e.g. "20250314".
func SequenceDay(t time.Time) string {
	return t.Format("20060102")
}

// FormatNumber renders FAC-YYYYMMDD-NNNN. Sequences past 9999 widen
// instead of wrapping.
func FormatNumber(day string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", NumberPrefix, day, seq)
}
