// Package order models confirmed purchases and their status graph.
package order

import (
	"slices"
	"time"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/types"
)

// Line is an immutable order line. UnitPrice is the catalog price captured
// when the order was placed.
type Line struct {
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	Qty       int64       `json:"qty"`
	UnitPrice types.Money `json:"unit_price"`
	Subtotal  types.Money `json:"subtotal"`
}

// NewLine computes Subtotal from qty and unit price.
func NewLine(sku, name string, qty int64, unitPrice types.Money) Line {
	return Line{
		SKU:       sku,
		Name:      name,
		Qty:       qty,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Multiply(qty),
	}
}

// ClientSnapshot is the billing identity captured for an order.
type ClientSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TaxID   string `json:"tax_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
}

// FinancialSnapshot freezes the amounts and client details used for ERP
// hand-off and invoicing.
type FinancialSnapshot struct {
	NetAmount   types.Money    `json:"net_amount"`
	IvaAmount   types.Money    `json:"iva_amount"`
	TotalAmount types.Money    `json:"total_amount"`
	Client      ClientSnapshot `json:"client"`
	Items       []Line         `json:"items"`
	CapturedAt  time.Time      `json:"captured_at"`
}

// Order is a confirmed purchase. TotalAmount equals the sum of line
// subtotals at creation.
type Order struct {
	types.Entity
	ID            id.OrderID         `json:"id"`
	UserID        string             `json:"user_id"`
	Lines         []Line             `json:"lines"`
	TotalAmount   types.Money        `json:"total_amount"`
	Status        Status             `json:"status"`
	Snapshot      *FinancialSnapshot `json:"snapshot,omitempty"`
	ErpReference  string             `json:"erp_reference,omitempty"`
	ErpMessage    string             `json:"erp_message,omitempty"`
	InvoiceNumber string             `json:"invoice_number,omitempty"`
	InvoicedAt    *time.Time         `json:"invoiced_at,omitempty"`
	Version       int64              `json:"version"`
}

// Currency returns the currency all of the order's amounts are in.
func (o *Order) Currency() string { return o.TotalAmount.Currency }

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Lines = slices.Clone(o.Lines)
	if o.Snapshot != nil {
		s := *o.Snapshot
		s.Items = slices.Clone(o.Snapshot.Items)
		cp.Snapshot = &s
	}
	if o.InvoicedAt != nil {
		t := *o.InvoicedAt
		cp.InvoicedAt = &t
	}
	return &cp
}
