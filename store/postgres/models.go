package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/types"
)

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// nullID stores the Nil ID as NULL.
func nullID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

func parseNullID(s *string) (id.ID, error) {
	if s == nil || *s == "" {
		return id.Nil, nil
	}
	return id.Parse(*s)
}

// ==================== Product ====================

const productColumns = `sku, name, stock_qty, unit_price, currency, created_at, updated_at`

func scanProduct(row scanner) (*product.Product, error) {
	var (
		p                product.Product
		price            int64
		currency         string
		created, updated time.Time
	)
	if err := row.Scan(&p.SKU, &p.Name, &p.StockQty, &price, &currency, &created, &updated); err != nil {
		return nil, err
	}
	p.UnitPrice = types.Money{Amount: price, Currency: currency}
	p.Entity = entity(created, updated)
	return &p, nil
}

// ==================== Cart ====================

const cartColumns = `user_id, id, items, version, created_at, updated_at`

func scanCart(row scanner) (*cart.Cart, error) {
	var (
		c                cart.Cart
		cartID           string
		items            []byte
		created, updated time.Time
	)
	if err := row.Scan(&c.UserID, &cartID, &items, &c.Version, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := id.ParseCartID(cartID)
	if err != nil {
		return nil, err
	}
	c.ID = parsed
	c.Items = []cart.Item{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return nil, err
		}
	}
	c.Entity = entity(created, updated)
	return &c, nil
}

// ==================== Order ====================

const orderColumns = `id, user_id, lines, total_amount, currency, status, snapshot,
	erp_reference, erp_message, invoice_number, invoiced_at, version, created_at, updated_at`

func scanOrder(row scanner) (*order.Order, error) {
	var (
		o                order.Order
		orderID          string
		lines, snap      []byte
		total            int64
		currency, status string
		invoicedAt       *time.Time
		created, updated time.Time
	)
	if err := row.Scan(&orderID, &o.UserID, &lines, &total, &currency, &status, &snap,
		&o.ErpReference, &o.ErpMessage, &o.InvoiceNumber, &invoicedAt, &o.Version, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := id.ParseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	o.ID = parsed
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, err
	}
	if len(snap) > 0 && string(snap) != "null" {
		o.Snapshot = new(order.FinancialSnapshot)
		if err := json.Unmarshal(snap, o.Snapshot); err != nil {
			return nil, err
		}
	}
	o.TotalAmount = types.Money{Amount: total, Currency: currency}
	o.Status = order.Status(status)
	o.InvoicedAt = utcPtr(invoicedAt)
	o.Entity = entity(created, updated)
	return &o, nil
}

// marshalSnapshot encodes a nil snapshot as SQL NULL.
func marshalSnapshot(s *order.FinancialSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// ==================== Invoice ====================

const invoiceColumns = `id, number, order_id, client_id, type, status,
	net_amount, iva_amount, total_amount, currency,
	client_name, tax_id, email, phone, address, city,
	issue_date, due_date, paid_date, cancelled_at, cancel_reason, created_at, updated_at`

func scanInvoice(row scanner) (*invoice.Invoice, error) {
	var (
		inv                   invoice.Invoice
		invID, orderID        string
		typ, status, currency string
		net, iva, total       int64
		issue, due            time.Time
		paid, cancelled       *time.Time
		created, updated      time.Time
	)
	if err := row.Scan(&invID, &inv.Number, &orderID, &inv.ClientID, &typ, &status,
		&net, &iva, &total, &currency,
		&inv.ClientName, &inv.TaxID, &inv.Email, &inv.Phone, &inv.Address, &inv.City,
		&issue, &due, &paid, &cancelled, &inv.CancelReason, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if inv.ID, err = id.ParseInvoiceID(invID); err != nil {
		return nil, err
	}
	if inv.OrderID, err = id.ParseOrderID(orderID); err != nil {
		return nil, err
	}
	inv.Type = invoice.Type(typ)
	inv.Status = invoice.Status(status)
	inv.NetAmount = types.Money{Amount: net, Currency: currency}
	inv.IvaAmount = types.Money{Amount: iva, Currency: currency}
	inv.TotalAmount = types.Money{Amount: total, Currency: currency}
	inv.IssueDate = issue.UTC()
	inv.DueDate = due.UTC()
	inv.PaidDate = utcPtr(paid)
	inv.CancelledAt = utcPtr(cancelled)
	inv.Entity = entity(created, updated)
	return &inv, nil
}

// ==================== Payment ====================

const paymentColumns = `id, invoice_id, order_id, client_id, type, amount, currency,
	status, method, reference, payment_date, confirmed_at, created_at, updated_at`

func scanPayment(row scanner) (*payment.Payment, error) {
	var (
		p                     payment.Payment
		payID                 string
		invID, orderID        *string
		typ, currency, status string
		amount                int64
		paidAt                time.Time
		confirmed             *time.Time
		created, updated      time.Time
	)
	if err := row.Scan(&payID, &invID, &orderID, &p.ClientID, &typ, &amount, &currency,
		&status, &p.Method, &p.Reference, &paidAt, &confirmed, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.ID, err = id.ParsePaymentID(payID); err != nil {
		return nil, err
	}
	if p.InvoiceID, err = parseNullID(invID); err != nil {
		return nil, err
	}
	if p.OrderID, err = parseNullID(orderID); err != nil {
		return nil, err
	}
	p.Type = payment.Type(typ)
	p.Status = payment.Status(status)
	p.Amount = types.Money{Amount: amount, Currency: currency}
	p.PaymentDate = paidAt.UTC()
	p.ConfirmedAt = utcPtr(confirmed)
	p.Entity = entity(created, updated)
	return &p, nil
}
