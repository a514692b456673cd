package mongo

import (
	"time"

	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/types"
)

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

func parseOptionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

// ==================== Product ====================

type productModel struct {
	SKU       string    `bson:"_id"`
	Name      string    `bson:"name"`
	StockQty  int64     `bson:"stock_qty"`
	UnitPrice int64     `bson:"unit_price"`
	Currency  string    `bson:"currency"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toProductModel(p *product.Product) *productModel {
	return &productModel{
		SKU:       p.SKU,
		Name:      p.Name,
		StockQty:  p.StockQty,
		UnitPrice: p.UnitPrice.Amount,
		Currency:  p.UnitPrice.Currency,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) *product.Product {
	return &product.Product{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
		SKU:       m.SKU,
		Name:      m.Name,
		StockQty:  m.StockQty,
		UnitPrice: types.Money{Amount: m.UnitPrice, Currency: m.Currency},
	}
}

// ==================== Cart ====================

type cartItemModel struct {
	SKU  string `bson:"sku"`
	Name string `bson:"name"`
	Qty  int64  `bson:"qty"`
}

type cartModel struct {
	UserID    string          `bson:"_id"`
	ID        string          `bson:"cart_id"`
	Items     []cartItemModel `bson:"items"`
	Version   int64           `bson:"version"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func toCartItems(items []cart.Item) []cartItemModel {
	out := make([]cartItemModel, len(items))
	for i, it := range items {
		out[i] = cartItemModel{SKU: it.SKU, Name: it.Name, Qty: it.Qty}
	}
	return out
}

func fromCartModel(m *cartModel) (*cart.Cart, error) {
	cartID, err := id.ParseCartID(m.ID)
	if err != nil {
		return nil, err
	}
	items := make([]cart.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = cart.Item{SKU: it.SKU, Name: it.Name, Qty: it.Qty}
	}
	return &cart.Cart{
		Entity:  entity(m.CreatedAt, m.UpdatedAt),
		ID:      cartID,
		UserID:  m.UserID,
		Items:   items,
		Version: m.Version,
	}, nil
}

// ==================== Order ====================

type lineModel struct {
	SKU       string `bson:"sku"`
	Name      string `bson:"name"`
	Qty       int64  `bson:"qty"`
	UnitPrice int64  `bson:"unit_price"`
	Subtotal  int64  `bson:"subtotal"`
}

type clientModel struct {
	ID      string `bson:"id"`
	Name    string `bson:"name"`
	TaxID   string `bson:"tax_id,omitempty"`
	Email   string `bson:"email,omitempty"`
	Phone   string `bson:"phone,omitempty"`
	Address string `bson:"address,omitempty"`
	City    string `bson:"city,omitempty"`
}

type snapshotModel struct {
	NetAmount   int64       `bson:"net_amount"`
	IvaAmount   int64       `bson:"iva_amount"`
	TotalAmount int64       `bson:"total_amount"`
	Client      clientModel `bson:"client"`
	Items       []lineModel `bson:"items"`
	CapturedAt  time.Time   `bson:"captured_at"`
}

type orderModel struct {
	ID            string         `bson:"_id"`
	UserID        string         `bson:"user_id"`
	Lines         []lineModel    `bson:"lines"`
	TotalAmount   int64          `bson:"total_amount"`
	Currency      string         `bson:"currency"`
	Status        string         `bson:"status"`
	Snapshot      *snapshotModel `bson:"snapshot,omitempty"`
	ErpReference  string         `bson:"erp_reference"`
	ErpMessage    string         `bson:"erp_message"`
	InvoiceNumber string         `bson:"invoice_number"`
	InvoicedAt    *time.Time     `bson:"invoiced_at,omitempty"`
	Version       int64          `bson:"version"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

func toLineModels(lines []order.Line) []lineModel {
	out := make([]lineModel, len(lines))
	for i, l := range lines {
		out[i] = lineModel{
			SKU:       l.SKU,
			Name:      l.Name,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice.Amount,
			Subtotal:  l.Subtotal.Amount,
		}
	}
	return out
}

func fromLineModels(lines []lineModel, currency string) []order.Line {
	out := make([]order.Line, len(lines))
	for i, l := range lines {
		out[i] = order.Line{
			SKU:       l.SKU,
			Name:      l.Name,
			Qty:       l.Qty,
			UnitPrice: types.Money{Amount: l.UnitPrice, Currency: currency},
			Subtotal:  types.Money{Amount: l.Subtotal, Currency: currency},
		}
	}
	return out
}

func toSnapshotModel(s *order.FinancialSnapshot) *snapshotModel {
	if s == nil {
		return nil
	}
	return &snapshotModel{
		NetAmount:   s.NetAmount.Amount,
		IvaAmount:   s.IvaAmount.Amount,
		TotalAmount: s.TotalAmount.Amount,
		Client:      clientModel(s.Client),
		Items:       toLineModels(s.Items),
		CapturedAt:  s.CapturedAt,
	}
}

func fromSnapshotModel(m *snapshotModel, currency string) *order.FinancialSnapshot {
	if m == nil {
		return nil
	}
	return &order.FinancialSnapshot{
		NetAmount:   types.Money{Amount: m.NetAmount, Currency: currency},
		IvaAmount:   types.Money{Amount: m.IvaAmount, Currency: currency},
		TotalAmount: types.Money{Amount: m.TotalAmount, Currency: currency},
		Client:      order.ClientSnapshot(m.Client),
		Items:       fromLineModels(m.Items, currency),
		CapturedAt:  m.CapturedAt.UTC(),
	}
}

func toOrderModel(o *order.Order) *orderModel {
	return &orderModel{
		ID:            o.ID.String(),
		UserID:        o.UserID,
		Lines:         toLineModels(o.Lines),
		TotalAmount:   o.TotalAmount.Amount,
		Currency:      o.TotalAmount.Currency,
		Status:        string(o.Status),
		Snapshot:      toSnapshotModel(o.Snapshot),
		ErpReference:  o.ErpReference,
		ErpMessage:    o.ErpMessage,
		InvoiceNumber: o.InvoiceNumber,
		InvoicedAt:    o.InvoicedAt,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		Entity:        entity(m.CreatedAt, m.UpdatedAt),
		ID:            orderID,
		UserID:        m.UserID,
		Lines:         fromLineModels(m.Lines, m.Currency),
		TotalAmount:   types.Money{Amount: m.TotalAmount, Currency: m.Currency},
		Status:        order.Status(m.Status),
		Snapshot:      fromSnapshotModel(m.Snapshot, m.Currency),
		ErpReference:  m.ErpReference,
		ErpMessage:    m.ErpMessage,
		InvoiceNumber: m.InvoiceNumber,
		InvoicedAt:    utcPtr(m.InvoicedAt),
		Version:       m.Version,
	}, nil
}

// ==================== Invoice ====================

type invoiceModel struct {
	ID           string     `bson:"_id"`
	Number       string     `bson:"number"`
	OrderID      string     `bson:"order_id"`
	ClientID     string     `bson:"client_id"`
	Type         string     `bson:"type"`
	Status       string     `bson:"status"`
	Active       bool       `bson:"active"`
	NetAmount    int64      `bson:"net_amount"`
	IvaAmount    int64      `bson:"iva_amount"`
	TotalAmount  int64      `bson:"total_amount"`
	Currency     string     `bson:"currency"`
	ClientName   string     `bson:"client_name"`
	TaxID        string     `bson:"tax_id,omitempty"`
	Email        string     `bson:"email,omitempty"`
	Phone        string     `bson:"phone,omitempty"`
	Address      string     `bson:"address,omitempty"`
	City         string     `bson:"city,omitempty"`
	IssueDate    time.Time  `bson:"issue_date"`
	DueDate      time.Time  `bson:"due_date"`
	PaidDate     *time.Time `bson:"paid_date,omitempty"`
	CancelledAt  *time.Time `bson:"cancelled_at,omitempty"`
	CancelReason string     `bson:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:           inv.ID.String(),
		Number:       inv.Number,
		OrderID:      inv.OrderID.String(),
		ClientID:     inv.ClientID,
		Type:         string(inv.Type),
		Status:       string(inv.Status),
		Active:       inv.Status.Active(),
		NetAmount:    inv.NetAmount.Amount,
		IvaAmount:    inv.IvaAmount.Amount,
		TotalAmount:  inv.TotalAmount.Amount,
		Currency:     inv.TotalAmount.Currency,
		ClientName:   inv.ClientName,
		TaxID:        inv.TaxID,
		Email:        inv.Email,
		Phone:        inv.Phone,
		Address:      inv.Address,
		City:         inv.City,
		IssueDate:    inv.IssueDate,
		DueDate:      inv.DueDate,
		PaidDate:     inv.PaidDate,
		CancelledAt:  inv.CancelledAt,
		CancelReason: inv.CancelReason,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:       entity(m.CreatedAt, m.UpdatedAt),
		ID:           invID,
		Number:       m.Number,
		OrderID:      orderID,
		ClientID:     m.ClientID,
		Type:         invoice.Type(m.Type),
		Status:       invoice.Status(m.Status),
		NetAmount:    types.Money{Amount: m.NetAmount, Currency: m.Currency},
		IvaAmount:    types.Money{Amount: m.IvaAmount, Currency: m.Currency},
		TotalAmount:  types.Money{Amount: m.TotalAmount, Currency: m.Currency},
		ClientName:   m.ClientName,
		TaxID:        m.TaxID,
		Email:        m.Email,
		Phone:        m.Phone,
		Address:      m.Address,
		City:         m.City,
		IssueDate:    m.IssueDate.UTC(),
		DueDate:      m.DueDate.UTC(),
		PaidDate:     utcPtr(m.PaidDate),
		CancelledAt:  utcPtr(m.CancelledAt),
		CancelReason: m.CancelReason,
	}, nil
}

// ==================== Payment ====================

type paymentModel struct {
	ID          string     `bson:"_id"`
	InvoiceID   string     `bson:"invoice_id,omitempty"`
	OrderID     string     `bson:"order_id,omitempty"`
	ClientID    string     `bson:"client_id"`
	Type        string     `bson:"type"`
	Amount      int64      `bson:"amount"`
	Currency    string     `bson:"currency"`
	Status      string     `bson:"status"`
	Method      string     `bson:"method"`
	Reference   string     `bson:"reference,omitempty"`
	PaymentDate time.Time  `bson:"payment_date"`
	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		InvoiceID:   p.InvoiceID.String(),
		OrderID:     p.OrderID.String(),
		ClientID:    p.ClientID,
		Type:        string(p.Type),
		Amount:      p.Amount.Amount,
		Currency:    p.Amount.Currency,
		Status:      string(p.Status),
		Method:      p.Method,
		Reference:   p.Reference,
		PaymentDate: p.PaymentDate,
		ConfirmedAt: p.ConfirmedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := parseOptionalID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOptionalID(m.OrderID)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          payID,
		InvoiceID:   invID,
		OrderID:     orderID,
		ClientID:    m.ClientID,
		Type:        payment.Type(m.Type),
		Amount:      types.Money{Amount: m.Amount, Currency: m.Currency},
		Status:      payment.Status(m.Status),
		Method:      m.Method,
		Reference:   m.Reference,
		PaymentDate: m.PaymentDate.UTC(),
		ConfirmedAt: utcPtr(m.ConfirmedAt),
	}, nil
}
