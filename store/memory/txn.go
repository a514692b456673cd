package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	orders "github.com/xraph/orders"
	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/types"
)

var _ store.Tx = (*txn)(nil)

// txn is a view over one state. Inside RunInTx it is the private working
// copy, so the Lock* methods need no extra locking.
type txn struct {
	st *state
}

// ==================== Product Store ====================

func (t *txn) GetProduct(_ context.Context, sku string) (*product.Product, error) {
	p, ok := t.st.products[sku]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	return &p, nil
}

func (t *txn) PutProduct(_ context.Context, p *product.Product) error {
	if existing, ok := t.st.products[p.SKU]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	t.st.products[p.SKU] = *p
	return nil
}

func (t *txn) ListProducts(_ context.Context, opts product.ListOpts) ([]*product.Product, error) {
	out := make([]*product.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		if opts.InStockOnly && p.StockQty <= 0 {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *product.Product) int { return strings.Compare(a.SKU, b.SKU) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

func (t *txn) ReserveStock(_ context.Context, sku string, qty int64) (int64, error) {
	p, ok := t.st.products[sku]
	if !ok {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	if p.StockQty < qty {
		return p.StockQty, &orders.InsufficientStockError{SKU: sku, Requested: qty, Available: p.StockQty}
	}
	p.StockQty -= qty
	p.Touch()
	t.st.products[sku] = p
	return p.StockQty, nil
}

func (t *txn) ReleaseStock(_ context.Context, sku string, qty int64) (int64, error) {
	p, ok := t.st.products[sku]
	if !ok {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	p.StockQty += qty
	p.Touch()
	t.st.products[sku] = p
	return p.StockQty, nil
}

// ==================== Cart Store ====================

func (t *txn) GetCart(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := t.st.carts[userID]
	if !ok {
		return nil, orders.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (t *txn) EnsureCart(_ context.Context, userID string) error {
	if _, ok := t.st.carts[userID]; !ok {
		t.st.carts[userID] = cart.New(userID)
	}
	return nil
}

func (t *txn) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return t.GetCart(ctx, userID)
}

func (t *txn) SaveCart(_ context.Context, c *cart.Cart) error {
	if existing, ok := t.st.carts[c.UserID]; ok && existing.Version != c.Version {
		return orders.ErrConcurrencyConflict
	}
	c.Version++
	c.Touch()
	t.st.carts[c.UserID] = c.Clone()
	return nil
}

// ==================== Order Store ====================

func (t *txn) CreateOrder(_ context.Context, o *order.Order) error {
	if _, ok := t.st.orders[o.ID.String()]; ok {
		return orders.ErrConcurrencyConflict
	}
	o.Version = 1
	t.st.orders[o.ID.String()] = o.Clone()
	return nil
}

func (t *txn) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	o, ok := t.st.orders[orderID.String()]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (t *txn) LockOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return t.GetOrder(ctx, orderID)
}

func (t *txn) UpdateOrder(_ context.Context, o *order.Order) error {
	existing, ok := t.st.orders[o.ID.String()]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if existing.Version != o.Version {
		return orders.ErrConcurrencyConflict
	}
	o.Version++
	o.Touch()
	t.st.orders[o.ID.String()] = o.Clone()
	return nil
}

func (t *txn) ListOrders(_ context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range t.st.orders {
		if opts.UserID != "" && o.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, func(a, b *order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

// ==================== Invoice Store ====================

func (t *txn) NextSequence(_ context.Context, day string) (int64, error) {
	t.st.sequences[day]++
	return t.st.sequences[day], nil
}

func (t *txn) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	for _, existing := range t.st.invoices {
		if existing.Number == inv.Number {
			return fmt.Errorf("%w: duplicate invoice number %s", orders.ErrConcurrencyConflict, inv.Number)
		}
		if existing.OrderID == inv.OrderID && existing.Status.Active() && inv.Status.Active() {
			return orders.ErrInvoiceExists
		}
	}
	t.st.invoices[inv.ID.String()] = *inv
	return nil
}

func (t *txn) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, ok := t.st.invoices[invID.String()]
	if !ok {
		return nil, orders.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (t *txn) GetInvoiceByNumber(_ context.Context, number string) (*invoice.Invoice, error) {
	for _, inv := range t.st.invoices {
		if inv.Number == number {
			return &inv, nil
		}
	}
	return nil, orders.ErrInvoiceNotFound
}

func (t *txn) GetActiveInvoiceByOrder(_ context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	for _, inv := range t.st.invoices {
		if inv.OrderID == orderID && inv.Status.Active() {
			return &inv, nil
		}
	}
	return nil, orders.ErrInvoiceNotFound
}

func (t *txn) LockInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return t.GetInvoice(ctx, invID)
}

func (t *txn) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	if _, ok := t.st.invoices[inv.ID.String()]; !ok {
		return orders.ErrInvoiceNotFound
	}
	inv.Touch()
	t.st.invoices[inv.ID.String()] = *inv
	return nil
}

// ==================== Payment Store ====================

func (t *txn) CreatePayment(_ context.Context, p *payment.Payment) error {
	if _, ok := t.st.payments[p.ID.String()]; ok {
		return orders.ErrConcurrencyConflict
	}
	t.st.payments[p.ID.String()] = *p
	return nil
}

func (t *txn) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	p, ok := t.st.payments[paymentID.String()]
	if !ok {
		return nil, orders.ErrPaymentNotFound
	}
	return &p, nil
}

func (t *txn) LockPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return t.GetPayment(ctx, paymentID)
}

func (t *txn) UpdatePayment(_ context.Context, p *payment.Payment) error {
	if _, ok := t.st.payments[p.ID.String()]; !ok {
		return orders.ErrPaymentNotFound
	}
	p.Touch()
	t.st.payments[p.ID.String()] = *p
	return nil
}

func (t *txn) ListPaymentsByInvoice(_ context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range t.st.payments {
		if p.InvoiceID == invID {
			out = append(out, &p)
		}
	}
	slices.SortFunc(out, func(a, b *payment.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (t *txn) SumPayments(_ context.Context, invID id.InvoiceID, currency string) (types.Money, error) {
	total := types.Zero(currency)
	for _, p := range t.st.payments {
		if p.InvoiceID == invID && p.Status != payment.StatusCancelled {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
