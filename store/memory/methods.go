package memory

import (
	"context"

	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/types"
)

// Outside RunInTx, reads see the last committed state and writes run in a
// transaction of their own.

// ==================== Product Store ====================

func (s *Store) GetProduct(ctx context.Context, sku string) (p *product.Product, err error) {
	err = s.read(func(t *txn) error { p, err = t.GetProduct(ctx, sku); return err })
	return p, err
}

func (s *Store) PutProduct(ctx context.Context, p *product.Product) error {
	return s.write(ctx, func(t *txn) error { return t.PutProduct(ctx, p) })
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) (out []*product.Product, err error) {
	err = s.read(func(t *txn) error { out, err = t.ListProducts(ctx, opts); return err })
	return out, err
}

func (s *Store) ReserveStock(ctx context.Context, sku string, qty int64) (remaining int64, err error) {
	err = s.write(ctx, func(t *txn) error { remaining, err = t.ReserveStock(ctx, sku, qty); return err })
	return remaining, err
}

func (s *Store) ReleaseStock(ctx context.Context, sku string, qty int64) (remaining int64, err error) {
	err = s.write(ctx, func(t *txn) error { remaining, err = t.ReleaseStock(ctx, sku, qty); return err })
	return remaining, err
}

// ==================== Cart Store ====================

func (s *Store) GetCart(ctx context.Context, userID string) (c *cart.Cart, err error) {
	err = s.read(func(t *txn) error { c, err = t.GetCart(ctx, userID); return err })
	return c, err
}

func (s *Store) EnsureCart(ctx context.Context, userID string) error {
	return s.write(ctx, func(t *txn) error { return t.EnsureCart(ctx, userID) })
}

func (s *Store) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return s.GetCart(ctx, userID)
}

func (s *Store) SaveCart(ctx context.Context, c *cart.Cart) error {
	return s.write(ctx, func(t *txn) error { return t.SaveCart(ctx, c) })
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	return s.write(ctx, func(t *txn) error { return t.CreateOrder(ctx, o) })
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (o *order.Order, err error) {
	err = s.read(func(t *txn) error { o, err = t.GetOrder(ctx, orderID); return err })
	return o, err
}

func (s *Store) LockOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return s.GetOrder(ctx, orderID)
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	return s.write(ctx, func(t *txn) error { return t.UpdateOrder(ctx, o) })
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) (out []*order.Order, err error) {
	err = s.read(func(t *txn) error { out, err = t.ListOrders(ctx, opts); return err })
	return out, err
}

// ==================== Invoice Store ====================

func (s *Store) NextSequence(ctx context.Context, day string) (seq int64, err error) {
	err = s.write(ctx, func(t *txn) error { seq, err = t.NextSequence(ctx, day); return err })
	return seq, err
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return s.write(ctx, func(t *txn) error { return t.CreateInvoice(ctx, inv) })
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (inv *invoice.Invoice, err error) {
	err = s.read(func(t *txn) error { inv, err = t.GetInvoice(ctx, invID); return err })
	return inv, err
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (inv *invoice.Invoice, err error) {
	err = s.read(func(t *txn) error { inv, err = t.GetInvoiceByNumber(ctx, number); return err })
	return inv, err
}

func (s *Store) GetActiveInvoiceByOrder(ctx context.Context, orderID id.OrderID) (inv *invoice.Invoice, err error) {
	err = s.read(func(t *txn) error { inv, err = t.GetActiveInvoiceByOrder(ctx, orderID); return err })
	return inv, err
}

func (s *Store) LockInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return s.GetInvoice(ctx, invID)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return s.write(ctx, func(t *txn) error { return t.UpdateInvoice(ctx, inv) })
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return s.write(ctx, func(t *txn) error { return t.CreatePayment(ctx, p) })
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (p *payment.Payment, err error) {
	err = s.read(func(t *txn) error { p, err = t.GetPayment(ctx, paymentID); return err })
	return p, err
}

func (s *Store) LockPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	return s.write(ctx, func(t *txn) error { return t.UpdatePayment(ctx, p) })
}

func (s *Store) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) (out []*payment.Payment, err error) {
	err = s.read(func(t *txn) error { out, err = t.ListPaymentsByInvoice(ctx, invID); return err })
	return out, err
}

func (s *Store) SumPayments(ctx context.Context, invID id.InvoiceID, currency string) (total types.Money, err error) {
	err = s.read(func(t *txn) error { total, err = t.SumPayments(ctx, invID, currency); return err })
	return total, err
}
