// Package postgres implements store.Store on PostgreSQL through pgx.
//
// Row locks are taken with SELECT ... FOR UPDATE, stock is reserved with a
// single conditional UPDATE, and invoice numbers come from an upserted
// per-day counter row that stays locked until the surrounding transaction
// ends.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// compile-time interface checks
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*conn)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store using PostgreSQL. Entity methods called on
// the Store directly run in autocommit mode.
type Store struct {
	*conn
	pool *pgxpool.Pool
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{conn: &conn{q: pool}, pool: pool}
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("orders/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// RunInTx implements store.Store.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &conn{q: tx})
	})
	return mapTxError(err)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(_ context.Context) error {
	return s.migrateUp()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// mapTxError turns serialization failures and deadlocks into
// ErrConcurrencyConflict so callers can retry the whole operation.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", orders.ErrConcurrencyConflict, pgErr.Message)
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

func now() time.Time { return time.Now().UTC() }

// conn runs entity queries on a pool or a transaction.
type conn struct {
	q querier
}

// ==================== Product Store ====================

func (c *conn) GetProduct(ctx context.Context, sku string) (*product.Product, error) {
	p, err := scanProduct(c.q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM orders_products WHERE sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: get product: %w", err)
	}
	return p, nil
}

func (c *conn) PutProduct(ctx context.Context, p *product.Product) error {
	err := c.q.QueryRow(ctx, `
		INSERT INTO orders_products (sku, name, stock_qty, unit_price, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			stock_qty = EXCLUDED.stock_qty,
			unit_price = EXCLUDED.unit_price,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`,
		p.SKU, p.Name, p.StockQty, p.UnitPrice.Amount, p.UnitPrice.Currency, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("orders/postgres: put product: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return nil
}

func (c *conn) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+productColumns+` FROM orders_products
		WHERE NOT $1 OR stock_qty > 0
		ORDER BY sku
		LIMIT NULLIF($2, 0) OFFSET $3`,
		opts.InStockOnly, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: list products: %w", err)
	}
	return collect(rows, scanProduct)
}

func (c *conn) ReserveStock(ctx context.Context, sku string, qty int64) (int64, error) {
	var remaining int64
	err := c.q.QueryRow(ctx, `
		UPDATE orders_products SET stock_qty = stock_qty - $2, updated_at = $3
		WHERE sku = $1 AND stock_qty >= $2
		RETURNING stock_qty`, sku, qty, now()).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("orders/postgres: reserve stock: %w", err)
	}

	p, err := c.GetProduct(ctx, sku)
	if err != nil {
		return 0, err
	}
	return p.StockQty, &orders.InsufficientStockError{SKU: sku, Requested: qty, Available: p.StockQty}
}

func (c *conn) ReleaseStock(ctx context.Context, sku string, qty int64) (int64, error) {
	var remaining int64
	err := c.q.QueryRow(ctx, `
		UPDATE orders_products SET stock_qty = stock_qty + $2, updated_at = $3
		WHERE sku = $1
		RETURNING stock_qty`, sku, qty, now()).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	if err != nil {
		return 0, fmt.Errorf("orders/postgres: release stock: %w", err)
	}
	return remaining, nil
}

// ==================== Cart Store ====================

func (c *conn) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return c.getCart(ctx, `SELECT `+cartColumns+` FROM orders_carts WHERE user_id = $1`, userID)
}

func (c *conn) EnsureCart(ctx context.Context, userID string) error {
	fresh := cart.New(userID)
	_, err := c.q.Exec(ctx, `
		INSERT INTO orders_carts (user_id, id, items, version, created_at, updated_at)
		VALUES ($1, $2, '[]', 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, fresh.ID.String(), fresh.CreatedAt)
	if err != nil {
		return fmt.Errorf("orders/postgres: ensure cart: %w", err)
	}
	return nil
}

func (c *conn) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return c.getCart(ctx, `SELECT `+cartColumns+` FROM orders_carts WHERE user_id = $1 FOR UPDATE`, userID)
}

func (c *conn) getCart(ctx context.Context, query, userID string) (*cart.Cart, error) {
	ct, err := scanCart(c.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: get cart: %w", err)
	}
	return ct, nil
}

func (c *conn) SaveCart(ctx context.Context, ct *cart.Cart) error {
	items, err := json.Marshal(ct.Items)
	if err != nil {
		return fmt.Errorf("orders/postgres: encode cart: %w", err)
	}
	updated := now()

	tag, err := c.q.Exec(ctx, `
		UPDATE orders_carts SET items = $2, version = version + 1, updated_at = $3
		WHERE user_id = $1 AND version = $4`,
		ct.UserID, items, updated, ct.Version)
	if err != nil {
		return fmt.Errorf("orders/postgres: save cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		tag, err = c.q.Exec(ctx, `
			INSERT INTO orders_carts (user_id, id, items, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO NOTHING`,
			ct.UserID, ct.ID.String(), items, ct.Version+1, ct.CreatedAt, updated)
		if err != nil {
			return fmt.Errorf("orders/postgres: save cart: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return orders.ErrConcurrencyConflict
		}
	}
	ct.Version++
	ct.UpdatedAt = updated
	return nil
}

// ==================== Order Store ====================

func (c *conn) CreateOrder(ctx context.Context, o *order.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("orders/postgres: encode lines: %w", err)
	}
	snap, err := marshalSnapshot(o.Snapshot)
	if err != nil {
		return fmt.Errorf("orders/postgres: encode snapshot: %w", err)
	}

	_, err = c.q.Exec(ctx, `
		INSERT INTO orders_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)`,
		o.ID.String(), o.UserID, lines, o.TotalAmount.Amount, o.TotalAmount.Currency, string(o.Status), snap,
		o.ErpReference, o.ErpMessage, o.InvoiceNumber, o.InvoicedAt, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err, "") {
		return orders.ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("orders/postgres: create order: %w", err)
	}
	o.Version = 1
	return nil
}

func (c *conn) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return c.getOrder(ctx, `SELECT `+orderColumns+` FROM orders_orders WHERE id = $1`, orderID)
}

func (c *conn) LockOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return c.getOrder(ctx, `SELECT `+orderColumns+` FROM orders_orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (c *conn) getOrder(ctx context.Context, query string, orderID id.OrderID) (*order.Order, error) {
	o, err := scanOrder(c.q.QueryRow(ctx, query, orderID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: get order: %w", err)
	}
	return o, nil
}

func (c *conn) UpdateOrder(ctx context.Context, o *order.Order) error {
	snap, err := marshalSnapshot(o.Snapshot)
	if err != nil {
		return fmt.Errorf("orders/postgres: encode snapshot: %w", err)
	}
	updated := now()

	tag, err := c.q.Exec(ctx, `
		UPDATE orders_orders SET
			status = $2, snapshot = $3, erp_reference = $4, erp_message = $5,
			invoice_number = $6, invoiced_at = $7, version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $9`,
		o.ID.String(), string(o.Status), snap, o.ErpReference, o.ErpMessage,
		o.InvoiceNumber, o.InvoicedAt, updated, o.Version)
	if err != nil {
		return fmt.Errorf("orders/postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := c.GetOrder(ctx, o.ID); err != nil {
			return err
		}
		return orders.ErrConcurrencyConflict
	}
	o.Version++
	o.UpdatedAt = updated
	return nil
}

func (c *conn) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+orderColumns+` FROM orders_orders
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($3, 0) OFFSET $4`,
		opts.UserID, string(opts.Status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: list orders: %w", err)
	}
	return collect(rows, scanOrder)
}

// ==================== Invoice Store ====================

func (c *conn) NextSequence(ctx context.Context, day string) (int64, error) {
	var seq int64
	err := c.q.QueryRow(ctx, `
		INSERT INTO orders_invoice_sequences (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = orders_invoice_sequences.value + 1
		RETURNING value`, day).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("orders/postgres: next sequence: %w", err)
	}
	return seq, nil
}

func (c *conn) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO orders_invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)`,
		inv.ID.String(), inv.Number, inv.OrderID.String(), inv.ClientID, string(inv.Type), string(inv.Status),
		inv.NetAmount.Amount, inv.IvaAmount.Amount, inv.TotalAmount.Amount, inv.TotalAmount.Currency,
		inv.ClientName, inv.TaxID, inv.Email, inv.Phone, inv.Address, inv.City,
		inv.IssueDate, inv.DueDate, inv.PaidDate, inv.CancelledAt, inv.CancelReason, inv.CreatedAt, inv.UpdatedAt)
	switch {
	case isUniqueViolation(err, "orders_invoices_active_order_key"):
		return orders.ErrInvoiceExists
	case isUniqueViolation(err, ""):
		return fmt.Errorf("%w: duplicate invoice number %s", orders.ErrConcurrencyConflict, inv.Number)
	case err != nil:
		return fmt.Errorf("orders/postgres: create invoice: %w", err)
	}
	return nil
}

func (c *conn) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return c.getInvoice(ctx, `SELECT `+invoiceColumns+` FROM orders_invoices WHERE id = $1`, invID.String())
}

func (c *conn) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return c.getInvoice(ctx, `SELECT `+invoiceColumns+` FROM orders_invoices WHERE number = $1`, number)
}

func (c *conn) GetActiveInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return c.getInvoice(ctx, `SELECT `+invoiceColumns+` FROM orders_invoices
		WHERE order_id = $1 AND status <> 'cancelled'`, orderID.String())
}

func (c *conn) LockInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return c.getInvoice(ctx, `SELECT `+invoiceColumns+` FROM orders_invoices WHERE id = $1 FOR UPDATE`, invID.String())
}

func (c *conn) getInvoice(ctx context.Context, query string, arg any) (*invoice.Invoice, error) {
	inv, err := scanInvoice(c.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: get invoice: %w", err)
	}
	return inv, nil
}

func (c *conn) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	updated := now()
	tag, err := c.q.Exec(ctx, `
		UPDATE orders_invoices SET
			status = $2, paid_date = $3, cancelled_at = $4, cancel_reason = $5, updated_at = $6
		WHERE id = $1`,
		inv.ID.String(), string(inv.Status), inv.PaidDate, inv.CancelledAt, inv.CancelReason, updated)
	if err != nil {
		return fmt.Errorf("orders/postgres: update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrInvoiceNotFound
	}
	inv.UpdatedAt = updated
	return nil
}

// ==================== Payment Store ====================

func (c *conn) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO orders_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID.String(), nullID(p.InvoiceID), nullID(p.OrderID), p.ClientID, string(p.Type),
		p.Amount.Amount, p.Amount.Currency, string(p.Status), p.Method, p.Reference,
		p.PaymentDate, p.ConfirmedAt, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err, "") {
		return orders.ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("orders/postgres: create payment: %w", err)
	}
	return nil
}

func (c *conn) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return c.getPayment(ctx, `SELECT `+paymentColumns+` FROM orders_payments WHERE id = $1`, paymentID)
}

func (c *conn) LockPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return c.getPayment(ctx, `SELECT `+paymentColumns+` FROM orders_payments WHERE id = $1 FOR UPDATE`, paymentID)
}

func (c *conn) getPayment(ctx context.Context, query string, paymentID id.PaymentID) (*payment.Payment, error) {
	p, err := scanPayment(c.q.QueryRow(ctx, query, paymentID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: get payment: %w", err)
	}
	return p, nil
}

func (c *conn) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	updated := now()
	tag, err := c.q.Exec(ctx, `
		UPDATE orders_payments SET status = $2, confirmed_at = $3, reference = $4, updated_at = $5
		WHERE id = $1`,
		p.ID.String(), string(p.Status), p.ConfirmedAt, p.Reference, updated)
	if err != nil {
		return fmt.Errorf("orders/postgres: update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrPaymentNotFound
	}
	p.UpdatedAt = updated
	return nil
}

func (c *conn) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+paymentColumns+` FROM orders_payments
		WHERE invoice_id = $1
		ORDER BY created_at, id`, invID.String())
	if err != nil {
		return nil, fmt.Errorf("orders/postgres: list payments: %w", err)
	}
	return collect(rows, scanPayment)
}

func (c *conn) SumPayments(ctx context.Context, invID id.InvoiceID, currency string) (types.Money, error) {
	var total int64
	err := c.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM orders_payments
		WHERE invoice_id = $1 AND status <> 'cancelled'`, invID.String()).Scan(&total)
	if err != nil {
		return types.Money{}, fmt.Errorf("orders/postgres: sum payments: %w", err)
	}
	return types.Money{Amount: total, Currency: currency}, nil
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(scanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("orders/postgres: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders/postgres: rows: %w", err)
	}
	return out, nil
}
