// Package mongo implements store.Store on MongoDB.
//
// RunInTx runs inside a multi-document transaction, so the deployment must
// be a replica set. Lock* methods stamp a fresh token on the document; two
// transactions locking the same document hit a write conflict and the
// driver retries the loser's callback.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

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

// Collection name constants.
const (
	colProducts  = "orders_products"
	colCarts     = "orders_carts"
	colOrders    = "orders_orders"
	colSequences = "orders_invoice_sequences"
	colInvoices  = "orders_invoices"
	colPayments  = "orders_payments"
)

// Index names referenced when classifying duplicate key errors.
const (
	idxInvoiceNumber      = "orders_invoices_number_key"
	idxInvoiceActiveOrder = "orders_invoices_active_order_key"
)

// compile-time interface checks
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*conn)(nil)
)

// Store implements store.Store using MongoDB.
type Store struct {
	*conn
	client *mongo.Client
	owned  bool // Close disconnects the client
}

// New creates a Store on db. Close leaves the client connected.
func New(db *mongo.Database) *Store {
	return &Store{conn: &conn{db: db}, client: db.Client()}
}

// Open connects to uri and uses database name.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("orders/mongo: ping: %w", err)
	}
	s := New(client.Database(name))
	s.owned = true
	return s, nil
}

// Database returns the underlying database.
func (s *Store) Database() *mongo.Database { return s.db }

// RunInTx implements store.Store.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("orders/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx, s.conn)
	})
	return mapTxError(err)
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("orders/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCarts: {
			{
				Keys:    bson.D{{Key: "cart_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colOrders: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colInvoices: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxInvoiceNumber),
			},
			{
				Keys: bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName(idxInvoiceActiveOrder).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
		},
		colPayments: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}

// mapTxError reports aborted transactions as ErrConcurrencyConflict.
func mapTxError(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", orders.ErrConcurrencyConflict, err)
	}
	return err
}

func isDuplicateKey(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && (index == "" || strings.Contains(err.Error(), index))
}

func now() time.Time { return time.Now().UTC() }

// conn runs entity operations. Inside RunInTx the context carries the
// session, so the same conn serves both modes.
type conn struct {
	db *mongo.Database
}

func (c *conn) col(name string) *mongo.Collection { return c.db.Collection(name) }

// lockUpdate stamps a fresh token so concurrent lockers conflict.
func lockUpdate() bson.M {
	return bson.M{"$set": bson.M{"lock": bson.NewObjectID()}}
}

// ==================== Product Store ====================

func (c *conn) GetProduct(ctx context.Context, sku string) (*product.Product, error) {
	var m productModel
	err := c.col(colProducts).FindOne(ctx, bson.M{"_id": sku}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: get product: %w", err)
	}
	return fromProductModel(&m), nil
}

func (c *conn) PutProduct(ctx context.Context, p *product.Product) error {
	m := toProductModel(p)
	var existing productModel
	err := c.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": p.SKU},
		bson.M{
			"$set": bson.M{
				"name":       m.Name,
				"stock_qty":  m.StockQty,
				"unit_price": m.UnitPrice,
				"currency":   m.Currency,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&existing)
	if err != nil {
		return fmt.Errorf("orders/mongo: put product: %w", err)
	}
	p.CreatedAt = existing.CreatedAt.UTC()
	return nil
}

func (c *conn) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	filter := bson.M{}
	if opts.InStockOnly {
		filter["stock_qty"] = bson.M{"$gt": 0}
	}
	cur, err := c.col(colProducts).Find(ctx, filter, findOpts(bson.D{{Key: "_id", Value: 1}}, opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: list products: %w", err)
	}
	var models []productModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("orders/mongo: list products: %w", err)
	}
	out := make([]*product.Product, len(models))
	for i := range models {
		out[i] = fromProductModel(&models[i])
	}
	return out, nil
}

func (c *conn) ReserveStock(ctx context.Context, sku string, qty int64) (int64, error) {
	var m productModel
	err := c.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": sku, "stock_qty": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock_qty": -qty}, "$set": bson.M{"updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return m.StockQty, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("orders/mongo: reserve stock: %w", err)
	}

	p, err := c.GetProduct(ctx, sku)
	if err != nil {
		return 0, err
	}
	return p.StockQty, &orders.InsufficientStockError{SKU: sku, Requested: qty, Available: p.StockQty}
}

func (c *conn) ReleaseStock(ctx context.Context, sku string, qty int64) (int64, error) {
	var m productModel
	err := c.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": sku},
		bson.M{"$inc": bson.M{"stock_qty": qty}, "$set": bson.M{"updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	if err != nil {
		return 0, fmt.Errorf("orders/mongo: release stock: %w", err)
	}
	return m.StockQty, nil
}

// ==================== Cart Store ====================

func (c *conn) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var m cartModel
	err := c.col(colCarts).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	return decodeCart(&m, err)
}

func (c *conn) EnsureCart(ctx context.Context, userID string) error {
	fresh := cart.New(userID)
	_, err := c.col(colCarts).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"cart_id":    fresh.ID.String(),
			"items":      bson.A{},
			"version":    int64(0),
			"created_at": fresh.CreatedAt,
			"updated_at": fresh.UpdatedAt,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !isDuplicateKey(err, "") {
		return fmt.Errorf("orders/mongo: ensure cart: %w", err)
	}
	return nil
}

func (c *conn) LockCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var m cartModel
	err := c.col(colCarts).FindOneAndUpdate(ctx, bson.M{"_id": userID}, lockUpdate()).Decode(&m)
	return decodeCart(&m, err)
}

func decodeCart(m *cartModel, err error) (*cart.Cart, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: get cart: %w", err)
	}
	return fromCartModel(m)
}

func (c *conn) SaveCart(ctx context.Context, ct *cart.Cart) error {
	updated := now()
	res, err := c.col(colCarts).UpdateOne(ctx,
		bson.M{"_id": ct.UserID, "version": ct.Version},
		bson.M{
			"$set": bson.M{"items": toCartItems(ct.Items), "updated_at": updated},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("orders/mongo: save cart: %w", err)
	}
	if res.MatchedCount == 0 {
		_, err := c.col(colCarts).InsertOne(ctx, &cartModel{
			UserID:    ct.UserID,
			ID:        ct.ID.String(),
			Items:     toCartItems(ct.Items),
			Version:   ct.Version + 1,
			CreatedAt: ct.CreatedAt,
			UpdatedAt: updated,
		})
		if isDuplicateKey(err, "") {
			return orders.ErrConcurrencyConflict
		}
		if err != nil {
			return fmt.Errorf("orders/mongo: save cart: %w", err)
		}
	}
	ct.Version++
	ct.UpdatedAt = updated
	return nil
}

// ==================== Order Store ====================

func (c *conn) CreateOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	m.Version = 1
	_, err := c.col(colOrders).InsertOne(ctx, m)
	if isDuplicateKey(err, "") {
		return orders.ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("orders/mongo: create order: %w", err)
	}
	o.Version = 1
	return nil
}

func (c *conn) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := c.col(colOrders).FindOne(ctx, bson.M{"_id": orderID.String()}).Decode(&m)
	return decodeOrder(&m, err)
}

func (c *conn) LockOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := c.col(colOrders).FindOneAndUpdate(ctx, bson.M{"_id": orderID.String()}, lockUpdate()).Decode(&m)
	return decodeOrder(&m, err)
}

func decodeOrder(m *orderModel, err error) (*order.Order, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: get order: %w", err)
	}
	return fromOrderModel(m)
}

func (c *conn) UpdateOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	updated := now()

	set := bson.M{
		"status":         m.Status,
		"erp_reference":  m.ErpReference,
		"erp_message":    m.ErpMessage,
		"invoice_number": m.InvoiceNumber,
		"updated_at":     updated,
	}
	unset := bson.M{}
	if m.Snapshot != nil {
		set["snapshot"] = m.Snapshot
	} else {
		unset["snapshot"] = ""
	}
	if m.InvoicedAt != nil {
		set["invoiced_at"] = m.InvoicedAt
	} else {
		unset["invoiced_at"] = ""
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := c.col(colOrders).UpdateOne(ctx, bson.M{"_id": m.ID, "version": o.Version}, update)
	if err != nil {
		return fmt.Errorf("orders/mongo: update order: %w", err)
	}
	if res.MatchedCount == 0 {
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
	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	cur, err := c.col(colOrders).Find(ctx, filter, findOpts(sort, opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: list orders: %w", err)
	}
	var models []orderModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("orders/mongo: list orders: %w", err)
	}
	out := make([]*order.Order, 0, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ==================== Invoice Store ====================

func (c *conn) NextSequence(ctx context.Context, day string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := c.col(colSequences).FindOneAndUpdate(ctx,
		bson.M{"_id": day},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("orders/mongo: next sequence: %w", err)
	}
	return doc.Value, nil
}

func (c *conn) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := c.col(colInvoices).InsertOne(ctx, toInvoiceModel(inv))
	switch {
	case isDuplicateKey(err, idxInvoiceActiveOrder):
		return orders.ErrInvoiceExists
	case isDuplicateKey(err, ""):
		return fmt.Errorf("%w: duplicate invoice number %s", orders.ErrConcurrencyConflict, inv.Number)
	case err != nil:
		return fmt.Errorf("orders/mongo: create invoice: %w", err)
	}
	return nil
}

func (c *conn) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return c.findInvoice(ctx, bson.M{"_id": invID.String()})
}

func (c *conn) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return c.findInvoice(ctx, bson.M{"number": number})
}

func (c *conn) GetActiveInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return c.findInvoice(ctx, bson.M{"order_id": orderID.String(), "active": true})
}

func (c *conn) findInvoice(ctx context.Context, filter bson.M) (*invoice.Invoice, error) {
	var m invoiceModel
	err := c.col(colInvoices).FindOne(ctx, filter).Decode(&m)
	return decodeInvoice(&m, err)
}

func (c *conn) LockInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := c.col(colInvoices).FindOneAndUpdate(ctx, bson.M{"_id": invID.String()}, lockUpdate()).Decode(&m)
	return decodeInvoice(&m, err)
}

func decodeInvoice(m *invoiceModel, err error) (*invoice.Invoice, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (c *conn) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	updated := now()
	res, err := c.col(colInvoices).UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{
		"status":        m.Status,
		"active":        m.Active,
		"paid_date":     m.PaidDate,
		"cancelled_at":  m.CancelledAt,
		"cancel_reason": m.CancelReason,
		"updated_at":    updated,
	}})
	if err != nil {
		return fmt.Errorf("orders/mongo: update invoice: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrInvoiceNotFound
	}
	inv.UpdatedAt = updated
	return nil
}

// ==================== Payment Store ====================

func (c *conn) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := c.col(colPayments).InsertOne(ctx, toPaymentModel(p))
	if isDuplicateKey(err, "") {
		return orders.ErrConcurrencyConflict
	}
	if err != nil {
		return fmt.Errorf("orders/mongo: create payment: %w", err)
	}
	return nil
}

func (c *conn) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := c.col(colPayments).FindOne(ctx, bson.M{"_id": paymentID.String()}).Decode(&m)
	return decodePayment(&m, err)
}

func (c *conn) LockPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := c.col(colPayments).FindOneAndUpdate(ctx, bson.M{"_id": paymentID.String()}, lockUpdate()).Decode(&m)
	return decodePayment(&m, err)
}

func decodePayment(m *paymentModel, err error) (*payment.Payment, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, orders.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: get payment: %w", err)
	}
	return fromPaymentModel(m)
}

func (c *conn) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	updated := now()
	res, err := c.col(colPayments).UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{
		"status":       m.Status,
		"confirmed_at": m.ConfirmedAt,
		"reference":    m.Reference,
		"updated_at":   updated,
	}})
	if err != nil {
		return fmt.Errorf("orders/mongo: update payment: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrPaymentNotFound
	}
	p.UpdatedAt = updated
	return nil
}

func (c *conn) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	sort := bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	cur, err := c.col(colPayments).Find(ctx, bson.M{"invoice_id": invID.String()}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("orders/mongo: list payments: %w", err)
	}
	var models []paymentModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("orders/mongo: list payments: %w", err)
	}
	out := make([]*payment.Payment, 0, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *conn) SumPayments(ctx context.Context, invID id.InvoiceID, currency string) (types.Money, error) {
	cur, err := c.col(colPayments).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"invoice_id": invID.String(),
			"status":     bson.M{"$ne": string(payment.StatusCancelled)},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return types.Money{}, fmt.Errorf("orders/mongo: sum payments: %w", err)
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return types.Money{}, fmt.Errorf("orders/mongo: sum payments: %w", err)
	}
	total := types.Zero(currency)
	if len(rows) > 0 {
		total.Amount = rows[0].Total
	}
	return total, nil
}

func findOpts(sort bson.D, limit, offset int) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(sort)
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
