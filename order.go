package orders

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/types"
)

// LineInput is one requested (SKU, quantity) pair.
type LineInput struct {
	SKU string `json:"sku" validate:"required"`
	Qty int64  `json:"qty" validate:"gte=1"`
}

type createOrderInput struct {
	UserID string      `validate:"required"`
	Lines  []LineInput `validate:"required,min=1,dive"`
}

// ──────────────────────────────────────────────────
// Order Management
// ──────────────────────────────────────────────────

// CreateOrder prices lines from the current catalog, persists a confirmed
// order and reserves its stock in one transaction. Either all of it commits
// or none of it does. Duplicate SKUs are merged.
//
// The financial snapshot is attached in the background after commit; its
// failure never affects the returned order.
func (e *Engine) CreateOrder(ctx context.Context, userID string, lines []LineInput) (o *order.Order, err error) {
	ctx, end := e.startSpan(ctx, "CreateOrder", attribute.String("user_id", userID))
	defer end(&err)

	in := createOrderInput{UserID: strings.TrimSpace(userID), Lines: mergeLines(lines)}
	if err := e.check(in); err != nil {
		return nil, err
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = e.placeOrder(ctx, tx, in.UserID, in.Lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.orderPlaced(ctx, o)
	return o, nil
}

// CreateOrderFromCart places an order for everything in the user's cart and
// empties the cart in the same transaction. On failure the cart is left as
// it was.
func (e *Engine) CreateOrderFromCart(ctx context.Context, userID string) (o *order.Order, err error) {
	ctx, end := e.startSpan(ctx, "CreateOrderFromCart", attribute.String("user_id", userID))
	defer end(&err)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.LockCart(ctx, userID)
		if err != nil {
			if IsNotFound(err) {
				return ValidationError{Field: "cart", Message: "is empty"}
			}
			return err
		}
		if c.IsEmpty() {
			return ValidationError{Field: "cart", Message: "is empty"}
		}

		lines := make([]LineInput, 0, len(c.Items))
		for _, it := range c.Items {
			lines = append(lines, LineInput{SKU: it.SKU, Qty: it.Qty})
		}

		o, err = e.placeOrder(ctx, tx, userID, lines)
		if err != nil {
			return err
		}

		c.Clear()
		return tx.SaveCart(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	e.orderPlaced(ctx, o)
	return o, nil
}

// placeOrder runs inside the caller's transaction.
func (e *Engine) placeOrder(ctx context.Context, tx store.Tx, userID string, lines []LineInput) (*order.Order, error) {
	now := e.now()
	o := &order.Order{
		Entity: types.NewEntityAt(now),
		ID:     id.NewOrderID(),
		UserID: userID,
		Lines:  make([]order.Line, 0, len(lines)),
		Status: order.StatusConfirmed,
	}

	currency := ""
	for _, in := range lines {
		p, err := tx.GetProduct(ctx, in.SKU)
		if err != nil {
			return nil, err
		}
		if in.Qty > p.StockQty {
			return nil, &InsufficientStockError{SKU: p.SKU, Requested: in.Qty, Available: p.StockQty}
		}
		if currency == "" {
			currency = p.UnitPrice.Currency
		} else if p.UnitPrice.Currency != currency {
			return nil, fmt.Errorf("%w: %s is priced in %s, order is in %s",
				ErrCurrencyMismatch, p.SKU, p.UnitPrice.Currency, currency)
		}
		o.Lines = append(o.Lines, order.NewLine(p.SKU, p.Name, in.Qty, p.UnitPrice))
	}

	subtotals := make([]types.Money, len(o.Lines))
	for i, l := range o.Lines {
		subtotals[i] = l.Subtotal
	}
	o.TotalAmount = types.Sum(currency, subtotals...)

	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	for _, l := range o.Lines {
		if _, err := tx.ReserveStock(ctx, l.SKU, l.Qty); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// orderPlaced runs the post-commit side effects of a new order.
func (e *Engine) orderPlaced(ctx context.Context, o *order.Order) {
	e.logger.Info("order created",
		"order_id", o.ID.String(),
		"user_id", o.UserID,
		"lines", len(o.Lines),
		"total", o.TotalAmount.String(),
	)

	e.plugins.EmitOrderCreated(ctx, o.Clone())
	e.scheduleSnapshot(o.ID)
}

// GetOrder retrieves an order by ID.
func (e *Engine) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders lists orders newest first.
func (e *Engine) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "unknown status " + string(opts.Status)}
	}
	return e.store.ListOrders(ctx, opts)
}

// UpdateStatus moves an order along one edge of the status graph. Invalid
// edges fail with a TransitionError and leave the order unchanged.
// Cancelling a confirmed order releases its reserved stock.
func (e *Engine) UpdateStatus(ctx context.Context, orderID id.OrderID, to order.Status) (o *order.Order, err error) {
	ctx, end := e.startSpan(ctx, "UpdateStatus",
		attribute.String("order_id", orderID.String()),
		attribute.String("status", string(to)),
	)
	defer end(&err)

	if !to.Valid() {
		return nil, ValidationError{Field: "status", Message: "unknown status " + string(to)}
	}

	var from order.Status
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		return e.transition(ctx, tx, o, to)
	})
	if err != nil {
		return nil, err
	}

	e.statusChanged(ctx, o, from)
	return o, nil
}

// CancelOrder cancels an order and releases any reserved stock.
// Rejecting a confirmed order through UpdateStatus releases stock the same way.
func (e *Engine) CancelOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.UpdateStatus(ctx, orderID, order.StatusCancelled)
}

// transition validates and applies one status edge to a locked order and
// persists it inside tx.
func (e *Engine) transition(ctx context.Context, tx store.Tx, o *order.Order, to order.Status) error {
	from := o.Status
	if !order.CanTransition(from, to) {
		return &TransitionError{Entity: "order", From: string(from), To: string(to)}
	}

	switch to {
	case order.StatusCancelled, order.StatusRejected:
		if from == order.StatusConfirmed {
			for _, l := range o.Lines {
				if _, err := tx.ReleaseStock(ctx, l.SKU, l.Qty); err != nil {
					return fmt.Errorf("release %s: %w", l.SKU, err)
				}
			}
		}
	case order.StatusInvoiced:
		now := e.now()
		o.InvoicedAt = &now
	}

	o.Status = to
	return tx.UpdateOrder(ctx, o)
}

// statusChanged runs the post-commit side effects of a transition.
func (e *Engine) statusChanged(ctx context.Context, o *order.Order, from order.Status) {
	if o.Status == from {
		return
	}

	e.logger.Info("order status changed",
		"order_id", o.ID.String(),
		"from", string(from),
		"to", string(o.Status),
	)

	snap := o.Clone()
	e.plugins.EmitOrderStatusChanged(ctx, snap, from)
	switch o.Status {
	case order.StatusSentToErp:
		e.plugins.EmitOrderSentToErp(ctx, snap)
	case order.StatusInvoiced:
		e.plugins.EmitOrderInvoiced(ctx, snap)
	}
}

// mergeLines normalizes SKUs and folds duplicates into the first occurrence.
func mergeLines(lines []LineInput) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		sku := product.NormalizeSKU(l.SKU)
		if i := slices.IndexFunc(out, func(m LineInput) bool { return m.SKU == sku && sku != "" }); i >= 0 && l.Qty > 0 && out[i].Qty > 0 {
			out[i].Qty += l.Qty
			continue
		}
		out = append(out, LineInput{SKU: sku, Qty: l.Qty})
	}
	return out
}
