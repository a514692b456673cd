package orders

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/orders/cart"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/store"
)

// ──────────────────────────────────────────────────
// Cart Management
// ──────────────────────────────────────────────────

// AddToCart adds qty units of sku to the user's cart, creating the cart on
// first use. Adding a SKU already in the cart sums the quantities.
func (e *Engine) AddToCart(ctx context.Context, userID, sku, name string, qty int64) (item cart.Item, err error) {
	ctx, end := e.startSpan(ctx, "AddToCart", attribute.String("user_id", userID))
	defer end(&err)

	sku = product.NormalizeSKU(sku)
	if err := validateCartKey(userID, sku); err != nil {
		return cart.Item{}, err
	}
	if qty < 1 {
		return cart.Item{}, ValidationError{Field: "qty", Message: "must be at least 1"}
	}

	err = e.mutateCart(ctx, userID, true, func(c *cart.Cart) (bool, error) {
		item = c.Add(sku, strings.TrimSpace(name), qty)
		return true, nil
	})
	if err != nil {
		return cart.Item{}, err
	}

	e.logger.Debug("cart item added", "user_id", userID, "sku", sku, "qty", item.Qty)
	return item, nil
}

// SetCartQuantity replaces the quantity of a SKU already in the cart. A
// quantity of zero or less removes the line. Setting a positive quantity for
// a SKU the cart does not hold fails with ErrCartItemNotFound; AddToCart is
// the way to add lines.
func (e *Engine) SetCartQuantity(ctx context.Context, userID, sku string, qty int64) (err error) {
	ctx, end := e.startSpan(ctx, "SetCartQuantity", attribute.String("user_id", userID))
	defer end(&err)

	sku = product.NormalizeSKU(sku)
	if err := validateCartKey(userID, sku); err != nil {
		return err
	}

	return e.mutateCart(ctx, userID, false, func(c *cart.Cart) (bool, error) {
		if _, ok := c.Find(sku); !ok && qty > 0 {
			return false, fmt.Errorf("%w: %s", ErrCartItemNotFound, sku)
		}
		return c.Set(sku, qty), nil
	})
}

// RemoveFromCart drops sku from the user's cart. Removing an absent SKU is
// not an error.
func (e *Engine) RemoveFromCart(ctx context.Context, userID, sku string) (err error) {
	ctx, end := e.startSpan(ctx, "RemoveFromCart", attribute.String("user_id", userID))
	defer end(&err)

	sku = product.NormalizeSKU(sku)
	if err := validateCartKey(userID, sku); err != nil {
		return err
	}

	return e.mutateCart(ctx, userID, false, func(c *cart.Cart) (bool, error) {
		return c.Remove(sku), nil
	})
}

// ClearCart empties the user's cart.
func (e *Engine) ClearCart(ctx context.Context, userID string) (err error) {
	ctx, end := e.startSpan(ctx, "ClearCart", attribute.String("user_id", userID))
	defer end(&err)

	if strings.TrimSpace(userID) == "" {
		return ValidationError{Field: "user_id", Message: "is required"}
	}

	return e.mutateCart(ctx, userID, false, func(c *cart.Cart) (bool, error) {
		if c.IsEmpty() {
			return false, nil
		}
		c.Clear()
		return true, nil
	})
}

// CartSummary returns the user's cart contents. A user without a cart gets
// an empty summary.
func (e *Engine) CartSummary(ctx context.Context, userID string) (cart.Summary, error) {
	c, err := e.store.GetCart(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return cart.Summarize(userID, nil), nil
		}
		return cart.Summary{}, err
	}
	return cart.Summarize(userID, c), nil
}

// mutateCart applies fn to the locked cart and saves it when fn reports a
// change. With create set, a missing cart is created first; otherwise a
// missing cart is left alone.
func (e *Engine) mutateCart(ctx context.Context, userID string, create bool, fn func(c *cart.Cart) (bool, error)) error {
	return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if create {
			if err := tx.EnsureCart(ctx, userID); err != nil {
				return err
			}
		}

		c, err := tx.LockCart(ctx, userID)
		if !create && IsNotFound(err) {
			// No cart means nothing to change; fn still gets to reject the call.
			_, err = fn(cart.New(userID))
			return err
		}
		if err != nil {
			return err
		}

		changed, err := fn(c)
		if err != nil || !changed {
			return err
		}
		return tx.SaveCart(ctx, c)
	})
}

func validateCartKey(userID, sku string) error {
	var errs MultiError
	if strings.TrimSpace(userID) == "" {
		errs.Add(ValidationError{Field: "user_id", Message: "is required"})
	}
	if sku == "" {
		errs.Add(ValidationError{Field: "sku", Message: "is required"})
	}
	return errs.ErrorOrNil()
}
