// Package cart models a user's pending selection of SKUs before checkout.
package cart

import (
	"slices"

	"github.com/xraph/orders/id"
	"github.com/xraph/orders/types"
)

// Item is one SKU line of a cart. Qty is always at least 1.
type Item struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
	Qty  int64  `json:"qty"`
}

// Cart holds at most one Item per SKU, in insertion order.
type Cart struct {
	types.Entity
	ID      id.CartID `json:"id"`
	UserID  string    `json:"user_id"`
	Items   []Item    `json:"items"`
	Version int64     `json:"version"`
}

// New returns an empty cart for userID.
func New(userID string) *Cart {
	return &Cart{
		Entity: types.NewEntity(),
		ID:     id.NewCartID(),
		UserID: userID,
		Items:  []Item{},
	}
}

func (c *Cart) index(sku string) int {
	return slices.IndexFunc(c.Items, func(it Item) bool { return it.SKU == sku })
}

// Find returns the item for sku, if present.
func (c *Cart) Find(sku string) (Item, bool) {
	if i := c.index(sku); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// Add consolidates qty into the existing line for sku or appends a new one.
func (c *Cart) Add(sku, name string, qty int64) Item {
	if i := c.index(sku); i >= 0 {
		c.Items[i].Qty += qty
		if name != "" {
			c.Items[i].Name = name
		}
		return c.Items[i]
	}
	it := Item{SKU: sku, Name: name, Qty: qty}
	c.Items = append(c.Items, it)
	return it
}

// Set replaces the quantity of an existing line. A quantity of zero or less
// removes the line. A SKU not in the cart is left out. It reports whether
// the cart changed.
func (c *Cart) Set(sku string, qty int64) bool {
	if qty <= 0 {
		return c.Remove(sku)
	}
	i := c.index(sku)
	if i < 0 {
		return false
	}
	c.Items[i].Qty = qty
	return true
}

// Remove drops the line for sku and reports whether it existed.
func (c *Cart) Remove(sku string) bool {
	i := c.index(sku)
	if i < 0 {
		return false
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []Item{}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// TotalUnits sums the quantities of every line.
func (c *Cart) TotalUnits() int64 {
	var n int64
	for _, it := range c.Items {
		n += it.Qty
	}
	return n
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}

// Summary is the read-only view of a cart. It never carries prices.
type Summary struct {
	UserID     string `json:"user_id"`
	ItemCount  int    `json:"item_count"`
	TotalUnits int64  `json:"total_units"`
	Items      []Item `json:"items"`
}

// Summarize builds the summary view of c. A nil cart summarizes as empty.
func Summarize(userID string, c *Cart) Summary {
	s := Summary{UserID: userID, Items: []Item{}}
	if c == nil {
		return s
	}
	s.Items = slices.Clone(c.Items)
	s.ItemCount = len(c.Items)
	s.TotalUnits = c.TotalUnits()
	return s
}
