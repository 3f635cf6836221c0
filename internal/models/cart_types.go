package models

import (
	"github.com/shopspring/decimal"
)

// CartItem is one line of a session cart. Name, price and image are a
// display snapshot; stock checks always go to the live product.
type CartItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImagePath *string         `json:"imagePath,omitempty"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the session-scoped shopping cart. It is never persisted in the
// database; the HTTP layer serializes it into the cookie session.
type Cart struct {
	Items []CartItem `json:"items"`
}

func (c *Cart) index(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Get returns the line for productID.
func (c *Cart) Get(productID int64) (CartItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// QuantityOf is the quantity of productID already in the cart, 0 if absent.
func (c *Cart) QuantityOf(productID int64) int {
	if item, ok := c.Get(productID); ok {
		return item.Quantity
	}
	return 0
}

// Merge adds item, increasing the quantity of an existing line for the same
// product and refreshing its display snapshot.
func (c *Cart) Merge(item CartItem) {
	if i := c.index(item.ProductID); i >= 0 {
		item.Quantity += c.Items[i].Quantity
		c.Items[i] = item
		return
	}
	c.Items = append(c.Items, item)
}

// SetQuantity replaces the quantity of a line; a non-positive quantity removes it.
func (c *Cart) SetQuantity(productID int64, quantity int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	c.Items[i].Quantity = quantity
}

// Remove drops the line for productID if present.
func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Count is the total number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Total is the sum of the line totals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
