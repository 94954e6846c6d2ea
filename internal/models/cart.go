package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a single line of a cart. It refers back to its cart by id only.
type CartItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	CartID    uint            `json:"cart_id" gorm:"not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID uint            `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_items_cart_product"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LineTotal is unit price times quantity.
func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a mutable, pre-checkout collection of line items bound to a session.
type Cart struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	SessionID  string          `json:"session_id" gorm:"size:255;uniqueIndex;not null"`
	Items      []CartItem      `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:numeric(12,2);not null;default:0"`
	TotalItems int             `json:"total_items" gorm:"not null;default:0"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RecalculateTotals derives TotalPrice and TotalItems from the current items.
// Every mutation of Items must be followed by a call before the cart is persisted or returned.
func (c *Cart) RecalculateTotals() {
	total := decimal.Zero
	count := 0
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal())
		count += c.Items[i].Quantity
	}
	c.TotalPrice = total
	c.TotalItems = count
}

// FindItem returns the line with the given id, or nil.
func (c *Cart) FindItem(itemID uint) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// FindItemByProduct returns the line holding productID, or nil.
func (c *Cart) FindItemByProduct(productID uint) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveItem drops the line with the given id and recomputes totals.
func (c *Cart) RemoveItem(itemID uint) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.RecalculateTotals()
			return true
		}
	}
	return false
}

// Clear empties the cart and zeroes its totals.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.RecalculateTotals()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
