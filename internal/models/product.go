package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store catalog.
type Product struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"size:255;not null" validate:"required,min=2,max=255"`
	Description   string          `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null" validate:"gte=0"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;default:0" validate:"gte=0"`
	Category      string          `json:"category" gorm:"size:100;index" validate:"omitempty,max=100"`
	SKU           string          `json:"sku" gorm:"column:sku;size:100;uniqueIndex;not null" validate:"required,max=100"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InStock reports whether at least quantity units are available.
func (p *Product) InStock(quantity int) bool {
	return p.StockQuantity >= quantity
}
