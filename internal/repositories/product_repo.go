package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"onlinestore/internal/models"
)

// ProductFilter narrows product listings. Zero values mean "no constraint".
type ProductFilter struct {
	Category    string
	Name        string // case-insensitive substring of the name
	Keyword     string // case-insensitive substring of name or description
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter, page PageRequest) (*Page[models.Product], error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	// GetByIDForUpdate reads the product and holds a row lock until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
	// DecrementStock subtracts quantity only if at least quantity units remain.
	DecrementStock(ctx context.Context, id uint, quantity int) error
	IncrementStock(ctx context.Context, id uint, quantity int) error
}
