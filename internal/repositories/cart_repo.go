package repositories

import (
	"context"
	"time"

	"onlinestore/internal/models"
)

// CartRepository defines the interface for cart data access. Every read
// returns the cart hydrated with its items and their products.
type CartRepository interface {
	Create(ctx context.Context, cart *models.Cart) error
	GetByID(ctx context.Context, id uint) (*models.Cart, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Cart, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Cart, error)
	// SaveItem inserts the item when it has no id, otherwise updates quantity and unit price.
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID uint) error
	ClearItems(ctx context.Context, cartID uint) error
	UpdateTotals(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, id uint) error
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
