package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"onlinestore/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) hydrated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.id ASC")
		}).
		Preload("Items.Product")
}

// Create inserts the cart row only; items are written through SaveItem.
func (r *GORMCartRepository) Create(ctx context.Context, cart *models.Cart) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(cart).Error; err != nil {
		return translate(err, "failed to create cart for session %s", cart.SessionID)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return nil
}

func (r *GORMCartRepository) GetByID(ctx context.Context, id uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.hydrated(ctx).First(&cart, id).Error; err != nil {
		return nil, translate(err, "cart with ID %d", id)
	}
	return &cart, nil
}

// GetByIDForUpdate locks the cart row before reading it with its items.
func (r *GORMCartRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Cart, error) {
	var locked models.Cart
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Select("id").First(&locked, id).Error; err != nil {
		return nil, translate(err, "cart with ID %d", id)
	}
	return r.GetByID(ctx, id)
}

func (r *GORMCartRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.hydrated(ctx).Where("session_id = ?", sessionID).First(&cart).Error; err != nil {
		return nil, translate(err, "cart for session %s", sessionID)
	}
	return &cart, nil
}

func (r *GORMCartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == 0 {
		if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
			return translate(err, "failed to add product %d to cart %d", item.ProductID, item.CartID)
		}
		return nil
	}

	item.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", item.ID, item.CartID).
		Updates(map[string]interface{}{
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
			"updated_at": item.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update cart item %d: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %d in cart %d: %w", item.ID, item.CartID, ErrNotFound)
	}
	return nil
}

func (r *GORMCartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart item %d in cart %d: %w", itemID, cartID, ErrNotFound)
	}
	return nil
}

func (r *GORMCartRepository) ClearItems(ctx context.Context, cartID uint) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart %d: %w", cartID, err)
	}
	return nil
}

// UpdateTotals persists the derived totals and bumps updated_at.
func (r *GORMCartRepository) UpdateTotals(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]interface{}{
			"total_price": cart.TotalPrice,
			"total_items": cart.TotalItems,
			"updated_at":  cart.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update totals of cart %d: %w", cart.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart with ID %d: %w", cart.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the cart and its items. Callers run it inside WithTx.
func (r *GORMCartRepository) Delete(ctx context.Context, id uint) error {
	if err := r.ClearItems(ctx, id); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&models.Cart{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart with ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteUpdatedBefore removes every cart untouched since cutoff.
func (r *GORMCartRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Cart{}).Where("updated_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale carts: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Where("cart_id IN ?", ids).Delete(&models.CartItem{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete stale cart items: %w", err)
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Cart{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale carts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
