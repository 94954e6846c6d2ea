package repositories

import (
	"context"
	"fmt"
	"time"

	"onlinestore/internal/models"
)

// MockCartRepository is an in-memory implementation of CartRepository.
type MockCartRepository struct {
	store *MockStore
}

func (r *MockCartRepository) Create(ctx context.Context, cart *models.Cart) error {
	return r.store.update(ctx, func(d *memoryData) error {
		for _, c := range d.carts {
			if c.SessionID == cart.SessionID {
				return fmt.Errorf("cart for session %s: %w", cart.SessionID, ErrDuplicate)
			}
		}
		d.nextCartID++
		cart.ID = d.nextCartID
		cart.Items = []models.CartItem{}
		cart.CreatedAt = time.Now()
		cart.UpdatedAt = cart.CreatedAt
		d.carts[cart.ID] = *cart
		return nil
	})
}

func (r *MockCartRepository) GetByID(ctx context.Context, id uint) (*models.Cart, error) {
	var cart *models.Cart
	err := r.store.view(func(d *memoryData) error {
		c, ok := d.carts[id]
		if !ok {
			return fmt.Errorf("cart with ID %d: %w", id, ErrNotFound)
		}
		cart = d.hydrateCart(c)
		return nil
	})
	return cart, err
}

func (r *MockCartRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Cart, error) {
	return r.GetByID(ctx, id)
}

func (r *MockCartRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart *models.Cart
	err := r.store.view(func(d *memoryData) error {
		for _, c := range d.carts {
			if c.SessionID == sessionID {
				cart = d.hydrateCart(c)
				return nil
			}
		}
		return fmt.Errorf("cart for session %s: %w", sessionID, ErrNotFound)
	})
	return cart, err
}

func (r *MockCartRepository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.store.update(ctx, func(d *memoryData) error {
		cart, ok := d.carts[item.CartID]
		if !ok {
			return fmt.Errorf("cart with ID %d: %w", item.CartID, ErrNotFound)
		}
		now := time.Now()

		if item.ID == 0 {
			if cart.FindItemByProduct(item.ProductID) != nil {
				return fmt.Errorf("product %d in cart %d: %w", item.ProductID, item.CartID, ErrDuplicate)
			}
			d.nextCartItemID++
			item.ID = d.nextCartItemID
			item.CreatedAt = now
			item.UpdatedAt = now
			stored := *item
			stored.Product = nil
			cart.Items = append(cart.Items, stored)
			d.carts[cart.ID] = cart
			return nil
		}

		existing := cart.FindItem(item.ID)
		if existing == nil {
			return fmt.Errorf("cart item %d in cart %d: %w", item.ID, item.CartID, ErrNotFound)
		}
		existing.Quantity = item.Quantity
		existing.UnitPrice = item.UnitPrice
		existing.UpdatedAt = now
		item.UpdatedAt = now
		d.carts[cart.ID] = cart
		return nil
	})
}

func (r *MockCartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) error {
	return r.store.update(ctx, func(d *memoryData) error {
		cart, ok := d.carts[cartID]
		if !ok {
			return fmt.Errorf("cart with ID %d: %w", cartID, ErrNotFound)
		}
		kept := make([]models.CartItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(cart.Items) {
			return fmt.Errorf("cart item %d in cart %d: %w", itemID, cartID, ErrNotFound)
		}
		cart.Items = kept
		d.carts[cartID] = cart
		return nil
	})
}

func (r *MockCartRepository) ClearItems(ctx context.Context, cartID uint) error {
	return r.store.update(ctx, func(d *memoryData) error {
		cart, ok := d.carts[cartID]
		if !ok {
			return nil
		}
		cart.Items = []models.CartItem{}
		d.carts[cartID] = cart
		return nil
	})
}

func (r *MockCartRepository) UpdateTotals(ctx context.Context, cart *models.Cart) error {
	return r.store.update(ctx, func(d *memoryData) error {
		stored, ok := d.carts[cart.ID]
		if !ok {
			return fmt.Errorf("cart with ID %d: %w", cart.ID, ErrNotFound)
		}
		cart.UpdatedAt = time.Now()
		stored.TotalPrice = cart.TotalPrice
		stored.TotalItems = cart.TotalItems
		stored.UpdatedAt = cart.UpdatedAt
		d.carts[cart.ID] = stored
		return nil
	})
}

func (r *MockCartRepository) Delete(ctx context.Context, id uint) error {
	return r.store.update(ctx, func(d *memoryData) error {
		if _, ok := d.carts[id]; !ok {
			return fmt.Errorf("cart with ID %d: %w", id, ErrNotFound)
		}
		delete(d.carts, id)
		return nil
	})
}

func (r *MockCartRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := r.store.update(ctx, func(d *memoryData) error {
		for id, c := range d.carts {
			if c.UpdatedAt.Before(cutoff) {
				delete(d.carts, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}
