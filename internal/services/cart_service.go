package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
)

// QuantityLimits bounds the quantity of a single cart line.
type QuantityLimits struct {
	Min int
	Max int
}

// DefaultQuantityLimits allows 1 to 99 units per line.
var DefaultQuantityLimits = QuantityLimits{Min: 1, Max: 99}

// CartService handles business logic related to shopping carts.
type CartService struct {
	store  repositories.Store
	limits QuantityLimits
	logger *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store, limits QuantityLimits, logger *zap.Logger) *CartService {
	if limits.Min < 1 || limits.Max < limits.Min {
		limits = DefaultQuantityLimits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		store:  store,
		limits: limits,
		logger: logger.Named("cart"),
	}
}

func (s *CartService) checkQuantity(quantity int) error {
	if quantity < s.limits.Min || quantity > s.limits.Max {
		msg := fmt.Sprintf("quantity must be between %d and %d, got %d", s.limits.Min, s.limits.Max, quantity)
		return &ValidationError{Message: msg, Fields: map[string]string{"quantity": msg}}
	}
	return nil
}

// lookupErr turns a repository ErrNotFound into a NotFoundError for resource.
func lookupErr(err error, resource string, key interface{}) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound(resource, key)
	}
	return err
}

func (s *CartService) lockCart(ctx context.Context, tx repositories.Store, cartID uint) (*models.Cart, error) {
	cart, err := tx.Carts().GetByIDForUpdate(ctx, cartID)
	if err != nil {
		return nil, lookupErr(err, "cart", cartID)
	}
	return cart, nil
}

func saveTotals(ctx context.Context, tx repositories.Store, cart *models.Cart) error {
	cart.RecalculateTotals()
	if err := tx.Carts().UpdateTotals(ctx, cart); err != nil {
		return fmt.Errorf("failed to save cart totals: %w", err)
	}
	return nil
}

// CreateCart creates an empty cart bound to sessionID, generating one when blank.
func (s *CartService) CreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = "session-" + uuid.NewString()
	}

	cart := &models.Cart{SessionID: sessionID, Items: []models.CartItem{}}
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		return tx.Carts().Create(ctx, cart)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, &ConflictError{Message: fmt.Sprintf("a cart already exists for session %s", sessionID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	s.logger.Info("cart created", zap.Uint("cart_id", cart.ID), zap.String("session_id", sessionID))
	return cart, nil
}

// GetCart retrieves a cart with its items and their products.
func (s *CartService) GetCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	cart, err := s.store.Carts().GetByID(ctx, cartID)
	if err != nil {
		return nil, lookupErr(err, "cart", cartID)
	}
	cart.RecalculateTotals()
	return cart, nil
}

// GetCartBySession retrieves the cart bound to sessionID.
func (s *CartService) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.store.Carts().GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, "cart for session", sessionID)
	}
	cart.RecalculateTotals()
	return cart, nil
}

// AddItem adds quantity units of a product, merging into an existing line for
// the same product. Bounds and stock are checked against the combined quantity.
func (s *CartService) AddItem(ctx context.Context, cartID, productID uint, quantity int) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		cart, err := s.lockCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		product, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			return lookupErr(err, "product", productID)
		}
		// Missing cart or product wins over a bad quantity.
		if quantity < 1 {
			return &ValidationError{
				Message: "quantity must be at least 1",
				Fields:  map[string]string{"quantity": "quantity must be at least 1"},
			}
		}

		item := cart.FindItemByProduct(productID)
		desired := quantity
		if item != nil {
			desired += item.Quantity
		}
		if err := s.checkQuantity(desired); err != nil {
			return err
		}
		if !product.InStock(desired) {
			return insufficientStock(product, desired)
		}

		if item == nil {
			newItem := models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  desired,
				UnitPrice: product.Price,
			}
			if err := tx.Carts().SaveItem(ctx, &newItem); err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}
			newItem.Product = product
			cart.Items = append(cart.Items, newItem)
		} else {
			item.Quantity = desired
			if item.UnitPrice.IsZero() {
				item.UnitPrice = product.Price
			}
			if err := tx.Carts().SaveItem(ctx, item); err != nil {
				return fmt.Errorf("failed to update item: %w", err)
			}
		}

		if err := saveTotals(ctx, tx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("item added",
		zap.Uint("cart_id", cartID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity))
	return result, nil
}

// UpdateItem replaces the quantity of one line.
func (s *CartService) UpdateItem(ctx context.Context, cartID, itemID uint, quantity int) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		cart, err := s.lockCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		item := cart.FindItem(itemID)
		if item == nil {
			return notFound("cart item", itemID)
		}
		product, err := tx.Products().GetByID(ctx, item.ProductID)
		if err != nil {
			return lookupErr(err, "product", item.ProductID)
		}
		if err := s.checkQuantity(quantity); err != nil {
			return err
		}
		if !product.InStock(quantity) {
			return insufficientStock(product, quantity)
		}

		item.Quantity = quantity
		item.Product = product
		if err := tx.Carts().SaveItem(ctx, item); err != nil {
			return lookupErr(err, "cart item", itemID)
		}
		if err := saveTotals(ctx, tx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem drops one line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, cartID, itemID uint) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		cart, err := s.lockCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if !cart.RemoveItem(itemID) {
			return notFound("cart item", itemID)
		}
		if err := tx.Carts().DeleteItem(ctx, cartID, itemID); err != nil {
			return lookupErr(err, "cart item", itemID)
		}
		if err := saveTotals(ctx, tx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClearCart removes every line and zeroes the totals.
func (s *CartService) ClearCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		cart, err := s.lockCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if err := tx.Carts().ClearItems(ctx, cartID); err != nil {
			return err
		}
		cart.Clear()
		if err := saveTotals(ctx, tx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteCart removes the cart together with its items.
func (s *CartService) DeleteCart(ctx context.Context, cartID uint) error {
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		return tx.Carts().Delete(ctx, cartID)
	})
	if err != nil {
		return lookupErr(err, "cart", cartID)
	}
	s.logger.Info("cart deleted", zap.Uint("cart_id", cartID))
	return nil
}

// MergeCarts moves every line of the source cart into the target cart and
// deletes the source. Lines for a product already in the target are combined
// and keep the target's unit price.
func (s *CartService) MergeCarts(ctx context.Context, sourceID, targetID uint) (*models.Cart, error) {
	if sourceID == targetID {
		return nil, validationf("cannot merge cart %d into itself", sourceID)
	}

	var result *models.Cart
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		// Lock in id order so two opposite merges cannot deadlock.
		first, second := sourceID, targetID
		if first > second {
			first, second = second, first
		}
		locked := make(map[uint]*models.Cart, 2)
		for _, id := range []uint{first, second} {
			cart, err := s.lockCart(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = cart
		}
		source, target := locked[sourceID], locked[targetID]

		for _, line := range source.Items {
			if existing := target.FindItemByProduct(line.ProductID); existing != nil {
				combined := existing.Quantity + line.Quantity
				if err := s.checkQuantity(combined); err != nil {
					return err
				}
				product, err := tx.Products().GetByID(ctx, line.ProductID)
				if err != nil {
					return lookupErr(err, "product", line.ProductID)
				}
				if !product.InStock(combined) {
					return insufficientStock(product, combined)
				}
				existing.Quantity = combined
				if err := tx.Carts().SaveItem(ctx, existing); err != nil {
					return fmt.Errorf("failed to merge item: %w", err)
				}
				continue
			}

			moved := models.CartItem{
				CartID:    target.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
			if err := tx.Carts().SaveItem(ctx, &moved); err != nil {
				return fmt.Errorf("failed to copy item: %w", err)
			}
			moved.Product = line.Product
			target.Items = append(target.Items, moved)
		}

		if err := tx.Carts().Delete(ctx, source.ID); err != nil {
			return fmt.Errorf("failed to delete merged cart: %w", err)
		}
		if err := saveTotals(ctx, tx, target); err != nil {
			return err
		}
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("carts merged", zap.Uint("source_cart_id", sourceID), zap.Uint("target_cart_id", targetID))
	return result, nil
}

// PurgeStaleCarts deletes carts not modified within maxAge and returns how many were removed.
func (s *CartService) PurgeStaleCarts(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, validationf("max age must be positive, got %s", maxAge)
	}
	cutoff := time.Now().Add(-maxAge)

	var removed int64
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		n, err := tx.Carts().DeleteUpdatedBefore(ctx, cutoff)
		removed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale carts: %w", err)
	}
	if removed > 0 {
		s.logger.Info("stale carts purged", zap.Int64("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
