package repositories

import (
	"context"

	"onlinestore/internal/models"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status        models.OrderStatus
	CustomerEmail string
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	List(ctx context.Context, filter OrderFilter, page PageRequest) (*Page[models.Order], error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	// Create persists the order together with its items.
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error
	Delete(ctx context.Context, id uint) error
}
