package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"onlinestore/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) hydrated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

func (r *GORMOrderRepository) filtered(ctx context.Context, filter OrderFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CustomerEmail != "" {
		q = q.Where("customer_email = ?", filter.CustomerEmail)
	}
	return q
}

func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter, page PageRequest) (*Page[models.Order], error) {
	page = page.Normalize()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := r.filtered(ctx, filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Clauses(orderClause(sortColumn(orderSortColumns, page.SortBy), page.Direction)).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return NewPage(orders, page, total), nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.hydrated(ctx).First(&order, id).Error; err != nil {
		return nil, translate(err, "order with ID %d", id)
	}
	return &order, nil
}

func (r *GORMOrderRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var locked models.Order
	if err := r.db.WithContext(ctx).Clauses(forUpdate).Select("id").First(&locked, id).Error; err != nil {
		return nil, translate(err, "order with ID %d", id)
	}
	return r.GetByID(ctx, id)
}

func (r *GORMOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.hydrated(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, translate(err, "order %s", orderNumber)
	}
	return &order, nil
}

// Create inserts the order and, through the has-many association, its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return translate(err, "failed to create order %s", order.OrderNumber)
	}
	return nil
}

func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update status of order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes the order and its items. Callers run it inside WithTx.
func (r *GORMOrderRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete items of order %d: %w", id, err)
	}
	res := r.db.WithContext(ctx).Delete(&models.Order{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
	}
	return nil
}
