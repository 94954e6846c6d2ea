package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"onlinestore/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	store *MockStore
}

func orderLess(a, b *models.Order, column string) (less, equal bool) {
	switch column {
	case "order_number":
		return a.OrderNumber < b.OrderNumber, a.OrderNumber == b.OrderNumber
	case "status":
		return a.Status < b.Status, a.Status == b.Status
	case "total_amount":
		return a.TotalAmount.LessThan(b.TotalAmount), a.TotalAmount.Equal(b.TotalAmount)
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
	return a.ID < b.ID, a.ID == b.ID
}

// List returns one page of matching orders.
func (r *MockOrderRepository) List(ctx context.Context, filter OrderFilter, page PageRequest) (*Page[models.Order], error) {
	page = page.Normalize()
	column := sortColumn(orderSortColumns, page.SortBy)

	var matched []models.Order
	_ = r.store.view(func(d *memoryData) error {
		for _, o := range d.orders {
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.CustomerEmail != "" && o.Customer.Email != filter.CustomerEmail {
				continue
			}
			matched = append(matched, *copyOrder(o))
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		less, equal := orderLess(&matched[i], &matched[j], column)
		if equal {
			return matched[i].ID < matched[j].ID
		}
		if page.Direction == "desc" {
			return !less
		}
		return less
	})

	return NewPage(paginate(matched, page), page, int64(len(matched))), nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order *models.Order
	err := r.store.view(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
		}
		order = copyOrder(o)
		return nil
	})
	return order, err
}

func (r *MockOrderRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *MockOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order *models.Order
	err := r.store.view(func(d *memoryData) error {
		for _, o := range d.orders {
			if o.OrderNumber == orderNumber {
				order = copyOrder(o)
				return nil
			}
		}
		return fmt.Errorf("order %s: %w", orderNumber, ErrNotFound)
	})
	return order, err
}

// Create adds a new order and assigns ids to its items.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.store.update(ctx, func(d *memoryData) error {
		for _, o := range d.orders {
			if o.OrderNumber == order.OrderNumber {
				return fmt.Errorf("order %s: %w", order.OrderNumber, ErrDuplicate)
			}
		}
		d.nextOrderID++
		order.ID = d.nextOrderID
		for i := range order.Items {
			d.nextOrderItemID++
			order.Items[i].ID = d.nextOrderItemID
			order.Items[i].OrderID = order.ID
		}
		order.CreatedAt = time.Now()
		order.UpdatedAt = order.CreatedAt
		stored := *copyOrder(*order)
		stored.Warnings = nil
		d.orders[order.ID] = stored
		return nil
	})
}

// UpdateStatus updates the status of an order.
func (r *MockOrderRepository) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	return r.store.update(ctx, func(d *memoryData) error {
		order, ok := d.orders[id]
		if !ok {
			return fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
		}
		order.Status = status
		order.UpdatedAt = time.Now()
		d.orders[id] = order
		return nil
	})
}

func (r *MockOrderRepository) Delete(ctx context.Context, id uint) error {
	return r.store.update(ctx, func(d *memoryData) error {
		if _, ok := d.orders[id]; !ok {
			return fmt.Errorf("order with ID %d: %w", id, ErrNotFound)
		}
		delete(d.orders, id)
		return nil
	})
}
