package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/validation"
	"onlinestore/pkg/rabbitmq"
)

// OrderEventPublisher receives order lifecycle events after their transaction commits.
type OrderEventPublisher interface {
	PublishOrderEvent(event rabbitmq.OrderEvent) error
}

// CreateOrderInput is everything checkout needs besides the cart contents.
type CreateOrderInput struct {
	CartID          uint                   `validate:"required"`
	Customer        models.CustomerInfo
	ShippingAddress models.ShippingAddress
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store     repositories.Store
	publisher OrderEventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are emitted.
func NewOrderService(store repositories.Store, publisher OrderEventPublisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		store:     store,
		publisher: publisher,
		validate:  validation.New(),
		logger:    logger.Named("order"),
		now:       time.Now,
	}
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXXXXXX with 12 random hex digits.
func NewOrderNumber(at time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102"), strings.ToUpper(random[:12]))
}

// CreateOrder turns the cart into a PENDING order. Stock is checked for every
// line, decremented, and the cart emptied, all in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, &ValidationError{Message: "invalid order request", Fields: validation.Messages(err)}
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		cart, err := tx.Carts().GetByIDForUpdate(ctx, input.CartID)
		if err != nil {
			return lookupErr(err, "cart", input.CartID)
		}
		if cart.IsEmpty() {
			return &EmptyCartError{CartID: cart.ID}
		}

		// Lock products in id order so concurrent checkouts cannot deadlock.
		lines := append([]models.CartItem(nil), cart.Items...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		products := make(map[uint]*models.Product, len(lines))
		var shortages []StockShortage
		for _, line := range lines {
			product, err := tx.Products().GetByIDForUpdate(ctx, line.ProductID)
			if err != nil {
				return lookupErr(err, "product", line.ProductID)
			}
			products[product.ID] = product
			if !product.InStock(line.Quantity) {
				shortages = append(shortages, StockShortage{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Available:   product.StockQuantity,
				})
			}
		}
		if len(shortages) > 0 {
			return &InsufficientStockError{Shortages: shortages}
		}

		order = &models.Order{
			OrderNumber:     NewOrderNumber(s.now()),
			Status:          models.OrderStatusPending,
			Customer:        input.Customer,
			ShippingAddress: input.ShippingAddress,
		}
		for _, line := range cart.Items {
			product := products[line.ProductID]
			price := line.UnitPrice
			if price.IsZero() {
				price = product.Price
			}
			order.Items = append(order.Items, models.NewOrderItem(product.ID, product.Name, price, line.Quantity))
		}
		order.CalculateTotalAmount()

		if err := tx.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return &ConflictError{Message: fmt.Sprintf("order number %s already exists", order.OrderNumber)}
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, line := range lines {
			err := tx.Products().DecrementStock(ctx, line.ProductID, line.Quantity)
			if errors.Is(err, repositories.ErrInsufficientStock) {
				return insufficientStock(products[line.ProductID], line.Quantity)
			}
			if err != nil {
				return lookupErr(err, "product", line.ProductID)
			}
		}

		if err := tx.Carts().ClearItems(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart after checkout: %w", err)
		}
		cart.Clear()
		return saveTotals(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Uint("cart_id", input.CartID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	s.publish(rabbitmq.EventOrderCreated, order, "")
	return order, nil
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	return order, nil
}

// GetOrderByNumber retrieves a single order by its order number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.store.Orders().GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, lookupErr(err, "order", orderNumber)
	}
	return order, nil
}

// ListOrders retrieves a page of all orders.
func (s *OrderService) ListOrders(ctx context.Context, page repositories.PageRequest) (*repositories.Page[models.Order], error) {
	return s.store.Orders().List(ctx, repositories.OrderFilter{}, page)
}

func (s *OrderService) ListOrdersByStatus(ctx context.Context, status models.OrderStatus, page repositories.PageRequest) (*repositories.Page[models.Order], error) {
	return s.store.Orders().List(ctx, repositories.OrderFilter{Status: status}, page)
}

func (s *OrderService) ListOrdersByCustomerEmail(ctx context.Context, email string, page repositories.PageRequest) (*repositories.Page[models.Order], error) {
	if strings.TrimSpace(email) == "" {
		return nil, validationf("customer email is required")
	}
	return s.store.Orders().List(ctx, repositories.OrderFilter{CustomerEmail: email}, page)
}

// UpdateStatus moves the order along its lifecycle. Cancelling goes through
// CancelOrder so reserved stock is returned.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if status == models.OrderStatusCancelled {
		return s.CancelOrder(ctx, id)
	}

	var order *models.Order
	var previous models.OrderStatus
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "order", id)
		}
		previous = order.Status
		if !previous.CanTransitionTo(status) {
			return &InvalidTransitionError{From: previous, To: status}
		}
		if err := tx.Orders().UpdateStatus(ctx, id, status); err != nil {
			return lookupErr(err, "order", id)
		}
		order.Status = status
		order.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.publish(rabbitmq.EventOrderStatusChanged, order, previous)
	return order, nil
}

// CancelOrder cancels a PENDING or CONFIRMED order and returns its quantities
// to stock. Lines whose product was deleted are skipped and reported in Warnings.
func (s *OrderService) CancelOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order *models.Order
	var previous models.OrderStatus
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "order", id)
		}
		previous = order.Status
		if !previous.Cancellable() {
			return &InvalidTransitionError{From: previous, To: models.OrderStatusCancelled}
		}

		items := append([]models.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		order.Warnings = nil
		for _, item := range items {
			err := tx.Products().IncrementStock(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, repositories.ErrNotFound) {
				order.Warnings = append(order.Warnings, fmt.Sprintf(
					"product %d (%s) no longer exists; %d units not restocked",
					item.ProductID, item.ProductName, item.Quantity))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to restock product %d: %w", item.ProductID, err)
			}
		}

		if err := tx.Orders().UpdateStatus(ctx, id, models.OrderStatusCancelled); err != nil {
			return lookupErr(err, "order", id)
		}
		order.Status = models.OrderStatusCancelled
		order.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, w := range order.Warnings {
		s.logger.Warn("restock skipped", zap.String("order_number", order.OrderNumber), zap.String("reason", w))
	}
	s.logger.Info("order cancelled", zap.String("order_number", order.OrderNumber), zap.String("from", string(previous)))
	s.publish(rabbitmq.EventOrderCancelled, order, previous)
	return order, nil
}

// DeleteOrder removes the order and its items. Stock is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	var order *models.Order
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err, "order", id)
		}
		return lookupErr(tx.Orders().Delete(ctx, id), "order", id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", zap.String("order_number", order.OrderNumber))
	s.publish(rabbitmq.EventOrderDeleted, order, "")
	return nil
}

// publish is best effort; the transaction has already committed.
func (s *OrderService) publish(eventType rabbitmq.EventType, order *models.Order, previous models.OrderStatus) {
	if s.publisher == nil {
		return
	}
	event := rabbitmq.OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalAmount:    order.TotalAmount,
		CustomerEmail:  order.Customer.Email,
		OccurredAt:     s.now(),
	}
	if err := s.publisher.PublishOrderEvent(event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", string(eventType)),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}
