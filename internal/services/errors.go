package services

import (
	"fmt"
	"strings"

	"onlinestore/internal/models"
)

// NotFoundError reports a missing cart, cart item, order or product.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func notFound(resource string, key interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: fmt.Sprint(key)}
}

// ValidationError reports bad input such as an out-of-range quantity or a missing required field.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StockShortage describes one line that cannot be served from current stock.
type StockShortage struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func (s StockShortage) String() string {
	return fmt.Sprintf("Insufficient stock for product '%s'. Requested: %d, Available: %d",
		s.ProductName, s.Requested, s.Available)
}

// InsufficientStockError lists every line whose requested quantity exceeds stock.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}

func insufficientStock(product *models.Product, requested int) *InsufficientStockError {
	return &InsufficientStockError{Shortages: []StockShortage{{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   requested,
		Available:   product.StockQuantity,
	}}}
}

// EmptyCartError is returned when checking out a cart without lines.
type EmptyCartError struct {
	CartID uint
}

func (e *EmptyCartError) Error() string {
	return fmt.Sprintf("cannot create order from empty cart %d", e.CartID)
}

// InvalidTransitionError is returned for a status change the order lifecycle forbids.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("order status %s is terminal; cannot change to %s", e.From, e.To)
	}
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ConflictError reports a uniqueness violation such as a reused session id or SKU.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
