package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// ParseOrderStatus converts a case-insensitive status name into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether no transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may be cancelled directly.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CustomerInfo is copied into the order at checkout.
type CustomerInfo struct {
	Name  string `json:"name" gorm:"size:255;not null" validate:"required,max=255"`
	Email string `json:"email" gorm:"size:255;not null;index" validate:"required,email,max=255"`
	Phone string `json:"phone" gorm:"size:50" validate:"omitempty,max=50"`
}

// ShippingAddress is copied into the order at checkout.
type ShippingAddress struct {
	Street     string `json:"street" gorm:"size:255" validate:"required,max=255"`
	City       string `json:"city" gorm:"size:100" validate:"required,max=100"`
	State      string `json:"state" gorm:"size:100" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code" gorm:"size:20" validate:"required,max=20"`
	Country    string `json:"country" gorm:"size:100" validate:"required,max=100"`
}

// OrderItem is an immutable snapshot of a purchased line.
// ProductID is a soft reference; the item never reads the live product again.
type OrderItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderID     uint            `json:"order_id" gorm:"not null;index"`
	ProductID   uint            `json:"product_id" gorm:"not null"`
	ProductName string          `json:"product_name" gorm:"size:255;not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:numeric(12,2);not null"`
}

// Order represents a placed customer order.
type Order struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	OrderNumber     string          `json:"order_number" gorm:"size:64;uniqueIndex;not null"`
	Status          OrderStatus     `json:"status" gorm:"size:20;not null;index"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Customer        CustomerInfo    `json:"customer_info" gorm:"embedded;embeddedPrefix:customer_"`
	ShippingAddress ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Warnings        []string        `json:"warnings,omitempty" gorm:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewOrderItem snapshots a line and computes its total once.
func NewOrderItem(productID uint, productName string, unitPrice decimal.Decimal, quantity int) OrderItem {
	return OrderItem{
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// CalculateTotalAmount sums the stored item totals.
func (o *Order) CalculateTotalAmount() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice)
	}
	o.TotalAmount = total
}
