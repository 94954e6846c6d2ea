package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	amqp "github.com/streadway/amqp"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOrderDeleted       EventType = "order.deleted"
)

// OrderEvent is the JSON payload published for every order lifecycle change.
type OrderEvent struct {
	Type           EventType       `json:"type"`
	OrderID        uint            `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CustomerEmail  string          `json:"customer_email"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Publishing encodes the event as a persistent AMQP message.
func (e OrderEvent) Publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal order event to JSON: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(e.Type),
		MessageId:    fmt.Sprintf("%s:%d:%s", e.Type, e.OrderID, e.Status),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    eventTimestamp(e),
	}, nil
}

// DecodeOrderEvent parses a message body produced by Publishing.
func DecodeOrderEvent(body []byte) (OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OrderEvent{}, fmt.Errorf("failed to decode order event: %w", err)
	}
	if event.Type == "" {
		return OrderEvent{}, fmt.Errorf("order event without type")
	}
	return event, nil
}
