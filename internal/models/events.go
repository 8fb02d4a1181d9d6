package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NATS subjects
const (
	SubjectOrderCreated   = "order.created"
	SubjectOrderPaid      = "order.paid"
	SubjectOrderCancelled = "order.cancelled"
	SubjectOrderFailed    = "order.failed"
	SubjectTicketsIssued  = "tickets.issued"
	SubjectEventCreated   = "event.created"
	SubjectEventUpdated   = "event.updated"
	SubjectEventArchived  = "event.archived"
	SubjectEventDeleted   = "event.deleted"
)

// EventLifecycleSubjects are the subjects that change what the public catalog shows
var EventLifecycleSubjects = []string{
	SubjectEventCreated,
	SubjectEventUpdated,
	SubjectEventArchived,
	SubjectEventDeleted,
}

// OrderEvent is published on every order state change
type OrderEvent struct {
	OrderID   string          `json:"order_id"`
	EventID   string          `json:"event_id"`
	BuyerID   string          `json:"buyer_id"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TicketsIssuedEvent is published once an order's tickets exist
type TicketsIssuedEvent struct {
	OrderID       string    `json:"order_id"`
	TicketNumbers []string  `json:"ticket_numbers"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventChangedEvent is published on event create, update, archive and delete
type EventChangedEvent struct {
	EventID   string      `json:"event_id"`
	Status    EventStatus `json:"status"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOrderEvent(order *Order, reason string, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:   order.ID,
		EventID:   order.EventID,
		BuyerID:   order.BuyerID,
		Status:    order.Status,
		Total:     order.Total,
		Reason:    reason,
		Timestamp: at,
	}
}
