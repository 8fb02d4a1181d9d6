package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusArchived  EventStatus = "archived"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusArchived:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusSold      TicketStatus = "sold"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// User is the local projection of an identity-provider account
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the authenticated caller as supplied by the identity provider
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Event represents an event in the system
type Event struct {
	ID          string      `json:"id" db:"id"`
	ProducerID  string      `json:"producer_id" db:"producer_id"`
	Title       string      `json:"title" db:"title"`
	URL         string      `json:"url" db:"url"`
	Description string      `json:"description" db:"description"`
	Location    string      `json:"location" db:"location"`
	Address     string      `json:"address" db:"address"`
	ImageURL    string      `json:"image_url" db:"image_url"`
	MaxCapacity int         `json:"max_capacity" db:"max_capacity"`
	StartsAt    time.Time   `json:"starts_at" db:"starts_at"`
	EndsAt      time.Time   `json:"ends_at" db:"ends_at"`
	Status      EventStatus `json:"status" db:"status"`
	ArchivedAt  *time.Time  `json:"archived_at,omitempty" db:"archived_at"`
	ArchivedBy  *string     `json:"archived_by,omitempty" db:"archived_by"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
	Batches     []Batch     `json:"batches,omitempty"` // Not from DB, filled separately
}

// Batch is a priced ticket tier of an event. Quantity is what is left to sell.
type Batch struct {
	ID           string          `json:"id" db:"id"`
	EventID      string          `json:"event_id" db:"event_id"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Capacity     int             `json:"capacity" db:"capacity"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	SaleStartsAt *time.Time      `json:"sale_starts_at,omitempty" db:"sale_starts_at"`
	SaleEndsAt   *time.Time      `json:"sale_ends_at,omitempty" db:"sale_ends_at"`
	Version      int64           `json:"version" db:"version"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// OnSale reports whether the batch accepts orders at now
func (b Batch) OnSale(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.SaleStartsAt != nil && now.Before(*b.SaleStartsAt) {
		return false
	}
	if b.SaleEndsAt != nil && !now.Before(*b.SaleEndsAt) {
		return false
	}
	return true
}

// Sold is the number of tickets already taken from the batch
func (b Batch) Sold() int {
	if b.Capacity < b.Quantity {
		return 0
	}
	return b.Capacity - b.Quantity
}

// BuyerContact is the contact snapshot stored on an order
type BuyerContact struct {
	Name  string `json:"name" db:"buyer_name"`
	Email string `json:"email" db:"buyer_email"`
	Phone string `json:"phone" db:"buyer_phone"`
}

// Order represents a buyer's purchase across one or more batches of an event
type Order struct {
	ID          string          `json:"id" db:"id"`
	BuyerID     string          `json:"buyer_id" db:"buyer_id"`
	EventID     string          `json:"event_id" db:"event_id"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	ServiceFee  decimal.Decimal `json:"service_fee" db:"service_fee"`
	Total       decimal.Decimal `json:"total" db:"total"`
	Status      OrderStatus     `json:"status" db:"status"`
	Buyer       BuyerContact    `json:"buyer"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	Items       []OrderItem     `json:"items,omitempty"` // Not from DB, filled separately
}

type OrderItem struct {
	ID        string          `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	BatchID   string          `json:"batch_id" db:"batch_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Ticket is one admission issued for a paid order
type Ticket struct {
	ID           string       `json:"id" db:"id"`
	BatchID      string       `json:"batch_id" db:"batch_id"`
	OrderID      *string      `json:"order_id,omitempty" db:"order_id"`
	TicketNumber string       `json:"ticket_number" db:"ticket_number"`
	Status       TicketStatus `json:"status" db:"status"`
	HolderName   string       `json:"holder_name" db:"holder_name"`
	HolderEmail  string       `json:"holder_email" db:"holder_email"`
	QRCode       *string      `json:"qr_code,omitempty" db:"qr_code"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Payment is an append-only audit record of a capture
type Payment struct {
	ID                string          `json:"id" db:"id"`
	OrderID           string          `json:"order_id" db:"order_id"`
	Provider          string          `json:"provider" db:"provider"`
	ProviderPaymentID string          `json:"provider_payment_id" db:"provider_payment_id"`
	Status            PaymentStatus   `json:"status" db:"status"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// EventStats aggregates sales of one event
type EventStats struct {
	EventID      string          `json:"event_id"`
	TicketsSold  int             `json:"tickets_sold"`
	Participants int             `json:"participants"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// ProducerStats is the producer dashboard summary. Revenue excludes service fees.
type ProducerStats struct {
	ProducerID       string          `json:"producer_id"`
	TotalEvents      int             `json:"total_events"`
	EventsThisMonth  int             `json:"events_this_month"`
	TotalSales       int             `json:"total_sales"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	RevenueThisMonth decimal.Decimal `json:"revenue_this_month"`
}

// CheckoutIntent is a cart stashed by an anonymous buyer until sign-in
type CheckoutIntent struct {
	Token      string         `json:"token"`
	EventID    string         `json:"event_id"`
	Quantities map[string]int `json:"quantities"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}
