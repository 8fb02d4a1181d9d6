package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DeleteActionDeleted  = "deleted"
	DeleteActionArchived = "archived"
)

// CreateEventRequest - модель для создания события
type CreateEventRequest struct {
	Title       string       `json:"title" binding:"required"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Address     string       `json:"address"`
	ImageURL    string       `json:"image_url"`
	MaxCapacity int          `json:"max_capacity"`
	StartsAt    time.Time    `json:"starts_at" binding:"required"`
	EndsAt      time.Time    `json:"ends_at" binding:"required"`
	Status      EventStatus  `json:"status,omitempty"`
	Batches     []BatchInput `json:"batches"`
}

// UpdateEventRequest - полное обновление события; batches == nil оставляет партии без изменений,
// пустой url оставляет текущий
type UpdateEventRequest struct {
	Title       string       `json:"title" binding:"required"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Address     string       `json:"address"`
	ImageURL    string       `json:"image_url"`
	MaxCapacity int          `json:"max_capacity"`
	StartsAt    time.Time    `json:"starts_at" binding:"required"`
	EndsAt      time.Time    `json:"ends_at" binding:"required"`
	Status      EventStatus  `json:"status,omitempty"`
	Batches     []BatchInput `json:"batches"`
}

// UpdateBatchesRequest - замена набора партий события
type UpdateBatchesRequest struct {
	Batches []BatchInput `json:"batches"`
}

// CreateOrderRequest - выбор количества билетов по партиям
type CreateOrderRequest struct {
	EventID    string         `json:"event_id" binding:"required"`
	Quantities map[string]int `json:"quantities" binding:"required"`
}

// CheckoutRequest - оплата заказа
type CheckoutRequest struct {
	PaymentMethod string       `json:"payment_method" binding:"required"`
	Buyer         BuyerContact `json:"buyer"`
}

// StashIntentRequest - корзина анонимного покупателя до входа в систему
type StashIntentRequest struct {
	EventID    string         `json:"event_id" binding:"required"`
	Quantities map[string]int `json:"quantities" binding:"required"`
}

// CheckoutResult is the uniform outcome returned by checkout operations
type CheckoutResult struct {
	Success    bool     `json:"success"`
	Order      *Order   `json:"order,omitempty"`
	Tickets    []Ticket `json:"tickets,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// DeleteEventResult reports whether an event was removed or archived
type DeleteEventResult struct {
	Success  bool   `json:"success"`
	Action   string `json:"action"`
	Message  string `json:"message"`
	HasSales bool   `json:"has_sales"`
}

// OrderDetails is an order with everything issued and recorded for it
type OrderDetails struct {
	Order    *Order    `json:"order"`
	Tickets  []Ticket  `json:"tickets"`
	Payments []Payment `json:"payments"`
}

// Participant - выпущенный билет события вместе с заказом и покупателем
type Participant struct {
	TicketID     string          `json:"ticket_id"`
	TicketNumber string          `json:"ticket_number"`
	TicketStatus TicketStatus    `json:"ticket_status"`
	HolderName   string          `json:"holder_name"`
	HolderEmail  string          `json:"holder_email"`
	BatchID      string          `json:"batch_id"`
	BatchTitle   string          `json:"batch_title"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OrderID      string          `json:"order_id"`
	OrderStatus  OrderStatus     `json:"order_status"`
	BuyerID      string          `json:"buyer_id"`
	Buyer        BuyerContact    `json:"buyer"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	IssuedAt     time.Time       `json:"issued_at"`
}

// EventWithStats - событие продюсера со статистикой продаж
type EventWithStats struct {
	Event
	Stats EventStats `json:"stats"`
}

// ListEventsResponse - страница списка событий
type ListEventsResponse struct {
	Events   []Event `json:"events"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// AvailabilityResponse - наличие билетов в партии
type AvailabilityResponse struct {
	BatchID      string `json:"batch_id"`
	Available    bool   `json:"available"`
	AvailableQty int    `json:"available_qty"`
	RequestedQty int    `json:"requested_qty"`
}

// StashIntentResponse - токен для возобновления покупки после входа
type StashIntentResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
