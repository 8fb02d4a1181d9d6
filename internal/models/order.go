package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "ticketbay/internal/errors"
)

// DefaultServiceFee is the flat fee added once per order
var DefaultServiceFee = decimal.NewFromInt(5)

// MaxTicketsPerBatch caps how many tickets of one batch a single order may hold
const MaxTicketsPerBatch = 10

// OrderLine is one requested batch with the price captured at order time
type OrderLine struct {
	BatchID   string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Validate checks the fields a paid order must carry
func (c BuyerContact) Validate() error {
	var violations []string
	if strings.TrimSpace(c.Name) == "" {
		violations = append(violations, "buyer name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		violations = append(violations, "buyer email is required")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		violations = append(violations, fmt.Sprintf("buyer email %q is invalid", c.Email))
	}
	if len(violations) > 0 {
		return apperrors.Validation("invalid buyer contact", violations...)
	}
	return nil
}

// NewOrder builds a pending order. Totals are always derived here, never taken from the caller.
func NewOrder(buyerID, eventID string, lines []OrderLine, contact BuyerContact, serviceFee decimal.Decimal, now time.Time) (*Order, error) {
	if buyerID == "" {
		return nil, apperrors.AuthRequired("buyer must be signed in to create an order")
	}
	if len(lines) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}
	if serviceFee.IsNegative() {
		return nil, apperrors.Validation("service fee cannot be negative")
	}

	var violations []string
	for _, line := range lines {
		if line.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("quantity for batch %s must be positive", line.BatchID))
		}
		if line.UnitPrice.IsNegative() {
			violations = append(violations, fmt.Sprintf("price for batch %s cannot be negative", line.BatchID))
		}
	}
	if len(violations) > 0 {
		return nil, apperrors.Validation("invalid order items", violations...)
	}

	order := &Order{
		ID:         uuid.NewString(),
		BuyerID:    buyerID,
		EventID:    eventID,
		ServiceFee: serviceFee,
		Status:     OrderStatusPending,
		Buyer:      contact,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, line := range lines {
		order.Items = append(order.Items, OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			BatchID:   line.BatchID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			CreatedAt: now,
		})
	}
	order.Recompute()

	return order, nil
}

// RecomputeTotal is subtotal plus the service fee
func RecomputeTotal(order Order) decimal.Decimal {
	return order.Subtotal.Add(order.ServiceFee)
}

// Recompute re-derives subtotal from the items (when loaded) and resets the total
func (o *Order) Recompute() {
	if len(o.Items) > 0 {
		subtotal := decimal.Zero
		for _, item := range o.Items {
			subtotal = subtotal.Add(item.LineTotal())
		}
		o.Subtotal = subtotal
	}
	o.Total = RecomputeTotal(*o)
}

// TicketCount is the number of tickets the order will issue
func (o *Order) TicketCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// MarkPaid moves a pending order to paid. A non-nil contact replaces the stored snapshot.
func (o *Order) MarkPaid(contact *BuyerContact, now time.Time) error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState(fmt.Sprintf("order %s is %s, only pending orders can be paid", o.ID, o.Status))
	}
	if contact != nil {
		o.Buyer = *contact
	}
	o.Status = OrderStatusPaid
	o.PaidAt = &now
	o.UpdatedAt = now
	o.Recompute()
	return nil
}

// Cancel moves a pending order to cancelled
func (o *Order) Cancel(now time.Time) error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState(fmt.Sprintf("order %s is %s, only pending orders can be cancelled", o.ID, o.Status))
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkFailed moves a pending order to failed
func (o *Order) MarkFailed(now time.Time) error {
	if o.Status != OrderStatusPending {
		return apperrors.InvalidState(fmt.Sprintf("order %s is %s, only pending orders can fail", o.ID, o.Status))
	}
	o.Status = OrderStatusFailed
	o.UpdatedAt = now
	return nil
}
