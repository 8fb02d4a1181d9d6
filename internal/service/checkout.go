package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/external"
	"ticketbay/internal/logger"
	"ticketbay/internal/messaging"
	"ticketbay/internal/metrics"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

// CheckoutConfig tunes the orchestrator. An unset ServiceFee means the standard fee;
// set it to a valid zero to waive the fee.
type CheckoutConfig struct {
	ServiceFee         decimal.NullDecimal
	MaxTicketsPerBatch int
	UnderflowPolicy    UnderflowPolicy
	Currency           string
}

func (c CheckoutConfig) withDefaults() CheckoutConfig {
	if !c.ServiceFee.Valid || c.ServiceFee.Decimal.IsNegative() {
		c.ServiceFee = decimal.NewNullDecimal(models.DefaultServiceFee)
	}
	if c.MaxTicketsPerBatch <= 0 {
		c.MaxTicketsPerBatch = models.MaxTicketsPerBatch
	}
	if !c.UnderflowPolicy.Valid() {
		c.UnderflowPolicy = UnderflowReject
	}
	return c
}

// CheckoutOutcome is a paid order with its tickets
type CheckoutOutcome struct {
	Order   *models.Order
	Tickets []models.Ticket
}

// Checkout sequences order creation, payment capture, ticket issuance and guarded event removal.
type Checkout struct {
	store     repository.Store
	ledger    *InventoryLedger
	issuer    *TicketIssuer
	gateway   external.PaymentGateway
	publisher messaging.Publisher
	cfg       CheckoutConfig
	now       func() time.Time
}

func NewCheckout(store repository.Store, ledger *InventoryLedger, issuer *TicketIssuer, gateway external.PaymentGateway, publisher messaging.Publisher, cfg CheckoutConfig) *Checkout {
	return &Checkout{
		store:     store,
		ledger:    ledger,
		issuer:    issuer,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// CreateOrder validates the selection against a fresh read of the batches and stores
// a pending order at current prices. Inventory is not touched.
func (c *Checkout) CreateOrder(ctx context.Context, buyer *models.Identity, eventID string, quantities map[string]int) (*models.Order, error) {
	defer metrics.ObserveDuration("create_order", time.Now())

	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to buy tickets")
	}

	batchIDs, err := selectedBatches(quantities)
	if err != nil {
		return nil, err
	}

	repos := c.store.Repositories()
	event, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, apperrors.Persistence("load event", err)
	}
	if event == nil {
		return nil, apperrors.NotFound(apperrors.ErrEventNotFound, eventID)
	}

	now := c.now()
	if event.Status != models.EventStatusPublished {
		return nil, apperrors.EventUnavailable(fmt.Sprintf("event %q is not on sale", event.Title))
	}
	if !event.StartsAt.After(now) {
		return nil, apperrors.EventUnavailable(fmt.Sprintf("event %q has already started", event.Title))
	}

	var violations []string
	lines := make([]models.OrderLine, 0, len(batchIDs))
	for _, batchID := range batchIDs {
		qty := quantities[batchID]
		availability, err := c.ledger.CheckAvailability(ctx, batchID, qty)
		if err != nil {
			return nil, err
		}

		batch := availability.Batch
		if batch == nil || batch.EventID != event.ID {
			violations = append(violations, fmt.Sprintf("batch %s not found", batchID))
			continue
		}
		if !batch.OnSale(now) {
			violations = append(violations, fmt.Sprintf("%s: not on sale", batch.Title))
			continue
		}

		ok := true
		if qty > c.cfg.MaxTicketsPerBatch {
			violations = append(violations, fmt.Sprintf("%s: maximum of %d tickets per batch", batch.Title, c.cfg.MaxTicketsPerBatch))
			ok = false
		}
		if !availability.Available {
			violations = append(violations, fmt.Sprintf("%s: insufficient quantity (available: %d, requested: %d)", batch.Title, availability.AvailableQty, qty))
			ok = false
		}
		if !batch.Price.IsPositive() {
			violations = append(violations, fmt.Sprintf("%s: invalid price", batch.Title))
			ok = false
		}
		if ok {
			lines = append(lines, models.OrderLine{BatchID: batch.ID, Quantity: qty, UnitPrice: batch.Price})
		}
	}
	if len(violations) > 0 {
		return nil, apperrors.Availability(violations)
	}

	contact := models.BuyerContact{Name: buyer.Name, Email: buyer.Email}
	order, err := models.NewOrder(buyer.UserID, event.ID, lines, contact, c.cfg.ServiceFee.Decimal, now)
	if err != nil {
		return nil, err
	}

	err = c.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Users.Upsert(ctx, identityUser(buyer, now)); err != nil {
			return apperrors.Persistence("sync buyer", err)
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return apperrors.Persistence("create order", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderCreated()
	publish(ctx, c.publisher, models.SubjectOrderCreated, models.NewOrderEvent(order, "", now))
	logger.WithContext(ctx).Info("Order created",
		"order_id", order.ID, "event_id", event.ID, "tickets", order.TicketCount(), "total", order.Total.StringFixed(2))

	return order, nil
}

// selectedBatches returns the batches with a positive quantity in a stable order.
func selectedBatches(quantities map[string]int) ([]string, error) {
	var violations []string
	var ids []string
	for batchID, qty := range quantities {
		switch {
		case qty < 0:
			violations = append(violations, fmt.Sprintf("quantity for batch %s cannot be negative", batchID))
		case qty > 0:
			ids = append(ids, batchID)
		}
	}
	sort.Strings(ids)
	sort.Strings(violations)

	if len(violations) > 0 {
		return nil, apperrors.Validation("invalid ticket quantities", violations...)
	}
	if len(ids) == 0 {
		return nil, apperrors.Validation("select at least one ticket")
	}
	return ids, nil
}

// ProcessCheckout captures the payment for a pending order and, in one transaction,
// marks it paid, records the payment and issues the tickets. A capture whose
// follow-up transaction fails is refunded.
func (c *Checkout) ProcessCheckout(ctx context.Context, buyer *models.Identity, orderID, paymentMethod string, contact models.BuyerContact) (*CheckoutOutcome, error) {
	defer metrics.ObserveDuration("process_checkout", time.Now())

	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to pay for an order")
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, apperrors.Validation("payment method is required")
	}
	if err := contact.Validate(); err != nil {
		return nil, err
	}

	order, err := c.store.Repositories().Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Persistence("load order", err)
	}
	if order == nil || order.BuyerID != buyer.UserID {
		return nil, apperrors.OrderNotFound(orderID)
	}
	if order.Status != models.OrderStatusPending {
		metrics.CheckoutOutcome("invalid_state")
		return nil, apperrors.InvalidState(fmt.Sprintf("order %s is already %s", order.ID, order.Status))
	}

	if c.ledger.Policy() == UnderflowReject {
		violations, err := c.shortages(ctx, order)
		if err != nil {
			return nil, err
		}
		if len(violations) > 0 {
			metrics.CheckoutOutcome("sold_out")
			if err := c.failOrder(ctx, order.ID, "sold out before payment", nil); err != nil {
				logger.WithContext(ctx).Error("Failed to mark sold out order as failed", "error", err, "order_id", order.ID)
			}
			return nil, apperrors.Availability(violations)
		}
	}

	order.Recompute()
	capture, err := c.gateway.Capture(ctx, external.CaptureRequest{
		OrderID:     order.ID,
		Method:      paymentMethod,
		Amount:      order.Total,
		Currency:    c.cfg.Currency,
		Email:       contact.Email,
		Description: fmt.Sprintf("Order %s (%d tickets)", order.ID, order.TicketCount()),
	})
	if err != nil {
		metrics.CheckoutOutcome("payment_failed")
		logger.WithContext(ctx).Warn("Payment capture failed", "error", err, "order_id", order.ID, "method", paymentMethod)
		return nil, apperrors.PaymentFailed("payment was not approved", err)
	}

	var paid *models.Order
	var tickets []models.Ticket
	err = c.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		locked, err := repos.Orders.GetForUpdate(ctx, order.ID)
		if err != nil {
			return apperrors.Persistence("lock order", err)
		}
		if locked == nil {
			return apperrors.OrderNotFound(order.ID)
		}

		now := c.now()
		if err := locked.MarkPaid(&contact, now); err != nil {
			return err
		}
		if err := repos.Orders.Update(ctx, locked); err != nil {
			return apperrors.Persistence("mark order paid", err)
		}

		payment := &models.Payment{
			ID:                uuid.NewString(),
			OrderID:           locked.ID,
			Provider:          capture.Provider,
			ProviderPaymentID: capture.ProviderPaymentID,
			Status:            models.PaymentStatusCompleted,
			Amount:            locked.Total,
			CreatedAt:         now,
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return apperrors.Persistence("record payment", err)
		}

		issued, err := c.issuer.issue(ctx, repos, locked)
		if err != nil {
			return err
		}

		paid, tickets = locked, issued
		return nil
	})
	if err != nil {
		return nil, c.compensate(ctx, order, capture, err)
	}

	metrics.CheckoutOutcome("paid")
	now := c.now()
	publish(ctx, c.publisher, models.SubjectOrderPaid, models.NewOrderEvent(paid, "", now))
	publish(ctx, c.publisher, models.SubjectTicketsIssued, ticketsIssuedEvent(paid.ID, tickets, now))
	logger.WithContext(ctx).Info("Order paid",
		"order_id", paid.ID, "tickets", len(tickets), "total", paid.Total.StringFixed(2), "provider_payment_id", capture.ProviderPaymentID)

	return &CheckoutOutcome{Order: paid, Tickets: tickets}, nil
}

// shortages re-reads every batch of the order. It is advisory: the decrement is the real guard.
func (c *Checkout) shortages(ctx context.Context, order *models.Order) ([]string, error) {
	var violations []string
	for _, item := range order.Items {
		availability, err := c.ledger.CheckAvailability(ctx, item.BatchID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !availability.Available {
			title := item.BatchID
			if availability.Batch != nil {
				title = availability.Batch.Title
			}
			violations = append(violations, fmt.Sprintf("%s: insufficient quantity (available: %d, requested: %d)", title, availability.AvailableQty, item.Quantity))
		}
	}
	return violations, nil
}

// compensate refunds a capture whose paid-path transaction rolled back.
func (c *Checkout) compensate(ctx context.Context, order *models.Order, capture *external.CaptureResult, cause error) error {
	log := logger.WithContext(ctx).With("order_id", order.ID, "provider_payment_id", capture.ProviderPaymentID)
	log.Error("Checkout transaction failed after capture, refunding", "error", cause)

	refunded := capture
	if err := c.gateway.Refund(ctx, *capture, "checkout could not be completed"); err != nil {
		refunded = nil
		log.Error("Refund failed, payment needs manual reconciliation", "error", err)
	}

	switch {
	case errors.Is(cause, apperrors.ErrInsufficientInventory):
		metrics.CheckoutOutcome("sold_out")
		if err := c.failOrder(ctx, order.ID, "sold out during payment", refunded); err != nil {
			log.Error("Failed to mark order as failed", "error", err)
		}
		return apperrors.Availability([]string{"tickets sold out while the payment was processed; the payment was refunded"})
	case apperrors.IsInvalidStateError(cause):
		metrics.CheckoutOutcome("invalid_state")
		return cause
	}

	metrics.CheckoutOutcome("error")
	var appErr *apperrors.Error
	if !errors.As(cause, &appErr) {
		return apperrors.Persistence("complete checkout", cause)
	}
	return cause
}

// failOrder moves a still-pending order to failed and, when a refund went through, appends it to the audit trail.
func (c *Checkout) failOrder(ctx context.Context, orderID, reason string, refunded *external.CaptureResult) error {
	var failed *models.Order
	err := c.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return apperrors.Persistence("lock order", err)
		}
		if order == nil {
			return apperrors.OrderNotFound(orderID)
		}

		now := c.now()
		if err := order.MarkFailed(now); err != nil {
			return err
		}
		if err := repos.Orders.Update(ctx, order); err != nil {
			return apperrors.Persistence("mark order failed", err)
		}

		if refunded != nil {
			payment := &models.Payment{
				ID:                uuid.NewString(),
				OrderID:           order.ID,
				Provider:          refunded.Provider,
				ProviderPaymentID: refunded.ProviderPaymentID,
				Status:            models.PaymentStatusRefunded,
				Amount:            refunded.Amount,
				CreatedAt:         now,
			}
			if err := repos.Payments.Create(ctx, payment); err != nil {
				return apperrors.Persistence("record refund", err)
			}
		}

		failed = order
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, c.publisher, models.SubjectOrderFailed, models.NewOrderEvent(failed, reason, c.now()))
	return nil
}

// CancelOrder lets the buyer abandon a pending order
func (c *Checkout) CancelOrder(ctx context.Context, buyer *models.Identity, orderID string) (*models.Order, error) {
	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to cancel an order")
	}
	return c.cancel(ctx, buyer.UserID, orderID, "cancelled by buyer")
}

// ExpireOrder cancels a pending order on behalf of the system
func (c *Checkout) ExpireOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return c.cancel(ctx, "", orderID, "expired")
}

func (c *Checkout) cancel(ctx context.Context, buyerID, orderID, reason string) (*models.Order, error) {
	var cancelled *models.Order
	err := c.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return apperrors.Persistence("lock order", err)
		}
		if order == nil || (buyerID != "" && order.BuyerID != buyerID) {
			return apperrors.OrderNotFound(orderID)
		}
		if err := order.Cancel(c.now()); err != nil {
			return err
		}
		if err := repos.Orders.Update(ctx, order); err != nil {
			return apperrors.Persistence("cancel order", err)
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, c.publisher, models.SubjectOrderCancelled, models.NewOrderEvent(cancelled, reason, c.now()))
	return cancelled, nil
}

// DeleteEvent removes an event without sales and archives one with sales, so paid history survives.
func (c *Checkout) DeleteEvent(ctx context.Context, producer *models.Identity, eventID string) (*models.DeleteEventResult, error) {
	if producer == nil || producer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to manage events")
	}

	var result *models.DeleteEventResult
	err := c.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		event, err := repos.Events.GetByID(ctx, eventID)
		if err != nil {
			return apperrors.Persistence("load event", err)
		}
		if event == nil {
			return apperrors.NotFound(apperrors.ErrEventNotFound, eventID)
		}
		if event.ProducerID != producer.UserID {
			return apperrors.Forbidden("only the event producer can delete it")
		}

		hasSales, err := repos.Events.HasSales(ctx, eventID)
		if err != nil {
			return apperrors.Persistence("check event sales", err)
		}

		if !hasSales {
			if err := repos.Events.Delete(ctx, eventID); err != nil {
				return apperrors.Persistence("delete event", err)
			}
			result = &models.DeleteEventResult{Success: true, Action: models.DeleteActionDeleted, Message: "event deleted"}
			return nil
		}

		if event.Status != models.EventStatusArchived {
			if err := repos.Events.Archive(ctx, eventID, producer.UserID, c.now()); err != nil {
				return apperrors.Persistence("archive event", err)
			}
		}
		result = &models.DeleteEventResult{
			Success:  true,
			Action:   models.DeleteActionArchived,
			Message:  "event has sales and was archived instead of deleted",
			HasSales: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EventRemoved(result.Action)
	subject := models.SubjectEventDeleted
	status := models.EventStatus("")
	if result.Action == models.DeleteActionArchived {
		subject, status = models.SubjectEventArchived, models.EventStatusArchived
	}
	publish(ctx, c.publisher, subject, models.EventChangedEvent{EventID: eventID, Status: status, ActorID: producer.UserID, Timestamp: c.now()})
	logger.WithContext(ctx).Info("Event removed", "event_id", eventID, "action", result.Action)

	return result, nil
}

func ticketsIssuedEvent(orderID string, tickets []models.Ticket, at time.Time) models.TicketsIssuedEvent {
	numbers := make([]string, len(tickets))
	for i, t := range tickets {
		numbers[i] = t.TicketNumber
	}
	return models.TicketsIssuedEvent{OrderID: orderID, TicketNumbers: numbers, Timestamp: at}
}

func identityUser(identity *models.Identity, now time.Time) *models.User {
	return &models.User{
		ID:        identity.UserID,
		Email:     identity.Email,
		FullName:  identity.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// publish is best-effort: a bus failure never fails the operation that produced the event.
func publish(ctx context.Context, publisher messaging.Publisher, subject string, payload any) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event", "error", err, "subject", subject)
	}
}

// NewCheckoutResult folds an orchestrator outcome into the uniform result shape.
// Persistence details never leave the process.
func NewCheckoutResult(outcome *CheckoutOutcome, err error) models.CheckoutResult {
	if err != nil {
		kind := apperrors.KindOf(err)
		message := err.Error()
		if kind == apperrors.KindPersistence {
			message = "internal error, please try again"
		}
		return models.CheckoutResult{
			Error:      message,
			ErrorKind:  string(kind),
			Violations: apperrors.ViolationsOf(err),
		}
	}
	if outcome == nil {
		return models.CheckoutResult{Success: true}
	}
	return models.CheckoutResult{Success: true, Order: outcome.Order, Tickets: outcome.Tickets}
}
