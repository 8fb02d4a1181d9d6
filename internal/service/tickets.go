package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/metrics"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

// NewTicketNumber returns a collision-resistant, human-readable ticket number
func NewTicketNumber() string {
	return "TKT" + strings.ToUpper(cuid.New())
}

func qrPayload(ticketNumber string) string {
	return "QR_" + ticketNumber
}

// TicketIssuer turns a paid order into tickets, decrementing inventory as it goes
type TicketIssuer struct {
	store     repository.Store
	ledger    *InventoryLedger
	newNumber func() string
	now       func() time.Time
}

func NewTicketIssuer(store repository.Store, ledger *InventoryLedger) *TicketIssuer {
	return &TicketIssuer{
		store:     store,
		ledger:    ledger,
		newNumber: NewTicketNumber,
		now:       time.Now,
	}
}

// IssueTicketsForOrder issues the order's tickets in their own transaction.
// Calling it again for the same order returns the tickets already issued.
func (i *TicketIssuer) IssueTicketsForOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := i.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return apperrors.Persistence("load order", err)
		}
		if order == nil {
			return apperrors.OrderNotFound(orderID)
		}

		tickets, err = i.issue(ctx, repos, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// issue runs inside the caller's transaction with the order row already locked.
func (i *TicketIssuer) issue(ctx context.Context, repos *repository.Repositories, order *models.Order) ([]models.Ticket, error) {
	if order.Status != models.OrderStatusPaid {
		return nil, apperrors.InvalidState(fmt.Sprintf("order %s is %s, tickets are issued only for paid orders", order.ID, order.Status))
	}

	existing, err := repos.Tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, apperrors.Persistence("list issued tickets", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	ledger := i.ledger.Bind(repos.Batches)
	now := i.now()
	tickets := make([]models.Ticket, 0, order.TicketCount())

	for _, item := range order.Items {
		if err := ledger.Decrement(ctx, item.BatchID, item.Quantity); err != nil {
			return nil, err
		}

		for n := 0; n < item.Quantity; n++ {
			number := i.newNumber()
			qr := qrPayload(number)
			orderID := order.ID
			ticket := models.Ticket{
				ID:           uuid.NewString(),
				BatchID:      item.BatchID,
				OrderID:      &orderID,
				TicketNumber: number,
				Status:       models.TicketStatusSold,
				HolderName:   order.Buyer.Name,
				HolderEmail:  order.Buyer.Email,
				QRCode:       &qr,
				CreatedAt:    now,
			}
			if err := repos.Tickets.Create(ctx, &ticket); err != nil {
				return nil, apperrors.Persistence("create ticket", err)
			}
			tickets = append(tickets, ticket)
		}
	}

	metrics.TicketsIssued(len(tickets))
	return tickets, nil
}
