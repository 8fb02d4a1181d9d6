package service

import (
	"context"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

// OrderService serves the buyer's view of their orders
type OrderService struct {
	store repository.Store
}

func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{store: store}
}

func (s *OrderService) ListMine(ctx context.Context, buyer *models.Identity) ([]models.Order, error) {
	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to see your orders")
	}
	orders, err := s.store.Repositories().Orders.ListByBuyer(ctx, buyer.UserID)
	if err != nil {
		return nil, apperrors.Persistence("list orders", err)
	}
	return orders, nil
}

// Get returns the order with its tickets and payment history. Orders of other buyers are reported as missing.
func (s *OrderService) Get(ctx context.Context, buyer *models.Identity, orderID string) (*models.OrderDetails, error) {
	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to see your orders")
	}

	repos := s.store.Repositories()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Persistence("load order", err)
	}
	if order == nil || order.BuyerID != buyer.UserID {
		return nil, apperrors.OrderNotFound(orderID)
	}

	tickets, err := repos.Tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.Persistence("list tickets", err)
	}
	payments, err := repos.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.Persistence("list payments", err)
	}

	return &models.OrderDetails{Order: order, Tickets: tickets, Payments: payments}, nil
}
