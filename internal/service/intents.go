package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/logger"
	"ticketbay/internal/models"
)

const DefaultIntentTTL = 30 * time.Minute

// IntentStore keeps anonymous selections until the buyer signs in
type IntentStore interface {
	Save(ctx context.Context, intent *models.CheckoutIntent, ttl time.Duration) error
	Load(ctx context.Context, token string) (*models.CheckoutIntent, error)
	Delete(ctx context.Context, token string) error
}

// IntentService lets a buyer pick tickets before authenticating and resume afterwards
type IntentService struct {
	intents  IntentStore
	checkout *Checkout
	ttl      time.Duration
	now      func() time.Time
}

func NewIntentService(intents IntentStore, checkout *Checkout, ttl time.Duration) *IntentService {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &IntentService{intents: intents, checkout: checkout, ttl: ttl, now: time.Now}
}

// Stash records the selection without validating stock; Resume re-validates everything.
func (s *IntentService) Stash(ctx context.Context, eventID string, quantities map[string]int) (*models.CheckoutIntent, error) {
	if eventID == "" {
		return nil, apperrors.Validation("event is required")
	}
	if _, err := selectedBatches(quantities); err != nil {
		return nil, err
	}

	now := s.now()
	intent := &models.CheckoutIntent{
		Token:      uuid.NewString(),
		EventID:    eventID,
		Quantities: quantities,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.intents.Save(ctx, intent, s.ttl); err != nil {
		return nil, apperrors.Persistence("stash checkout intent", err)
	}
	return intent, nil
}

// Resume turns a stashed selection into an order for the now authenticated buyer.
// The token is consumed only when the order is created.
func (s *IntentService) Resume(ctx context.Context, buyer *models.Identity, token string) (*models.Order, error) {
	if buyer == nil || buyer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to resume checkout")
	}

	intent, err := s.intents.Load(ctx, token)
	if err != nil {
		return nil, apperrors.Persistence("load checkout intent", err)
	}
	if intent == nil {
		return nil, apperrors.NotFound(apperrors.ErrIntentNotFound, token)
	}

	order, err := s.checkout.CreateOrder(ctx, buyer, intent.EventID, intent.Quantities)
	if err != nil {
		return nil, err
	}

	if err := s.intents.Delete(ctx, token); err != nil {
		logger.WithContext(ctx).Warn("Failed to delete consumed checkout intent", "error", err, "token", token)
	}
	return order, nil
}
