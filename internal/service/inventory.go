package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/logger"
	"ticketbay/internal/metrics"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

// UnderflowPolicy decides what a decrement does when fewer tickets remain than requested
type UnderflowPolicy string

const (
	UnderflowReject UnderflowPolicy = "reject"
	UnderflowClamp  UnderflowPolicy = "clamp"
)

func (p UnderflowPolicy) Valid() bool {
	return p == UnderflowReject || p == UnderflowClamp
}

// Availability is a point-in-time read of one batch
type Availability struct {
	Batch        *models.Batch
	Available    bool
	AvailableQty int
	RequestedQty int
}

// InventoryLedger owns the remaining quantity of every batch.
// Quantity only goes down through Decrement, on the payment-success path.
type InventoryLedger struct {
	batches repository.BatchRepository
	policy  UnderflowPolicy
}

func NewInventoryLedger(batches repository.BatchRepository, policy UnderflowPolicy) *InventoryLedger {
	if !policy.Valid() {
		policy = UnderflowReject
	}
	return &InventoryLedger{batches: batches, policy: policy}
}

func (l *InventoryLedger) Policy() UnderflowPolicy {
	return l.policy
}

// Bind returns a ledger that reads and writes through batches, typically a transaction's repository.
func (l *InventoryLedger) Bind(batches repository.BatchRepository) *InventoryLedger {
	return &InventoryLedger{batches: batches, policy: l.policy}
}

// CheckAvailability never writes. A missing batch is reported as unavailable with a nil Batch.
func (l *InventoryLedger) CheckAvailability(ctx context.Context, batchID string, requestedQty int) (*Availability, error) {
	batch, err := l.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, apperrors.Persistence("read batch availability", err)
	}
	if batch == nil {
		return &Availability{RequestedQty: requestedQty}, nil
	}

	return &Availability{
		Batch:        batch,
		Available:    requestedQty > 0 && batch.Quantity >= requestedQty,
		AvailableQty: batch.Quantity,
		RequestedQty: requestedQty,
	}, nil
}

// Decrement takes qty tickets out of the batch. Under the reject policy it returns
// ErrInsufficientInventory instead of going below what remains.
func (l *InventoryLedger) Decrement(ctx context.Context, batchID string, qty int) error {
	if qty <= 0 {
		return apperrors.Validation(fmt.Sprintf("decrement quantity for batch %s must be positive", batchID))
	}

	if l.policy == UnderflowClamp {
		before, after, err := l.batches.DecrementClamped(ctx, batchID, qty)
		if err != nil {
			return apperrors.Persistence("decrement batch quantity", err)
		}
		if before < qty {
			metrics.InventoryConflict(string(l.policy))
			logger.WithContext(ctx).Warn("Batch oversold, quantity clamped at zero",
				"batch_id", batchID, "requested", qty, "remaining_before", before, "remaining_after", after)
		}
		return nil
	}

	if _, err := l.batches.Decrement(ctx, batchID, qty); err != nil {
		if errors.Is(err, apperrors.ErrInsufficientInventory) {
			metrics.InventoryConflict(string(l.policy))
			return fmt.Errorf("batch %s: %w", batchID, err)
		}
		return apperrors.Persistence("decrement batch quantity", err)
	}
	return nil
}
