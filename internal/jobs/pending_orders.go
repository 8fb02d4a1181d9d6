package jobs

import (
	"context"
	"log/slog"
	"time"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/metrics"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

const sweepBatchSize = 100

// OrderExpirer cancels a pending order on behalf of the system
type OrderExpirer interface {
	ExpireOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// PendingOrderSweeper cancels orders left pending longer than the TTL.
// Pending orders never hold inventory, so this only tidies buyer history.
type PendingOrderSweeper struct {
	orders   repository.OrderRepository
	expirer  OrderExpirer
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewPendingOrderSweeper(orders repository.OrderRepository, expirer OrderExpirer, ttl, interval time.Duration) *PendingOrderSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PendingOrderSweeper{
		orders:   orders,
		expirer:  expirer,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (j *PendingOrderSweeper) Run(ctx context.Context) error {
	slog.Info("Starting pending order sweeper", "check_interval", j.interval.String(), "ttl", j.ttl.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-ctx.Done():
			slog.Info("Pending order sweeper stopped")
			return nil
		}
	}
}

func (j *PendingOrderSweeper) sweep(ctx context.Context) {
	expired, err := j.SweepOnce(ctx)
	if err != nil {
		slog.Error("Failed to sweep pending orders", "error", err)
		return
	}
	if expired > 0 {
		slog.Info("Expired stale pending orders", "count", expired)
	}
}

// SweepOnce expires every order pending since before now-TTL and reports how many it cancelled
func (j *PendingOrderSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.ttl)
	expired := 0

	for {
		stale, err := j.orders.ListStalePending(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return expired, err
		}
		if len(stale) == 0 {
			break
		}

		progressed := false
		for _, order := range stale {
			if _, err := j.expirer.ExpireOrder(ctx, order.ID); err != nil {
				// paid or cancelled between the listing and the lock
				if apperrors.IsInvalidStateError(err) || apperrors.IsNotFoundError(err) {
					slog.Debug("Skipped order during sweep", "order_id", order.ID, "reason", err.Error())
					continue
				}
				slog.Error("Failed to expire order", "error", err, "order_id", order.ID, "created_at", order.CreatedAt)
				continue
			}
			expired++
			progressed = true
		}

		if !progressed || len(stale) < sweepBatchSize {
			break
		}
	}

	metrics.OrdersSwept(expired)
	return expired, nil
}
