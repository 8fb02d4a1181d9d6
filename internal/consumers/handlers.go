package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	"ticketbay/internal/logger"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

const handlerTimeout = 20 * time.Second

// CatalogIndexer is the search index that mirrors published events
type CatalogIndexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type Handlers struct {
	repos   *repository.Repositories
	catalog CatalogIndexer
}

func NewHandlers(repos *repository.Repositories, catalog CatalogIndexer) *Handlers {
	return &Handlers{repos: repos, catalog: catalog}
}

// HandleEventChanged re-reads the event and mirrors its current state into the catalog.
// Only published events stay indexed.
func (h *Handlers) HandleEventChanged(ctx context.Context, subject string, data []byte) error {
	var change models.EventChangedEvent
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", subject, err)
	}

	if subject == models.SubjectEventDeleted || subject == models.SubjectEventArchived {
		return h.unindex(ctx, change.EventID)
	}

	event, err := h.repos.Events.GetByID(ctx, change.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event %s: %w", change.EventID, err)
	}
	if event == nil || event.Status != models.EventStatusPublished {
		return h.unindex(ctx, change.EventID)
	}

	event.Batches, err = h.repos.Batches.ListByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load batches of event %s: %w", event.ID, err)
	}

	if err := h.catalog.IndexEvent(ctx, event); err != nil {
		return err
	}
	slog.Info("Event indexed", "event_id", event.ID, "subject", subject)
	return nil
}

func (h *Handlers) unindex(ctx context.Context, eventID string) error {
	if err := h.catalog.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	slog.Info("Event removed from catalog", "event_id", eventID)
	return nil
}

// HandleOrderEvent keeps an audit trail of order transitions in the logs
func (h *Handlers) HandleOrderEvent(ctx context.Context, subject string, data []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", subject, err)
	}

	slog.Info("Order transition",
		"subject", subject,
		"order_id", event.OrderID,
		"event_id", event.EventID,
		"status", event.Status,
		"total", event.Total.StringFixed(2),
		"reason", event.Reason)
	return nil
}

// msgHandler acks only processed messages; failures are redelivered after AckWait
func msgHandler(subject string, handle func(ctx context.Context, subject string, data []byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		log := logger.WithFields("subject", subject, "sequence", m.Sequence)
		if err := handle(ctx, subject, m.Data); err != nil {
			log.Error("Failed to handle message", "error", err)
			return
		}
		if err := m.Ack(); err != nil {
			log.Error("Failed to ack message", "error", err)
		}
	}
}
