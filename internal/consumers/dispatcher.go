package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"ticketbay/internal/models"
)

// Dispatcher delivers catalog-relevant messages to the handlers in process.
// The API uses it when the bus is disabled so the search index still follows event changes.
type Dispatcher struct {
	handlers *Handlers
}

func NewDispatcher(handlers *Handlers) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

func (d *Dispatcher) Publish(subject string, data any) error {
	if !slices.Contains(models.EventLifecycleSubjects, subject) {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	return d.handlers.HandleEventChanged(ctx, subject, payload)
}
