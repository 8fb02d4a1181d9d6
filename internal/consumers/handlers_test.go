package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

type fakeCatalog struct {
	indexed map[string]models.Event
	deleted []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{indexed: make(map[string]models.Event)}
}

func (f *fakeCatalog) IndexEvent(ctx context.Context, event *models.Event) error {
	f.indexed[event.ID] = *event
	return nil
}

func (f *fakeCatalog) DeleteEvent(ctx context.Context, id string) error {
	delete(f.indexed, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func seedEvent(t *testing.T, store *repository.MemoryStore, status models.EventStatus) *models.Event {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	event := &models.Event{
		ID:         "event-1",
		ProducerID: "producer-1",
		Title:      "Samba no Parque",
		StartsAt:   now.Add(72 * time.Hour),
		EndsAt:     now.Add(76 * time.Hour),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.Repositories().Events.Create(ctx, event))
	require.NoError(t, store.Repositories().Batches.Create(ctx, &models.Batch{
		ID: "batch-1", EventID: event.ID, Title: "Pista", Price: decimal.NewFromInt(80), Quantity: 10, Capacity: 10, IsActive: true,
	}))
	return event
}

func changed(t *testing.T, eventID string) []byte {
	t.Helper()
	data, err := json.Marshal(models.EventChangedEvent{EventID: eventID, Timestamp: time.Now()})
	require.NoError(t, err)
	return data
}

func TestHandleEventChangedIndexesPublishedEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvent(t, store, models.EventStatusPublished)
	catalog := newFakeCatalog()
	h := NewHandlers(store.Repositories(), catalog)

	err := h.HandleEventChanged(context.Background(), models.SubjectEventCreated, changed(t, "event-1"))
	require.NoError(t, err)

	indexed, ok := catalog.indexed["event-1"]
	require.True(t, ok)
	assert.Len(t, indexed.Batches, 1)
}

func TestHandleEventChangedRemovesUnpublishedEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvent(t, store, models.EventStatusDraft)
	catalog := newFakeCatalog()
	catalog.indexed["event-1"] = models.Event{ID: "event-1"}
	h := NewHandlers(store.Repositories(), catalog)

	require.NoError(t, h.HandleEventChanged(context.Background(), models.SubjectEventUpdated, changed(t, "event-1")))
	assert.NotContains(t, catalog.indexed, "event-1")

	require.NoError(t, h.HandleEventChanged(context.Background(), models.SubjectEventDeleted, changed(t, "gone")))
	assert.Equal(t, []string{"event-1", "gone"}, catalog.deleted)
}

func TestHandleEventChangedRejectsGarbage(t *testing.T) {
	h := NewHandlers(repository.NewMemoryStore().Repositories(), newFakeCatalog())

	err := h.HandleEventChanged(context.Background(), models.SubjectEventCreated, []byte("{"))
	assert.Error(t, err)

	err = h.HandleOrderEvent(context.Background(), models.SubjectOrderPaid, []byte("nope"))
	assert.Error(t, err)
}

func TestDispatcherRoutesOnlyEventSubjects(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvent(t, store, models.EventStatusPublished)
	catalog := newFakeCatalog()
	dispatcher := NewDispatcher(NewHandlers(store.Repositories(), catalog))

	require.NoError(t, dispatcher.Publish(models.SubjectOrderPaid, models.OrderEvent{OrderID: "o-1"}))
	assert.Empty(t, catalog.indexed)

	require.NoError(t, dispatcher.Publish(models.SubjectEventUpdated, models.EventChangedEvent{EventID: "event-1"}))
	assert.Contains(t, catalog.indexed, "event-1")

	require.NoError(t, dispatcher.Publish(models.SubjectEventArchived, models.EventChangedEvent{EventID: "event-1"}))
	assert.NotContains(t, catalog.indexed, "event-1")
}
