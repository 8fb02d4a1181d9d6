package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/logger"
	"ticketbay/internal/messaging"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// EventSearcher is the public catalog index
type EventSearcher interface {
	Search(ctx context.Context, query string, page, pageSize int) ([]models.Event, error)
}

type EventService struct {
	store     repository.Store
	searcher  EventSearcher
	publisher messaging.Publisher
	now       func() time.Time
}

// NewEventService accepts a nil searcher; listings then come from the database.
func NewEventService(store repository.Store, searcher EventSearcher, publisher messaging.Publisher) *EventService {
	return &EventService{
		store:     store,
		searcher:  searcher,
		publisher: publisher,
		now:       time.Now,
	}
}

func validateEventFields(title string, startsAt, endsAt time.Time, maxCapacity int, status models.EventStatus) []string {
	var violations []string
	if strings.TrimSpace(title) == "" {
		violations = append(violations, "title is required")
	}
	if startsAt.IsZero() {
		violations = append(violations, "start date is required")
	}
	if !endsAt.After(startsAt) {
		violations = append(violations, "event must end after it starts")
	}
	if maxCapacity < 0 {
		violations = append(violations, "max capacity cannot be negative")
	}
	if status != "" && (!status.Valid() || status == models.EventStatusArchived) {
		violations = append(violations, fmt.Sprintf("status %q cannot be set directly", status))
	}
	return violations
}

func (s *EventService) Create(ctx context.Context, producer *models.Identity, req *models.CreateEventRequest) (*models.Event, error) {
	if producer == nil || producer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to create events")
	}
	if violations := validateEventFields(req.Title, req.StartsAt, req.EndsAt, req.MaxCapacity, req.Status); len(violations) > 0 {
		return nil, apperrors.Validation("invalid event", violations...)
	}

	now := s.now()
	status := req.Status
	if status == "" {
		status = models.EventStatusDraft
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		ProducerID:  producer.UserID,
		Title:       strings.TrimSpace(req.Title),
		URL:         eventURL(req.URL, req.Title),
		Description: req.Description,
		Location:    req.Location,
		Address:     req.Address,
		ImageURL:    req.ImageURL,
		MaxCapacity: req.MaxCapacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if event.URL == "" {
		event.URL = "event-" + event.ID[:8]
	}
	if !models.ValidURL(event.URL) {
		return nil, apperrors.Validation("invalid event", invalidURLViolation(event.URL))
	}

	plan, err := models.PlanBatchReconciliation(event.ID, nil, req.Batches, now)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Users.Upsert(ctx, identityUser(producer, now)); err != nil {
			return apperrors.Persistence("sync producer", err)
		}
		if err := ensureURLFree(ctx, repos, event.URL, event.ID); err != nil {
			return err
		}
		if err := repos.Events.Create(ctx, event); err != nil {
			return eventWriteError("create event", event.URL, err)
		}
		for i := range plan.Create {
			if err := repos.Batches.Create(ctx, &plan.Create[i]); err != nil {
				return apperrors.Persistence("create batch", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event.Batches = plan.Create
	s.changed(ctx, models.SubjectEventCreated, event, producer.UserID)
	logger.WithContext(ctx).Info("Event created", "event_id", event.ID, "batches", len(event.Batches))

	return event, nil
}

// Get returns a published event to anyone and any event to its producer.
// ref is the event id or its public URL.
func (s *EventService) Get(ctx context.Context, viewer *models.Identity, ref string) (*models.Event, error) {
	repos := s.store.Repositories()
	event, err := findEvent(ctx, repos, ref)
	if err != nil {
		return nil, apperrors.Persistence("load event", err)
	}
	if event == nil || (event.Status != models.EventStatusPublished && (viewer == nil || viewer.UserID != event.ProducerID)) {
		return nil, apperrors.NotFound(apperrors.ErrEventNotFound, ref)
	}

	batches, err := repos.Batches.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, apperrors.Persistence("list batches", err)
	}
	event.Batches = batches
	return event, nil
}

func (s *EventService) Update(ctx context.Context, producer *models.Identity, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	if violations := validateEventFields(req.Title, req.StartsAt, req.EndsAt, req.MaxCapacity, req.Status); len(violations) > 0 {
		return nil, apperrors.Validation("invalid event", violations...)
	}

	var updated *models.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		event, err := ownedEvent(ctx, repos, producer, id)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusArchived {
			return apperrors.InvalidState("archived events must be reactivated before editing")
		}

		if url := strings.TrimSpace(req.URL); url != "" && url != event.URL {
			if !models.ValidURL(url) {
				return apperrors.Validation("invalid event", invalidURLViolation(url))
			}
			if err := ensureURLFree(ctx, repos, url, event.ID); err != nil {
				return err
			}
			event.URL = url
		}

		now := s.now()
		event.Title = strings.TrimSpace(req.Title)
		event.Description = req.Description
		event.Location = req.Location
		event.Address = req.Address
		event.ImageURL = req.ImageURL
		event.MaxCapacity = req.MaxCapacity
		event.StartsAt = req.StartsAt
		event.EndsAt = req.EndsAt
		if req.Status != "" {
			event.Status = req.Status
		}
		event.UpdatedAt = now

		if err := repos.Events.Update(ctx, event); err != nil {
			return eventWriteError("update event", event.URL, err)
		}

		var batches []models.Batch
		if req.Batches != nil {
			batches, err = s.reconcile(ctx, repos, event.ID, req.Batches, now)
		} else {
			batches, err = repos.Batches.ListByEvent(ctx, event.ID)
		}
		if err != nil {
			return err
		}

		event.Batches = batches
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, models.SubjectEventUpdated, updated, producer.UserID)
	return updated, nil
}

// UpdateBatches replaces the event's batch set with the edited definitions
func (s *EventService) UpdateBatches(ctx context.Context, producer *models.Identity, id string, inputs []models.BatchInput) ([]models.Batch, error) {
	var event *models.Event
	var batches []models.Batch
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		event, err = ownedEvent(ctx, repos, producer, id)
		if err != nil {
			return err
		}
		if event.Status == models.EventStatusArchived {
			return apperrors.InvalidState("archived events must be reactivated before editing")
		}
		batches, err = s.reconcile(ctx, repos, event.ID, inputs, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	event.Batches = batches
	s.changed(ctx, models.SubjectEventUpdated, event, producer.UserID)
	return batches, nil
}

// reconcile applies a batch plan. A removed batch that already appears on an
// order is deactivated rather than deleted.
func (s *EventService) reconcile(ctx context.Context, repos *repository.Repositories, eventID string, inputs []models.BatchInput, now time.Time) ([]models.Batch, error) {
	existing, err := repos.Batches.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Persistence("list batches", err)
	}

	plan, err := models.PlanBatchReconciliation(eventID, existing, inputs, now)
	if err != nil {
		return nil, err
	}

	for _, batch := range plan.Remove {
		referenced, err := repos.Batches.HasOrderItems(ctx, batch.ID)
		if err != nil {
			return nil, apperrors.Persistence("check batch orders", err)
		}
		if !referenced {
			if err := repos.Batches.Delete(ctx, batch.ID); err != nil {
				return nil, apperrors.Persistence("delete batch", err)
			}
			continue
		}
		if batch.IsActive {
			batch.IsActive = false
			batch.UpdatedAt = now
			if err := repos.Batches.Update(ctx, &batch); err != nil {
				return nil, err
			}
		}
	}

	for i := range plan.Update {
		if err := repos.Batches.Update(ctx, &plan.Update[i]); err != nil {
			return nil, err
		}
	}
	for i := range plan.Create {
		if err := repos.Batches.Create(ctx, &plan.Create[i]); err != nil {
			return nil, apperrors.Persistence("create batch", err)
		}
	}

	batches, err := repos.Batches.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Persistence("list batches", err)
	}
	return batches, nil
}

// ListPublished prefers the search index and falls back to the database when it is missing or failing.
func (s *EventService) ListPublished(ctx context.Context, query string, page, pageSize int) ([]models.Event, error) {
	page, pageSize = normalizePage(page, pageSize)

	if s.searcher != nil {
		events, err := s.searcher.Search(ctx, query, page, pageSize)
		if err == nil {
			return events, nil
		}
		logger.WithContext(ctx).Warn("Catalog search failed, falling back to database", "error", err)
	}

	events, err := s.store.Repositories().Events.List(ctx, repository.EventFilter{
		Status:       models.EventStatusPublished,
		Search:       strings.TrimSpace(query),
		UpcomingOnly: true,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return nil, apperrors.Persistence("list events", err)
	}
	return events, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ListForProducer returns the producer's events with their sales. Stats are
// best-effort: a failing aggregate shows zeros instead of failing the list.
func (s *EventService) ListForProducer(ctx context.Context, producer *models.Identity, includeArchived bool) ([]models.EventWithStats, error) {
	if producer == nil || producer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to manage events")
	}

	repos := s.store.Repositories()
	events, err := repos.Events.List(ctx, repository.EventFilter{ProducerID: producer.UserID, IncludeArchived: includeArchived})
	if err != nil {
		return nil, apperrors.Persistence("list producer events", err)
	}

	result := make([]models.EventWithStats, 0, len(events))
	for _, event := range events {
		item := models.EventWithStats{Event: event}
		stats, err := repos.Events.Stats(ctx, event.ID)
		if err != nil {
			logger.WithContext(ctx).Warn("Failed to load event stats", "error", err, "event_id", event.ID)
			item.Stats = models.EventStats{EventID: event.ID}
		} else {
			item.Stats = *stats
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *EventService) Stats(ctx context.Context, producer *models.Identity, id string) (*models.EventStats, error) {
	repos := s.store.Repositories()
	event, err := ownedEvent(ctx, repos, producer, id)
	if err != nil {
		return nil, err
	}
	stats, err := repos.Events.Stats(ctx, event.ID)
	if err != nil {
		return nil, apperrors.Persistence("event stats", err)
	}
	return stats, nil
}

// Participants lists every ticket sold for the event with its buyer and order
func (s *EventService) Participants(ctx context.Context, producer *models.Identity, id string) ([]models.Participant, error) {
	repos := s.store.Repositories()
	event, err := ownedEvent(ctx, repos, producer, id)
	if err != nil {
		return nil, err
	}
	participants, err := repos.Tickets.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, apperrors.Persistence("list participants", err)
	}
	return participants, nil
}

// Dashboard aggregates every event of the producer, with "this month" in UTC.
func (s *EventService) Dashboard(ctx context.Context, producer *models.Identity) (*models.ProducerStats, error) {
	if producer == nil || producer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to manage events")
	}
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, err := s.store.Repositories().Events.ProducerStats(ctx, producer.UserID, monthStart)
	if err != nil {
		return nil, apperrors.Persistence("producer stats", err)
	}
	return stats, nil
}

// Reactivate publishes an archived event again
func (s *EventService) Reactivate(ctx context.Context, producer *models.Identity, id string) (*models.Event, error) {
	var event *models.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		event, err = ownedEvent(ctx, repos, producer, id)
		if err != nil {
			return err
		}
		if event.Status != models.EventStatusArchived {
			return apperrors.InvalidState(fmt.Sprintf("event is %s, only archived events can be reactivated", event.Status))
		}

		now := s.now()
		if err := repos.Events.Reactivate(ctx, event.ID, now); err != nil {
			return apperrors.Persistence("reactivate event", err)
		}
		event.Status = models.EventStatusPublished
		event.ArchivedAt = nil
		event.ArchivedBy = nil
		event.UpdatedAt = now

		event.Batches, err = repos.Batches.ListByEvent(ctx, event.ID)
		if err != nil {
			return apperrors.Persistence("list batches", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, models.SubjectEventUpdated, event, producer.UserID)
	return event, nil
}

func (s *EventService) changed(ctx context.Context, subject string, event *models.Event, actorID string) {
	publish(ctx, s.publisher, subject, models.EventChangedEvent{
		EventID:   event.ID,
		Status:    event.Status,
		ActorID:   actorID,
		Timestamp: s.now(),
	})
}

func ownedEvent(ctx context.Context, repos *repository.Repositories, producer *models.Identity, id string) (*models.Event, error) {
	if producer == nil || producer.UserID == "" {
		return nil, apperrors.AuthRequired("sign in to manage events")
	}
	event, err := findEvent(ctx, repos, id)
	if err != nil {
		return nil, apperrors.Persistence("load event", err)
	}
	if event == nil {
		return nil, apperrors.NotFound(apperrors.ErrEventNotFound, id)
	}
	if event.ProducerID != producer.UserID {
		return nil, apperrors.Forbidden("only the event producer can manage it")
	}
	return event, nil
}

// findEvent resolves an event id first and falls back to the public URL
func findEvent(ctx context.Context, repos *repository.Repositories, ref string) (*models.Event, error) {
	event, err := repos.Events.GetByID(ctx, ref)
	if err != nil || event != nil {
		return event, err
	}
	return repos.Events.GetByURL(ctx, ref)
}

func eventURL(requested, title string) string {
	if url := strings.TrimSpace(requested); url != "" {
		return url
	}
	return models.SlugFromTitle(title)
}

func invalidURLViolation(url string) string {
	return fmt.Sprintf("url %q must be lowercase letters, digits and single hyphens", url)
}

func ensureURLFree(ctx context.Context, repos *repository.Repositories, url, eventID string) error {
	other, err := repos.Events.GetByURL(ctx, url)
	if err != nil {
		return apperrors.Persistence("check event url", err)
	}
	if other != nil && other.ID != eventID {
		return apperrors.Validation("invalid event", urlTakenViolation(url))
	}
	return nil
}

func urlTakenViolation(url string) string {
	return fmt.Sprintf("url %q is already in use", url)
}

func eventWriteError(op, url string, err error) error {
	if errors.Is(err, repository.ErrDuplicateURL) {
		return apperrors.Validation("invalid event", urlTakenViolation(url))
	}
	return apperrors.Persistence(op, err)
}
