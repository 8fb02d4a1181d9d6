package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ticketbay/internal/database"
	"ticketbay/internal/models"
)

const eventColumns = `id, producer_id, title, url, description, location, address, image_url, max_capacity,
	starts_at, ends_at, status, archived_at, archived_by, created_at, updated_at`

type pgEventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) *pgEventRepository {
	return &pgEventRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	var archivedBy sql.NullString
	var archivedAt sql.NullTime
	err := row.Scan(
		&event.ID,
		&event.ProducerID,
		&event.Title,
		&event.URL,
		&event.Description,
		&event.Location,
		&event.Address,
		&event.ImageURL,
		&event.MaxCapacity,
		&event.StartsAt,
		&event.EndsAt,
		&event.Status,
		&archivedAt,
		&archivedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if archivedAt.Valid {
		event.ArchivedAt = &archivedAt.Time
	}
	if archivedBy.Valid {
		event.ArchivedBy = &archivedBy.String
	}
	return event, nil
}

func (r *pgEventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, producer_id, title, url, description, location, address, image_url,
			max_capacity, starts_at, ends_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.ProducerID, event.Title, event.URL, event.Description, event.Location, event.Address,
		event.ImageURL, event.MaxCapacity, event.StartsAt, event.EndsAt, event.Status,
		event.CreatedAt, event.UpdatedAt)
	return translateEventErr(err)
}

func (r *pgEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

func (r *pgEventRepository) GetByURL(ctx context.Context, url string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE url = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

func (r *pgEventRepository) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $2, url = $3, description = $4, location = $5, address = $6, image_url = $7,
			max_capacity = $8, starts_at = $9, ends_at = $10, status = $11, updated_at = $12
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Title, event.URL, event.Description, event.Location, event.Address, event.ImageURL,
		event.MaxCapacity, event.StartsAt, event.EndsAt, event.Status, event.UpdatedAt)
	return translateEventErr(err)
}

// url is the only unique column besides the uuid key
func translateEventErr(err error) error {
	if database.IsUniqueViolation(err) {
		return ErrDuplicateURL
	}
	return err
}

// Delete drops the event with its batches and unpaid orders. A paid order makes the
// final statement fail on the orders foreign key.
func (r *pgEventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE event_id = $1 AND status <> 'paid'`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func (r *pgEventRepository) Reactivate(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE events
		SET status = 'published', archived_at = NULL, archived_by = NULL, updated_at = $2
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func (r *pgEventRepository) Archive(ctx context.Context, id, archivedBy string, at time.Time) error {
	query := `
		UPDATE events
		SET status = 'archived', archived_at = $2, archived_by = $3, updated_at = $2
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, at, archivedBy)
	return err
}

func (r *pgEventRepository) List(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.ProducerID != "" {
		conditions = append(conditions, fmt.Sprintf("producer_id = $%d", argIndex))
		args = append(args, filter.ProducerID)
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "status <> 'archived'")
	}
	if filter.UpcomingOnly {
		conditions = append(conditions, "starts_at > NOW()")
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at ASC, id ASC"

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, filter.PageSize, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}

	return events, rows.Err()
}

// HasSales reports paid orders or any payment history for the event
func (r *pgEventRepository) HasSales(ctx context.Context, eventID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			WHERE o.event_id = $1
			  AND (o.status = 'paid' OR EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id))
		)`

	var hasSales bool
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(&hasSales)
	return hasSales, err
}

func (r *pgEventRepository) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	stats := &models.EventStats{EventID: eventID}

	ticketsQuery := `
		SELECT COUNT(*)
		FROM tickets t
		JOIN batches b ON b.id = t.batch_id
		WHERE b.event_id = $1 AND t.status IN ('sold', 'used')`
	if err := r.db.QueryRowContext(ctx, ticketsQuery, eventID).Scan(&stats.TicketsSold); err != nil {
		return nil, err
	}
	// every ticket admits one participant
	stats.Participants = stats.TicketsSold

	revenueQuery := `SELECT COALESCE(SUM(subtotal), 0) FROM orders WHERE event_id = $1 AND status = 'paid'`
	if err := r.db.QueryRowContext(ctx, revenueQuery, eventID).Scan(&stats.Revenue); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *pgEventRepository) ProducerStats(ctx context.Context, producerID string, monthStart time.Time) (*models.ProducerStats, error) {
	stats := &models.ProducerStats{ProducerID: producerID}

	eventsQuery := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE starts_at >= $2 AND starts_at < $2 + INTERVAL '1 month')
		FROM events
		WHERE producer_id = $1 AND status <> 'archived'`
	if err := r.db.QueryRowContext(ctx, eventsQuery, producerID, monthStart).Scan(&stats.TotalEvents, &stats.EventsThisMonth); err != nil {
		return nil, err
	}

	ordersQuery := `
		SELECT COUNT(*),
			COALESCE(SUM(o.subtotal), 0),
			COALESCE(SUM(o.subtotal) FILTER (WHERE o.created_at >= $2 AND o.created_at < $2 + INTERVAL '1 month'), 0)
		FROM orders o
		JOIN events e ON e.id = o.event_id
		WHERE e.producer_id = $1 AND o.status = 'paid'`
	err := r.db.QueryRowContext(ctx, ordersQuery, producerID, monthStart).Scan(&stats.TotalSales, &stats.TotalRevenue, &stats.RevenueThisMonth)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
