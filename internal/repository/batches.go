package repository

import (
	"context"
	"database/sql"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/models"
)

const batchColumns = `id, event_id, title, description, price, quantity, capacity, is_active,
	sale_starts_at, sale_ends_at, version, created_at, updated_at`

type pgBatchRepository struct {
	db DBTX
}

func NewBatchRepository(db DBTX) *pgBatchRepository {
	return &pgBatchRepository{db: db}
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	batch := &models.Batch{}
	var saleStartsAt, saleEndsAt sql.NullTime
	err := row.Scan(
		&batch.ID,
		&batch.EventID,
		&batch.Title,
		&batch.Description,
		&batch.Price,
		&batch.Quantity,
		&batch.Capacity,
		&batch.IsActive,
		&saleStartsAt,
		&saleEndsAt,
		&batch.Version,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if saleStartsAt.Valid {
		batch.SaleStartsAt = &saleStartsAt.Time
	}
	if saleEndsAt.Valid {
		batch.SaleEndsAt = &saleEndsAt.Time
	}
	return batch, nil
}

func (r *pgBatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (id, event_id, title, description, price, quantity, capacity, is_active,
			sale_starts_at, sale_ends_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.EventID, batch.Title, batch.Description, batch.Price, batch.Quantity,
		batch.Capacity, batch.IsActive, batch.SaleStartsAt, batch.SaleEndsAt, batch.CreatedAt, batch.UpdatedAt)
	return err
}

func (r *pgBatchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`

	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return batch, err
}

func (r *pgBatchRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE event_id = $1 ORDER BY price ASC, title ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}

	return batches, rows.Err()
}

// Update writes the producer-editable definition. The version check rejects edits
// racing with a sale that changed the quantity in between.
func (r *pgBatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	query := `
		UPDATE batches
		SET title = $3, description = $4, price = $5, quantity = $6, capacity = $7, is_active = $8,
			sale_starts_at = $9, sale_ends_at = $10, updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`

	err := r.db.QueryRowContext(ctx, query,
		batch.ID, batch.Version, batch.Title, batch.Description, batch.Price, batch.Quantity, batch.Capacity,
		batch.IsActive, batch.SaleStartsAt, batch.SaleEndsAt, batch.UpdatedAt).Scan(&batch.Version)
	if err == sql.ErrNoRows {
		return apperrors.InvalidState("batch " + batch.ID + " was changed concurrently, reload and retry")
	}
	return err
}

func (r *pgBatchRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id)
	return err
}

func (r *pgBatchRepository) HasOrderItems(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE batch_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *pgBatchRepository) Decrement(ctx context.Context, id string, qty int) (int, error) {
	query := `
		UPDATE batches
		SET quantity = quantity - $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`

	var remaining int
	err := r.db.QueryRowContext(ctx, query, id, qty).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, apperrors.ErrInsufficientInventory
	}
	return remaining, err
}

func (r *pgBatchRepository) DecrementClamped(ctx context.Context, id string, qty int) (int, int, error) {
	query := `
		UPDATE batches b
		SET quantity = GREATEST(0, b.quantity - $2), version = b.version + 1, updated_at = NOW()
		FROM (SELECT id, quantity FROM batches WHERE id = $1 FOR UPDATE) prev
		WHERE b.id = prev.id
		RETURNING prev.quantity, b.quantity`

	var before, after int
	err := r.db.QueryRowContext(ctx, query, id, qty).Scan(&before, &after)
	if err == sql.ErrNoRows {
		return 0, 0, apperrors.ErrBatchNotFound
	}
	return before, after, err
}
