package repository

import (
	"context"
	"database/sql"

	"ticketbay/internal/models"
)

type pgUserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *pgUserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, full_name, created_at, updated_at FROM users WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return user, err
}

// Upsert keeps the local row in step with the identity provider. Empty fields never overwrite stored ones.
func (r *pgUserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), users.full_name),
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.FullName, user.UpdatedAt)
	return err
}
