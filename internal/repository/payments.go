package repository

import (
	"context"

	"ticketbay/internal/models"
)

type pgPaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *pgPaymentRepository {
	return &pgPaymentRepository{db: db}
}

func (r *pgPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, provider, provider_payment_id, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.OrderID, payment.Provider, payment.ProviderPaymentID,
		payment.Status, payment.Amount, payment.CreatedAt)
	return err
}

func (r *pgPaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error) {
	query := `
		SELECT id, order_id, provider, provider_payment_id, status, amount, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderPaymentID, &p.Status, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}
