package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"ticketbay/internal/models"
)

const orderColumns = `id, buyer_id, event_id, subtotal, service_fee, total, status,
	buyer_name, buyer_email, buyer_phone, created_at, updated_at, paid_at, cancelled_at`

type pgOrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *pgOrderRepository {
	return &pgOrderRepository{db: db}
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var paidAt, cancelledAt sql.NullTime
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.EventID,
		&order.Subtotal,
		&order.ServiceFee,
		&order.Total,
		&order.Status,
		&order.Buyer.Name,
		&order.Buyer.Email,
		&order.Buyer.Phone,
		&order.CreatedAt,
		&order.UpdatedAt,
		&paidAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = &cancelledAt.Time
	}
	return order, nil
}

// Create inserts the order and its items. Call it inside a transaction.
func (r *pgOrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, buyer_id, event_id, subtotal, service_fee, total, status,
			buyer_name, buyer_email, buyer_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.BuyerID, order.EventID, order.Subtotal, order.ServiceFee, order.Total, order.Status,
		order.Buyer.Name, order.Buyer.Email, order.Buyer.Phone, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, batch_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range order.Items {
		if _, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, order.ID, item.BatchID, item.Quantity, item.UnitPrice, item.CreatedAt); err != nil {
			return err
		}
	}

	return nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepository) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgOrderRepository) get(ctx context.Context, query, id string) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

func (r *pgOrderRepository) Update(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders
		SET subtotal = $2, service_fee = $3, total = $4, status = $5,
			buyer_name = $6, buyer_email = $7, buyer_phone = $8,
			updated_at = $9, paid_at = $10, cancelled_at = $11
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.Subtotal, order.ServiceFee, order.Total, order.Status,
		order.Buyer.Name, order.Buyer.Email, order.Buyer.Phone,
		order.UpdatedAt, order.PaidAt, order.CancelledAt)
	return err
}

func (r *pgOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, buyerID)
}

func (r *pgOrderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	return r.list(ctx, query, createdBefore, limit)
}

func (r *pgOrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *pgOrderRepository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	query := `
		SELECT id, order_id, batch_id, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BatchID, &item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, err
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	return items, rows.Err()
}
