package repository

import (
	"context"
	"database/sql"

	"ticketbay/internal/models"
)

type pgTicketRepository struct {
	db DBTX
}

func NewTicketRepository(db DBTX) *pgTicketRepository {
	return &pgTicketRepository{db: db}
}

func (r *pgTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (id, batch_id, order_id, ticket_number, status, holder_name, holder_email, qr_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		ticket.ID, ticket.BatchID, ticket.OrderID, ticket.TicketNumber, ticket.Status,
		ticket.HolderName, ticket.HolderEmail, ticket.QRCode, ticket.CreatedAt)
	return err
}

func (r *pgTicketRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	query := `
		SELECT id, batch_id, order_id, ticket_number, status, holder_name, holder_email, qr_code, created_at
		FROM tickets
		WHERE order_id = $1
		ORDER BY created_at, ticket_number`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.BatchID,
			&ticket.OrderID,
			&ticket.TicketNumber,
			&ticket.Status,
			&ticket.HolderName,
			&ticket.HolderEmail,
			&ticket.QRCode,
			&ticket.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}

func (r *pgTicketRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Participant, error) {
	query := `
		SELECT t.id, t.ticket_number, t.status, t.holder_name, t.holder_email,
			t.batch_id, b.title, COALESCE(oi.unit_price, b.price),
			o.id, o.status, o.buyer_id, o.buyer_name, o.buyer_email, o.buyer_phone,
			o.paid_at, t.created_at
		FROM tickets t
		JOIN orders o ON o.id = t.order_id
		JOIN batches b ON b.id = t.batch_id
		LEFT JOIN order_items oi ON oi.order_id = o.id AND oi.batch_id = t.batch_id
		WHERE o.event_id = $1
		ORDER BY o.paid_at, t.ticket_number`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var paidAt sql.NullTime
		err := rows.Scan(
			&p.TicketID,
			&p.TicketNumber,
			&p.TicketStatus,
			&p.HolderName,
			&p.HolderEmail,
			&p.BatchID,
			&p.BatchTitle,
			&p.UnitPrice,
			&p.OrderID,
			&p.OrderStatus,
			&p.BuyerID,
			&p.Buyer.Name,
			&p.Buyer.Email,
			&p.Buyer.Phone,
			&paidAt,
			&p.IssuedAt,
		)
		if err != nil {
			return nil, err
		}
		if paidAt.Valid {
			p.PaidAt = &paidAt.Time
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}
