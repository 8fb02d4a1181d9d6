package repository

import (
	"context"
	"errors"
	"database/sql"
	"time"

	"ticketbay/internal/database"
	"ticketbay/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type EventFilter struct {
	ProducerID      string
	Status          models.EventStatus
	Search          string
	UpcomingOnly    bool
	IncludeArchived bool
	Page            int
	PageSize        int
}

// ErrDuplicateURL is returned when another event already uses the URL
var ErrDuplicateURL = errors.New("event url already in use")

// GetByID methods across repositories return (nil, nil) when the row does not exist.

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetByURL(ctx context.Context, url string) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id, archivedBy string, at time.Time) error
	Reactivate(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter EventFilter) ([]models.Event, error)
	HasSales(ctx context.Context, eventID string) (bool, error)
	Stats(ctx context.Context, eventID string) (*models.EventStats, error)
	ProducerStats(ctx context.Context, producerID string, monthStart time.Time) (*models.ProducerStats, error)
}

type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Batch, error)
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) error
	HasOrderItems(ctx context.Context, id string) (bool, error)
	// Decrement lowers quantity only when at least qty remain and returns the new quantity.
	// It returns errors.ErrInsufficientInventory otherwise.
	Decrement(ctx context.Context, id string, qty int) (int, error)
	// DecrementClamped lowers quantity never below zero and returns the quantity before and after.
	DecrementClamped(ctx context.Context, id string, qty int) (before int, after int, err error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetForUpdate loads the order and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	// ListByEvent returns every ticket issued for the event with its order and batch.
	ListByEvent(ctx context.Context, eventID string) ([]models.Participant, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

type Repositories struct {
	Events   EventRepository
	Batches  BatchRepository
	Orders   OrderRepository
	Tickets  TicketRepository
	Payments PaymentRepository
	Users    UserRepository
}

var (
	_ EventRepository   = (*pgEventRepository)(nil)
	_ BatchRepository   = (*pgBatchRepository)(nil)
	_ OrderRepository   = (*pgOrderRepository)(nil)
	_ TicketRepository  = (*pgTicketRepository)(nil)
	_ PaymentRepository = (*pgPaymentRepository)(nil)
	_ UserRepository    = (*pgUserRepository)(nil)
)

// Store hands out repositories and runs units of work atomically
type Store interface {
	Repositories() *Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Events:   NewEventRepository(db),
		Batches:  NewBatchRepository(db),
		Orders:   NewOrderRepository(db),
		Tickets:  NewTicketRepository(db),
		Payments: NewPaymentRepository(db),
		Users:    NewUserRepository(db),
	}
}

type PostgresStore struct {
	db    *database.DB
	repos *Repositories
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, repos: NewRepositories(db)}
}

func (s *PostgresStore) Repositories() *Repositories {
	return s.repos
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}
