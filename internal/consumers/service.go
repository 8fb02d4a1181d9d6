package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"ticketbay/internal/config"
	"ticketbay/internal/database"
	"ticketbay/internal/messaging"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
	"ticketbay/internal/search"
)

const (
	catalogQueue = "catalog-indexer"
	auditQueue   = "order-audit"
)

var orderSubjects = []string{
	models.SubjectOrderCreated,
	models.SubjectOrderPaid,
	models.SubjectOrderCancelled,
	models.SubjectOrderFailed,
}

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	handlers *Handlers
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	catalog, err := search.NewElasticsearchClient(ctx, cfg.Elasticsearch)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		handlers: NewHandlers(repository.NewRepositories(db), catalog),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for _, subject := range models.EventLifecycleSubjects {
		if _, err := cs.nats.SubscribeQueue(subject, catalogQueue, msgHandler(subject, cs.handlers.HandleEventChanged)); err != nil {
			return err
		}
	}

	for _, subject := range orderSubjects {
		if _, err := cs.nats.SubscribeQueue(subject, auditQueue, msgHandler(subject, cs.handlers.HandleOrderEvent)); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
