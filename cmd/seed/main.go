package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketbay/internal/config"
	"ticketbay/internal/database"
	"ticketbay/internal/messaging"
	"ticketbay/internal/middleware"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
	"ticketbay/internal/service"
)

var (
	eventCount    = flag.Int("events", 5, "Number of published events to create")
	producerEmail = flag.String("producer", "producer@ticketbay.local", "Producer email")
	tokenTTL      = flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed access tokens")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var venues = []string{"Arena Norte", "Teatro Central", "Parque das Águas", "Galpão 21", "Estádio Municipal"}

type seeder struct {
	events *service.EventService
	rnd    *rand.Rand
}

func main() {
	flag.Parse()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required to issue tokens")
		os.Exit(1)
	}

	producer := models.Identity{
		UserID: uuid.NewString(),
		Email:  *producerEmail,
		Name:   "Seed Producer",
	}
	buyer := models.Identity{
		UserID: uuid.NewString(),
		Email:  "buyer@ticketbay.local",
		Name:   "Seed Buyer",
	}

	s := &seeder{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	requests := make([]*models.CreateEventRequest, 0, *eventCount)
	for i := 0; i < *eventCount; i++ {
		requests = append(requests, s.eventRequest(i))
	}

	if *dryRun {
		for _, req := range requests {
			slog.Info("Would create event", "title", req.Title, "starts_at", req.StartsAt, "batches", len(req.Batches))
		}
		return
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Индексация каталога идет через consumers, если NATS включен
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.NATS.Enabled {
		cfg.NATS.ClientID = "ticketbay-seed"
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = natsClient
	}

	s.events = service.NewEventService(repository.NewPostgresStore(db), nil, publisher)

	for _, req := range requests {
		event, err := s.events.Create(ctx, &producer, req)
		if err != nil {
			slog.Error("Failed to create event", "title", req.Title, "error", err)
			continue
		}
		slog.Info("Created event", "event_id", event.ID, "title", event.Title)
	}

	verifier := middleware.NewIdentityVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	for _, identity := range []models.Identity{producer, buyer} {
		token, err := verifier.Issue(identity, *tokenTTL)
		if err != nil {
			slog.Error("Failed to issue token", "email", identity.Email, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s\t%s\n", identity.Email, token)
	}
}

func (s *seeder) eventRequest(i int) *models.CreateEventRequest {
	startsAt := time.Now().UTC().AddDate(0, 0, 7+s.rnd.Intn(90)).Truncate(time.Hour)
	general := 100 + s.rnd.Intn(400)
	vip := 10 + s.rnd.Intn(40)

	return &models.CreateEventRequest{
		Title:       fmt.Sprintf("Seed Event #%d", i+1),
		URL:         fmt.Sprintf("seed-%d-%d", time.Now().Unix(), i+1),
		Description: "Generated by the seed command",
		Location:    venues[i%len(venues)],
		MaxCapacity: general + vip,
		StartsAt:    startsAt,
		EndsAt:      startsAt.Add(4 * time.Hour),
		Status:      models.EventStatusPublished,
		Batches: []models.BatchInput{
			{
				Title:    "General",
				Price:    decimal.NewFromInt(int64(40 + s.rnd.Intn(60))),
				Quantity: general,
			},
			{
				Title:    "VIP",
				Price:    decimal.NewFromInt(int64(150 + s.rnd.Intn(150))),
				Quantity: vip,
			},
		},
	}
}
