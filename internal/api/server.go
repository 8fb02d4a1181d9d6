package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ticketbay/internal/cache"
	"ticketbay/internal/config"
	"ticketbay/internal/consumers"
	"ticketbay/internal/database"
	"ticketbay/internal/external"
	"ticketbay/internal/handlers"
	"ticketbay/internal/jobs"
	"ticketbay/internal/messaging"
	"ticketbay/internal/middleware"
	"ticketbay/internal/repository"
	"ticketbay/internal/search"
	"ticketbay/internal/service"
)

const serviceName = "ticketbay-api"

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	redis    *redis.Client
	catalog  *search.ElasticsearchClient
	store    repository.Store
	services *service.Services
}

// NewServer создает сервер и поднимает все зависимости из конфигурации.
// Postgres и NATS обязательны, если включены; каталог и Redis деградируют с предупреждением.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	gin.SetMode(cfg.GinMode)

	s := &Server{config: cfg}

	// Хранилище
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("Using in-memory store, data will not survive restart")
		s.store = repository.NewMemoryStore()
	case "postgres", "":
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		s.db = db
		s.store = repository.NewPostgresStore(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	gateway, err := external.NewPaymentGateway(cfg.Payment)
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	// Шина событий
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			s.Cleanup()
			return nil, err
		}
		s.nats = natsClient
		publisher = natsClient
	}

	// Каталог событий
	var searcher service.EventSearcher
	if cfg.Elasticsearch.Enabled {
		catalog, err := search.NewElasticsearchClient(ctx, cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Catalog unavailable, listing falls back to database", "error", err)
		} else {
			s.catalog = catalog
			searcher = catalog
			// Без NATS индексируем синхронно в процессе API
			if s.nats == nil {
				publisher = consumers.NewDispatcher(consumers.NewHandlers(s.store.Repositories(), catalog))
			}
		}
	}

	// Намерения покупки
	var intents service.IntentStore
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, checkout intents disabled", "error", err)
		} else {
			s.redis = client
			intents = cache.NewIntentStore(client)
		}
	}

	s.services = service.NewServices(service.Dependencies{
		Store:     s.store,
		Gateway:   gateway,
		Publisher: publisher,
		Searcher:  searcher,
		Intents:   intents,
	}, cfg.Checkout, cfg.IntentTTL)

	verifier := middleware.NewIdentityVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigin))
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	handlers.NewHandlers(s.services).Register(router, verifier)

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
	return s, nil
}

// healthCheck проверяет базу данных и каталог
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	body := gin.H{
		"status":  "ok",
		"service": serviceName,
		"store":   s.config.StoreDriver,
	}

	if s.db != nil {
		health := s.db.HealthCheck(ctx)
		body["database"] = health
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}

	if s.catalog != nil {
		if err := s.catalog.HealthCheck(ctx); err != nil {
			body["catalog"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			body["catalog"] = gin.H{"status": "healthy"}
		}
	}

	body["intents"] = s.redis != nil

	c.JSON(status, body)
}

// Handler возвращает роутер (в том числе для тестов)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sweeper возвращает фоновую задачу отмены зависших заказов или nil, если она выключена
func (s *Server) Sweeper() *jobs.PendingOrderSweeper {
	if s.config.PendingOrderTTL <= 0 {
		return nil
	}
	return jobs.NewPendingOrderSweeper(
		s.store.Repositories().Orders,
		s.services.Checkout,
		s.config.PendingOrderTTL,
		s.config.SweepInterval,
	)
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	var errs []error

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			errs = append(errs, err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
			errs = append(errs, err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
