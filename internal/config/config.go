package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ticketbay/internal/cache"
	"ticketbay/internal/database"
	"ticketbay/internal/external"
	"ticketbay/internal/messaging"
	"ticketbay/internal/models"
	"ticketbay/internal/service"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	CORSOrigin     string

	// Хранилище: postgres или memory
	StoreDriver string

	JWTSecret string
	JWTIssuer string

	Database      database.Config
	NATS          messaging.Config
	Redis         cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.PaymentConfig
	Checkout      service.CheckoutConfig

	IntentTTL       time.Duration
	PendingOrderTTL time.Duration
	SweepInterval   time.Duration
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "ticketbay"),
			Password:           getEnv("DB_PASSWORD", "ticketbay"),
			DBName:             getEnv("DB_NAME", "ticketbay"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", false),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "ticketbay"),
			ClientID:  getEnv("NATS_CLIENT_ID", "ticketbay-api"),
		},

		Redis: cache.Config{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Payment: external.PaymentConfig{
			Provider:       getEnv("PAYMENT_PROVIDER", external.ProviderSimulated),
			BaseURL:        getEnv("PAYMENT_GATEWAY_URL", ""),
			TeamSlug:       getEnv("PAYMENT_TEAM_SLUG", ""),
			Password:       getEnv("PAYMENT_PASSWORD", ""),
			Currency:       getEnv("PAYMENT_CURRENCY", "BRL"),
			Timeout:        getEnvDuration("PAYMENT_TIMEOUT", 30*time.Second),
			DeclineMethods: getEnvList("PAYMENT_SIMULATED_DECLINE_METHODS"),
		},

		Checkout: service.CheckoutConfig{
			ServiceFee:         decimal.NewNullDecimal(getEnvDecimal("CHECKOUT_SERVICE_FEE", models.DefaultServiceFee)),
			MaxTicketsPerBatch: getEnvInt("CHECKOUT_MAX_TICKETS_PER_BATCH", models.MaxTicketsPerBatch),
			UnderflowPolicy:    service.UnderflowPolicy(getEnv("CHECKOUT_UNDERFLOW_POLICY", string(service.UnderflowReject))),
			Currency:           getEnv("PAYMENT_CURRENCY", "BRL"),
		},

		IntentTTL:       getEnvDuration("CHECKOUT_INTENT_TTL", 30*time.Minute),
		PendingOrderTTL: getEnvDuration("PENDING_ORDER_TTL", 0),
		SweepInterval:   getEnvDuration("PENDING_ORDER_SWEEP_INTERVAL", time.Minute),
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration принимает формат time.ParseDuration ("30s", "15m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
