package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketbay/internal/models"
)

const intentKeyPrefix = "checkout:intent:"

type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// IntentStore keeps stashed carts until the buyer signs in
type IntentStore struct {
	client redis.Cmdable
}

func NewIntentStore(client redis.Cmdable) *IntentStore {
	return &IntentStore{client: client}
}

func intentKey(token string) string {
	return intentKeyPrefix + token
}

func (s *IntentStore) Save(ctx context.Context, intent *models.CheckoutIntent, ttl time.Duration) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	if err := s.client.Set(ctx, intentKey(intent.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when the token is unknown or expired
func (s *IntentStore) Load(ctx context.Context, token string) (*models.CheckoutIntent, error) {
	payload, err := s.client.Get(ctx, intentKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}

	var intent models.CheckoutIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}
	return &intent, nil
}

func (s *IntentStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, intentKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}
	return nil
}
