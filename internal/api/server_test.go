package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketbay/internal/config"
	"ticketbay/internal/external"
)

func memoryConfig() *config.Config {
	return &config.Config{
		GinMode:     gin.TestMode,
		StoreDriver: "memory",
		JWTSecret:   "test-secret",
		Payment:     external.PaymentConfig{Provider: external.ProviderSimulated},
		IntentTTL:   time.Minute,
	}
}

func TestNewServerRequiresSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.JWTSecret = ""

	_, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewServerRejectsUnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "mongo"

	_, err := NewServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHealthCheckInMemoryMode(t *testing.T) {
	server, err := NewServer(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer server.Cleanup()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, false, body["intents"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServerRoutesPublicListing(t *testing.T) {
	server, err := NewServer(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer server.Cleanup()

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSweeperDisabledWithoutTTL(t *testing.T) {
	server, err := NewServer(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer server.Cleanup()

	assert.Nil(t, server.Sweeper())

	server.config.PendingOrderTTL = time.Hour
	assert.NotNil(t, server.Sweeper())
}
