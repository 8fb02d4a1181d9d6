package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/external"
	"ticketbay/internal/middleware"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
	"ticketbay/internal/service"
)

type fakeIntents struct {
	mu      sync.Mutex
	intents map[string]models.CheckoutIntent
}

func (f *fakeIntents) Save(ctx context.Context, intent *models.CheckoutIntent, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.Token] = *intent
	return nil
}

func (f *fakeIntents) Load(ctx context.Context, token string) (*models.CheckoutIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[token]
	if !ok {
		return nil, nil
	}
	return &intent, nil
}

func (f *fakeIntents) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.intents, token)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	verifier *middleware.IdentityVerifier
	store    *repository.MemoryStore
}

var (
	producer = models.Identity{UserID: "producer-1", Email: "producer@example.com", Name: "Producer"}
	buyer    = models.Identity{UserID: "buyer-1", Email: "ana@example.com", Name: "Ana Souza"}
)

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	services := service.NewServices(service.Dependencies{
		Store:   store,
		Gateway: external.NewSimulatedGateway("declined"),
		Intents: &fakeIntents{intents: make(map[string]models.CheckoutIntent)},
	}, service.CheckoutConfig{ServiceFee: decimal.NewNullDecimal(models.DefaultServiceFee), Currency: "BRL"}, time.Minute)

	verifier := middleware.NewIdentityVerifier("test-secret", "ticketbay")
	router := gin.New()
	NewHandlers(services).Register(router, verifier)

	return &testEnv{router: router, verifier: verifier, store: store}
}

func (e *testEnv) token(t *testing.T, identity models.Identity) string {
	t.Helper()
	token, err := e.verifier.Issue(identity, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, identity *models.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *identity))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createEvent publishes an event with a general batch of 100 and a VIP batch of 1
func (e *testEnv) createEvent(t *testing.T) *models.Event {
	t.Helper()
	start := time.Now().Add(10 * 24 * time.Hour).UTC().Truncate(time.Second)

	w := e.do(t, http.MethodPost, "/api/producer/events", &producer, gin.H{
		"title":     "Festival de Inverno",
		"location":  "Curitiba",
		"starts_at": start,
		"ends_at":   start.Add(5 * time.Hour),
		"status":    "published",
		"batches": []gin.H{
			{"title": "General", "price": 50, "quantity": 100},
			{"title": "VIP", "price": 150, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	event := decode[models.Event](t, w)
	require.Len(t, event.Batches, 2)
	return &event
}

func batchID(t *testing.T, event *models.Event, title string) string {
	t.Helper()
	for _, b := range event.Batches {
		if b.Title == title {
			return b.ID
		}
	}
	require.Failf(t, "batch not found", "no batch titled %q", title)
	return ""
}

func TestPurchaseFlow(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)
	general := batchID(t, event, "General")

	w := env.do(t, http.MethodGet, "/api/events", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[models.ListEventsResponse](t, w)
	require.Len(t, listed.Events, 1)
	assert.Equal(t, event.ID, listed.Events[0].ID)

	w = env.do(t, http.MethodGet, "/api/batches/"+general+"/availability?quantity=3", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	availability := decode[models.AvailabilityResponse](t, w)
	assert.True(t, availability.Available)
	assert.Equal(t, 100, availability.AvailableQty)

	w = env.do(t, http.MethodPost, "/api/orders", &buyer, models.CreateOrderRequest{
		EventID:    event.ID,
		Quantities: map[string]int{general: 3},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.CheckoutResult](t, w)
	require.True(t, created.Success)
	require.NotNil(t, created.Order)
	assert.True(t, decimal.NewFromInt(155).Equal(created.Order.Total))

	w = env.do(t, http.MethodPost, "/api/orders/"+created.Order.ID+"/checkout", &buyer, models.CheckoutRequest{
		PaymentMethod: "credit_card",
		Buyer:         models.BuyerContact{Name: "Ana Souza", Email: "ana@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[models.CheckoutResult](t, w)
	assert.True(t, paid.Success)
	assert.Equal(t, models.OrderStatusPaid, paid.Order.Status)
	assert.Len(t, paid.Tickets, 3)

	w = env.do(t, http.MethodGet, "/api/orders/"+created.Order.ID, &buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[models.OrderDetails](t, w)
	assert.Len(t, details.Tickets, 3)
	require.Len(t, details.Payments, 1)
	assert.Equal(t, "credit_card", details.Payments[0].Provider)

	w = env.do(t, http.MethodGet, "/api/orders/"+created.Order.ID, &producer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/producer/events/"+event.ID+"/stats", &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.EventStats](t, w)
	assert.Equal(t, 3, stats.TicketsSold)
	assert.True(t, decimal.NewFromInt(150).Equal(stats.Revenue))
}

func TestOrdersRequireAuthentication(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/api/orders", nil, models.CreateOrderRequest{EventID: "e", Quantities: map[string]int{"b": 1}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrderReportsViolations(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodPost, "/api/orders", &buyer, models.CreateOrderRequest{
		EventID:    event.ID,
		Quantities: map[string]int{batchID(t, event, "General"): 11, batchID(t, event, "VIP"): 2},
	})
	require.Equal(t, http.StatusConflict, w.Code)

	result := decode[models.CheckoutResult](t, w)
	assert.False(t, result.Success)
	assert.Equal(t, string(apperrors.KindAvailability), result.ErrorKind)
	assert.Len(t, result.Violations, 2)
}

func TestCheckoutPaymentDeclined(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodPost, "/api/orders", &buyer, models.CreateOrderRequest{
		EventID:    event.ID,
		Quantities: map[string]int{batchID(t, event, "VIP"): 1},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[models.CheckoutResult](t, w).Order

	w = env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/checkout", &buyer, models.CheckoutRequest{
		PaymentMethod: "declined",
		Buyer:         models.BuyerContact{Name: "Ana", Email: "ana@example.com"},
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, string(apperrors.KindPaymentFailed), decode[models.CheckoutResult](t, w).ErrorKind)

	w = env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", &buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusCancelled, decode[models.Order](t, w).Status)

	w = env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", &buyer, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteEventArchivesWhenSold(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodPost, "/api/orders", &buyer, models.CreateOrderRequest{
		EventID:    event.ID,
		Quantities: map[string]int{batchID(t, event, "General"): 1},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[models.CheckoutResult](t, w).Order

	w = env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/checkout", &buyer, models.CheckoutRequest{
		PaymentMethod: "pix",
		Buyer:         models.BuyerContact{Name: "Ana", Email: "ana@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/producer/events/"+event.ID, &buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/producer/events/"+event.ID, &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[models.DeleteEventResult](t, w)
	assert.Equal(t, models.DeleteActionArchived, result.Action)
	assert.True(t, result.HasSales)

	w = env.do(t, http.MethodGet, "/api/events/"+event.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/producer/events/"+event.ID+"/reactivate", &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EventStatusPublished, decode[models.Event](t, w).Status)
}

func TestEventParticipantsAndURL(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)
	assert.Equal(t, "festival-de-inverno", event.URL)

	w := env.do(t, http.MethodGet, "/api/events/festival-de-inverno", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, event.ID, decode[models.Event](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/producer/events/"+event.ID+"/participants", &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[struct {
		Participants []models.Participant `json:"participants"`
		Total        int                  `json:"total"`
	}](t, w)
	assert.NotNil(t, empty.Participants)
	assert.Equal(t, 0, empty.Total)

	w = env.do(t, http.MethodPost, "/api/orders", &buyer, models.CreateOrderRequest{
		EventID:    event.ID,
		Quantities: map[string]int{batchID(t, event, "General"): 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[models.CheckoutResult](t, w).Order

	w = env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/checkout", &buyer, models.CheckoutRequest{
		PaymentMethod: "pix",
		Buyer:         models.BuyerContact{Name: "Ana Souza", Email: "ana@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/producer/events/festival-de-inverno/participants", &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Participants []models.Participant `json:"participants"`
		Total        int                  `json:"total"`
	}](t, w)
	require.Equal(t, 2, listed.Total)
	for _, p := range listed.Participants {
		assert.Equal(t, order.ID, p.OrderID)
		assert.Equal(t, "General", p.BatchTitle)
		assert.Equal(t, "ana@example.com", p.Buyer.Email)
		assert.True(t, decimal.NewFromInt(50).Equal(p.UnitPrice))
	}

	w = env.do(t, http.MethodGet, "/api/producer/events/"+event.ID+"/participants", &buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/producer/events/"+event.ID+"/participants", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteEventWithoutSales(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodDelete, "/api/producer/events/"+event.ID, &producer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DeleteActionDeleted, decode[models.DeleteEventResult](t, w).Action)

	w = env.do(t, http.MethodGet, "/api/events/"+event.ID, &producer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutIntentResume(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodPost, "/api/checkout/intents", nil, models.StashIntentRequest{
		EventID:    event.ID,
		Quantities: map[string]int{batchID(t, event, "General"): 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	stashed := decode[models.StashIntentResponse](t, w)
	require.NotEmpty(t, stashed.Token)

	w = env.do(t, http.MethodPost, "/api/checkout/intents/"+stashed.Token+"/resume", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/checkout/intents/"+stashed.Token+"/resume", &buyer, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resumed := decode[models.CheckoutResult](t, w)
	assert.Equal(t, 2, resumed.Order.TicketCount())

	w = env.do(t, http.MethodPost, "/api/checkout/intents/"+stashed.Token+"/resume", &buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBatchesValidation(t *testing.T) {
	env := setupRouter(t)
	event := env.createEvent(t)

	w := env.do(t, http.MethodPut, "/api/producer/events/"+event.ID+"/batches", &producer, gin.H{
		"batches": []gin.H{
			{"title": "General", "price": -5, "quantity": 10},
			{"title": "general", "price": 10, "quantity": 10},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Kind       string   `json:"kind"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(apperrors.KindValidation), body.Kind)
	assert.Len(t, body.Violations, 2)
}

func TestListEventsValidatesPagination(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/events?page=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/events?pageSize=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/events", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[],"page":1,"page_size":20}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindValidation:       http.StatusBadRequest,
		apperrors.KindAuthRequired:     http.StatusUnauthorized,
		apperrors.KindForbidden:        http.StatusForbidden,
		apperrors.KindEventUnavailable: http.StatusUnprocessableEntity,
		apperrors.KindAvailability:     http.StatusConflict,
		apperrors.KindNotFound:         http.StatusNotFound,
		apperrors.KindInvalidState:     http.StatusConflict,
		apperrors.KindPaymentFailed:    http.StatusPaymentRequired,
		apperrors.KindPersistence:      http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusFor(kind), string(kind))
	}
}
