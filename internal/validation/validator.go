package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ticketbay/internal/models"
)

// FlowValidator - прогоняет полный сценарий покупки против запущенного API
type FlowValidator struct {
	baseURL       string
	producerToken string
	buyerToken    string
	client        *http.Client
}

// NewFlowValidator создает валидатор; токены выдает cmd/seed
func NewFlowValidator(baseURL, producerToken, buyerToken string) *FlowValidator {
	return &FlowValidator{
		baseURL:       baseURL,
		producerToken: producerToken,
		buyerToken:    buyerToken,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateAll создает событие, покупает билет и удаляет событие (оно уходит в архив)
func (v *FlowValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Начинаю проверку сценария покупки", "base_url", v.baseURL)

	event, err := v.validateEventCreation(ctx)
	if err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := v.validateListing(ctx, event.ID); err != nil {
		return fmt.Errorf("listing validation failed: %w", err)
	}

	if err := v.validatePurchase(ctx, event); err != nil {
		return fmt.Errorf("purchase validation failed: %w", err)
	}

	if err := v.validateArchive(ctx, event.ID); err != nil {
		return fmt.Errorf("archive validation failed: %w", err)
	}

	slog.Info("Сценарий покупки прошел успешно")
	return nil
}

func (v *FlowValidator) validateEventCreation(ctx context.Context) (*models.Event, error) {
	startsAt := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute)
	req := models.CreateEventRequest{
		Title:       "Smoke check " + startsAt.Format(time.RFC3339),
		StartsAt:    startsAt,
		EndsAt:      startsAt.Add(2 * time.Hour),
		MaxCapacity: 10,
		Status:      models.EventStatusPublished,
		Batches: []models.BatchInput{
			{Title: "General", Price: decimal.NewFromInt(50), Quantity: 10},
		},
	}

	var event models.Event
	if err := v.do(ctx, http.MethodPost, "/api/producer/events", v.producerToken, req, http.StatusCreated, &event); err != nil {
		return nil, err
	}
	if event.ID == "" || len(event.Batches) != 1 {
		return nil, fmt.Errorf("POST /api/producer/events: expected event with one batch, got %+v", event)
	}
	return &event, nil
}

func (v *FlowValidator) validateListing(ctx context.Context, eventID string) error {
	var event models.Event
	if err := v.do(ctx, http.MethodGet, "/api/events/"+eventID, "", nil, http.StatusOK, &event); err != nil {
		return err
	}
	if event.Status != models.EventStatusPublished {
		return fmt.Errorf("GET /api/events/%s: expected published, got %s", eventID, event.Status)
	}

	var list models.ListEventsResponse
	return v.do(ctx, http.MethodGet, "/api/events?page=1&pageSize=10", "", nil, http.StatusOK, &list)
}

func (v *FlowValidator) validatePurchase(ctx context.Context, event *models.Event) error {
	batch := event.Batches[0]

	var created models.CheckoutResult
	orderReq := models.CreateOrderRequest{EventID: event.ID, Quantities: map[string]int{batch.ID: 2}}
	if err := v.do(ctx, http.MethodPost, "/api/orders", v.buyerToken, orderReq, http.StatusCreated, &created); err != nil {
		return err
	}
	if !created.Success || created.Order == nil || created.Order.Status != models.OrderStatusPending {
		return fmt.Errorf("POST /api/orders: expected pending order, got %+v", created)
	}

	var paid models.CheckoutResult
	checkoutReq := models.CheckoutRequest{
		PaymentMethod: "credit_card",
		Buyer:         models.BuyerContact{Name: "Smoke Buyer", Email: "smoke@ticketbay.local"},
	}
	path := "/api/orders/" + created.Order.ID + "/checkout"
	if err := v.do(ctx, http.MethodPost, path, v.buyerToken, checkoutReq, http.StatusOK, &paid); err != nil {
		return err
	}
	if !paid.Success || len(paid.Tickets) != 2 {
		return fmt.Errorf("POST %s: expected 2 tickets, got %+v", path, paid)
	}

	var availability models.AvailabilityResponse
	if err := v.do(ctx, http.MethodGet, "/api/batches/"+batch.ID+"/availability", "", nil, http.StatusOK, &availability); err != nil {
		return err
	}
	if availability.AvailableQty != batch.Quantity-2 {
		return fmt.Errorf("availability: expected %d, got %d", batch.Quantity-2, availability.AvailableQty)
	}
	return nil
}

func (v *FlowValidator) validateArchive(ctx context.Context, eventID string) error {
	var result models.DeleteEventResult
	if err := v.do(ctx, http.MethodDelete, "/api/producer/events/"+eventID, v.producerToken, nil, http.StatusOK, &result); err != nil {
		return err
	}
	if result.Action != models.DeleteActionArchived {
		return fmt.Errorf("DELETE /api/producer/events/%s: expected archive for event with sales", eventID)
	}
	return nil
}

func (v *FlowValidator) do(ctx context.Context, method, path, token string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
