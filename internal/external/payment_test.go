package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu           sync.Mutex
	declineInit  bool
	failConfirm  bool
	calls        []string
	lastInit     PaymentInitRequest
	lastCancelID string
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/PaymentInit/init", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "init")
		json.NewDecoder(r.Body).Decode(&f.lastInit)
		if f.declineInit {
			json.NewEncoder(w).Encode(PaymentInitResponse{Success: false, Message: "card declined"})
			return
		}
		json.NewEncoder(w).Encode(PaymentInitResponse{Success: true, PaymentID: "pay-123", OrderID: f.lastInit.OrderID, Amount: f.lastInit.Amount})
	})
	mux.HandleFunc("/api/v1/PaymentConfirm/confirm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "confirm")
		json.NewEncoder(w).Encode(paymentActionResponse{Success: !f.failConfirm, Message: "insufficient funds"})
	})
	mux.HandleFunc("/api/v1/PaymentCancel/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "cancel")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.lastCancelID, _ = body["paymentId"].(string)
		json.NewEncoder(w).Encode(paymentActionResponse{Success: true})
	})
	return mux
}

func newTestClient(t *testing.T, provider *fakeProvider) *PaymentClient {
	t.Helper()
	server := httptest.NewServer(provider.handler())
	t.Cleanup(server.Close)
	return NewPaymentClient(PaymentConfig{BaseURL: server.URL, TeamSlug: "ticketbay", Password: "secret"})
}

func TestPaymentClientCapture(t *testing.T) {
	provider := &fakeProvider{}
	client := newTestClient(t, provider)

	result, err := client.Capture(context.Background(), CaptureRequest{
		OrderID: "order-1",
		Method:  "pix",
		Amount:  decimal.RequireFromString("105.50"),
		Email:   "ana@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "pay-123", result.ProviderPaymentID)
	assert.Equal(t, "pix", result.Provider)
	assert.Equal(t, int64(10550), provider.lastInit.Amount)
	assert.Equal(t, "BRL", provider.lastInit.Currency)
	assert.NotEmpty(t, provider.lastInit.Token)
	assert.Equal(t, []string{"init", "confirm"}, provider.calls)
}

func TestPaymentClientCaptureDeclined(t *testing.T) {
	provider := &fakeProvider{declineInit: true}
	client := newTestClient(t, provider)

	_, err := client.Capture(context.Background(), CaptureRequest{OrderID: "order-1", Method: "card", Amount: decimal.NewFromInt(10)})

	assert.True(t, errors.Is(err, ErrPaymentDeclined))
	assert.Equal(t, []string{"init"}, provider.calls)
}

func TestPaymentClientCancelsWhenConfirmFails(t *testing.T) {
	provider := &fakeProvider{failConfirm: true}
	client := newTestClient(t, provider)

	_, err := client.Capture(context.Background(), CaptureRequest{OrderID: "order-1", Method: "card", Amount: decimal.NewFromInt(10)})

	assert.True(t, errors.Is(err, ErrPaymentDeclined))
	assert.Equal(t, []string{"init", "confirm", "cancel"}, provider.calls)
	assert.Equal(t, "pay-123", provider.lastCancelID)
}

func TestPaymentClientRefund(t *testing.T) {
	provider := &fakeProvider{}
	client := newTestClient(t, provider)

	err := client.Refund(context.Background(), CaptureResult{ProviderPaymentID: "pay-9"}, "sold out")

	require.NoError(t, err)
	assert.Equal(t, "pay-9", provider.lastCancelID)
}

func TestGenerateTokenIsStable(t *testing.T) {
	client := NewPaymentClient(PaymentConfig{TeamSlug: "team", Password: "pw"})

	first := client.generateToken(map[string]string{"Amount": "100", "OrderId": "o-1"})
	second := client.generateToken(map[string]string{"OrderId": "o-1", "Amount": "100"})

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestSimulatedGateway(t *testing.T) {
	gateway := NewSimulatedGateway("declined_card")
	ctx := context.Background()

	result, err := gateway.Capture(ctx, CaptureRequest{OrderID: "o-1", Method: "pix", Amount: decimal.NewFromInt(105)})
	require.NoError(t, err)
	assert.Equal(t, "pix", result.Provider)
	assert.Contains(t, result.ProviderPaymentID, "payment_")

	_, err = gateway.Capture(ctx, CaptureRequest{OrderID: "o-1", Method: "DECLINED_CARD", Amount: decimal.NewFromInt(105)})
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	_, err = gateway.Capture(ctx, CaptureRequest{OrderID: "o-1", Method: "pix", Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	require.NoError(t, gateway.Refund(ctx, *result, "test"))
	assert.Equal(t, int64(1), gateway.Refunds())
}

func TestNewPaymentGateway(t *testing.T) {
	gw, err := NewPaymentGateway(PaymentConfig{})
	require.NoError(t, err)
	assert.IsType(t, &SimulatedGateway{}, gw)

	_, err = NewPaymentGateway(PaymentConfig{Provider: ProviderGateway})
	assert.Error(t, err)

	gw, err = NewPaymentGateway(PaymentConfig{Provider: ProviderGateway, BaseURL: "http://localhost:9999"})
	require.NoError(t, err)
	assert.IsType(t, &PaymentClient{}, gw)

	_, err = NewPaymentGateway(PaymentConfig{Provider: "paypal"})
	assert.Error(t, err)
}
