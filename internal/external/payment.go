package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentClient talks to an HTTP payment provider with signed requests
type PaymentClient struct {
	baseURL    string
	teamSlug   string
	password   string
	currency   string
	httpClient *http.Client
}

type PaymentInitRequest struct {
	TeamSlug    string `json:"teamSlug"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	PayType     string `json:"payType,omitempty"`
}

type PaymentInitResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Message   string `json:"message,omitempty"`
}

type paymentActionResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}

	return &PaymentClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		currency: cfg.Currency,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// generateToken signs the request: values of all params plus credentials, sorted by key, SHA-256.
func (pc *PaymentClient) generateToken(params map[string]string) string {
	params["TeamSlug"] = pc.teamSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(params[key])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// minorUnits converts an amount to cents
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Capture initialises the payment and confirms it right away
func (pc *PaymentClient) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = pc.currency
	}
	amount := minorUnits(req.Amount)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentDeclined)
	}

	initResp, err := pc.InitPayment(ctx, amount, req, currency)
	if err != nil {
		return nil, err
	}

	if err := pc.ConfirmPayment(ctx, initResp.PaymentID, amount); err != nil {
		if cancelErr := pc.CancelPayment(ctx, initResp.PaymentID, "confirmation failed"); cancelErr != nil {
			return nil, fmt.Errorf("%w (cancel also failed: %v)", err, cancelErr)
		}
		return nil, err
	}

	return &CaptureResult{
		Provider:          req.Method,
		ProviderPaymentID: initResp.PaymentID,
		Amount:            req.Amount,
	}, nil
}

func (pc *PaymentClient) Refund(ctx context.Context, capture CaptureResult, reason string) error {
	return pc.CancelPayment(ctx, capture.ProviderPaymentID, reason)
}

func (pc *PaymentClient) InitPayment(ctx context.Context, amount int64, req CaptureRequest, currency string) (*PaymentInitResponse, error) {
	token := pc.generateToken(map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": currency,
		"OrderId":  req.OrderID,
	})

	body := PaymentInitRequest{
		TeamSlug:    pc.teamSlug,
		Token:       token,
		Amount:      amount,
		OrderID:     req.OrderID,
		Currency:    currency,
		Description: req.Description,
		Email:       req.Email,
		PayType:     req.Method,
	}

	var result PaymentInitResponse
	if err := pc.post(ctx, "/api/v1/PaymentInit/init", body, &result); err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	if !result.Success || result.PaymentID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, result.Message)
	}

	return &result, nil
}

func (pc *PaymentClient) ConfirmPayment(ctx context.Context, paymentID string, amount int64) error {
	token := pc.generateToken(map[string]string{
		"Amount":    strconv.FormatInt(amount, 10),
		"PaymentId": paymentID,
	})

	body := map[string]any{
		"teamSlug":  pc.teamSlug,
		"token":     token,
		"paymentId": paymentID,
		"amount":    amount,
	}

	var result paymentActionResponse
	if err := pc.post(ctx, "/api/v1/PaymentConfirm/confirm", body, &result); err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrPaymentDeclined, result.Message)
	}
	return nil
}

func (pc *PaymentClient) CancelPayment(ctx context.Context, paymentID, reason string) error {
	token := pc.generateToken(map[string]string{
		"PaymentId": paymentID,
	})

	body := map[string]any{
		"teamSlug":  pc.teamSlug,
		"token":     token,
		"paymentId": paymentID,
		"reason":    reason,
	}

	var result paymentActionResponse
	if err := pc.post(ctx, "/api/v1/PaymentCancel/cancel", body, &result); err != nil {
		return fmt.Errorf("failed to cancel payment: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("payment cancel rejected: %s", result.Message)
	}
	return nil
}

func (pc *PaymentClient) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
