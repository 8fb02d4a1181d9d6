package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

var ErrPaymentDeclined = errors.New("payment declined")

const (
	ProviderSimulated = "simulated"
	ProviderGateway   = "gateway"
)

type PaymentConfig struct {
	Provider       string
	BaseURL        string
	TeamSlug       string
	Password       string
	Currency       string
	Timeout        time.Duration
	DeclineMethods []string
}

// CaptureRequest asks the provider to take the order total from the buyer
type CaptureRequest struct {
	OrderID     string
	Method      string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	Description string
}

// CaptureResult identifies a captured payment so it can be audited or refunded
type CaptureResult struct {
	Provider          string
	ProviderPaymentID string
	Amount            decimal.Decimal
}

// PaymentGateway captures and refunds order payments
type PaymentGateway interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	Refund(ctx context.Context, capture CaptureResult, reason string) error
}

// NewPaymentGateway picks the provider named in cfg
func NewPaymentGateway(cfg PaymentConfig) (PaymentGateway, error) {
	switch cfg.Provider {
	case "", ProviderSimulated:
		return NewSimulatedGateway(cfg.DeclineMethods...), nil
	case ProviderGateway:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("payment gateway URL is required for provider %q", cfg.Provider)
		}
		return NewPaymentClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}

// SimulatedGateway approves every capture except for the configured methods.
type SimulatedGateway struct {
	declined map[string]bool
	seq      atomic.Int64
	refunds  atomic.Int64
}

func NewSimulatedGateway(declineMethods ...string) *SimulatedGateway {
	declined := make(map[string]bool, len(declineMethods))
	for _, m := range declineMethods {
		declined[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return &SimulatedGateway{declined: declined}
}

func (g *SimulatedGateway) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentDeclined)
	}
	if g.declined[strings.ToLower(req.Method)] {
		return nil, fmt.Errorf("%w: method %s", ErrPaymentDeclined, req.Method)
	}

	return &CaptureResult{
		Provider:          req.Method,
		ProviderPaymentID: fmt.Sprintf("payment_%d_%d", time.Now().UnixMilli(), g.seq.Add(1)),
		Amount:            req.Amount,
	}, nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, capture CaptureResult, reason string) error {
	g.refunds.Add(1)
	return ctx.Err()
}

// Refunds is the number of refunds processed so far
func (g *SimulatedGateway) Refunds() int64 {
	return g.refunds.Load()
}
