package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketbay/internal/errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testContact() BuyerContact {
	return BuyerContact{Name: "Ana Souza", Email: "ana@example.com", Phone: "+5511999999999"}
}

func TestNewOrderComputesTotals(t *testing.T) {
	lines := []OrderLine{
		{BatchID: "vip", Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		{BatchID: "general", Quantity: 1, UnitPrice: decimal.RequireFromString("19.90")},
	}

	order, err := NewOrder("buyer-1", "event-1", lines, testContact(), DefaultServiceFee, testNow)
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("119.90")))
	assert.True(t, order.ServiceFee.Equal(decimal.NewFromInt(5)))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("124.90")))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.TicketCount())
	for _, item := range order.Items {
		assert.Equal(t, order.ID, item.OrderID)
	}
}

func TestNewOrderRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		buyerID string
		lines   []OrderLine
		kind    apperrors.Kind
	}{
		{"no buyer", "", []OrderLine{{BatchID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}}, apperrors.KindAuthRequired},
		{"no items", "buyer-1", nil, apperrors.KindValidation},
		{"zero quantity", "buyer-1", []OrderLine{{BatchID: "b", Quantity: 0, UnitPrice: decimal.NewFromInt(10)}}, apperrors.KindValidation},
		{"negative price", "buyer-1", []OrderLine{{BatchID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := NewOrder(tt.buyerID, "event-1", tt.lines, testContact(), DefaultServiceFee, testNow)
			assert.Nil(t, order)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestMarkPaidReplacesContactAndRecomputes(t *testing.T) {
	order, err := NewOrder("buyer-1", "event-1", []OrderLine{{BatchID: "b", Quantity: 2, UnitPrice: decimal.NewFromInt(50)}}, testContact(), DefaultServiceFee, testNow)
	require.NoError(t, err)

	// a tampered total never survives a mutation
	order.Total = decimal.NewFromInt(1)
	contact := BuyerContact{Name: "Bruno Lima", Email: "bruno@example.com"}
	paidAt := testNow.Add(time.Minute)

	require.NoError(t, order.MarkPaid(&contact, paidAt))

	assert.Equal(t, OrderStatusPaid, order.Status)
	assert.Equal(t, contact, order.Buyer)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, paidAt, *order.PaidAt)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(105)))
}

func TestTerminalOrdersRejectTransitions(t *testing.T) {
	order, err := NewOrder("buyer-1", "event-1", []OrderLine{{BatchID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}}, testContact(), DefaultServiceFee, testNow)
	require.NoError(t, err)
	require.NoError(t, order.MarkPaid(nil, testNow))

	assert.True(t, apperrors.IsInvalidStateError(order.MarkPaid(nil, testNow)))
	assert.True(t, apperrors.IsInvalidStateError(order.Cancel(testNow)))
	assert.True(t, apperrors.IsInvalidStateError(order.MarkFailed(testNow)))
	assert.Equal(t, OrderStatusPaid, order.Status)
}

func TestCancelPendingOrder(t *testing.T) {
	order, err := NewOrder("buyer-1", "event-1", []OrderLine{{BatchID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}}, testContact(), DefaultServiceFee, testNow)
	require.NoError(t, err)

	require.NoError(t, order.Cancel(testNow))
	assert.Equal(t, OrderStatusCancelled, order.Status)
	assert.NotNil(t, order.CancelledAt)
}

func TestBuyerContactValidate(t *testing.T) {
	assert.NoError(t, testContact().Validate())

	err := BuyerContact{Email: "not-an-email"}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Len(t, apperrors.ViolationsOf(err), 2)
}

func TestRecomputeTotalIsPure(t *testing.T) {
	order := Order{Subtotal: decimal.NewFromInt(100), ServiceFee: decimal.NewFromInt(5), Total: decimal.NewFromInt(3)}

	assert.True(t, RecomputeTotal(order).Equal(decimal.NewFromInt(105)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(3)))
}
