package service

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketbay/internal/errors"
)

func TestNewTicketNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^TKT[A-Z0-9]+$`)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		number := NewTicketNumber()
		require.Regexp(t, pattern, number)
		require.False(t, seen[number], "duplicate ticket number %s", number)
		seen[number] = true
	}
}

func TestIssueTicketsForOrderIsIdempotent(t *testing.T) {
	f := newFixture(t, UnderflowReject)
	order := f.createOrder(t, f.buyer, map[string]int{generalBatch: 3})
	outcome := f.pay(t, f.buyer, order.ID)

	again, err := f.services.Tickets.IssueTicketsForOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, again, 3)

	var first, second []string
	for i := range outcome.Tickets {
		first = append(first, outcome.Tickets[i].TicketNumber)
		second = append(second, again[i].TicketNumber)
	}
	assert.ElementsMatch(t, first, second)
	assert.Equal(t, 97, f.batch(t, generalBatch).Quantity)
}

func TestIssueTicketsForOrderRequiresPaidOrder(t *testing.T) {
	f := newFixture(t, UnderflowReject)
	order := f.createOrder(t, f.buyer, map[string]int{generalBatch: 1})

	_, err := f.services.Tickets.IssueTicketsForOrder(f.ctx, order.ID)
	assert.True(t, apperrors.IsInvalidStateError(err))

	_, err = f.services.Tickets.IssueTicketsForOrder(f.ctx, "missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	assert.Equal(t, 100, f.batch(t, generalBatch).Quantity)
}
