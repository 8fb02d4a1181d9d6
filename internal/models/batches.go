package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "ticketbay/internal/errors"
)

// BatchInput is a batch definition as edited by the producer
type BatchInput struct {
	ID           string          `json:"id,omitempty"`
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	IsActive     *bool           `json:"is_active,omitempty"`
	SaleStartsAt *time.Time      `json:"sale_starts_at,omitempty"`
	SaleEndsAt   *time.Time      `json:"sale_ends_at,omitempty"`
}

// BatchPlan lists the writes that bring stored batches in line with the edited set
type BatchPlan struct {
	Create []Batch
	Update []Batch
	Remove []Batch
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (in BatchInput) validate() []string {
	var violations []string
	title := strings.TrimSpace(in.Title)
	if title == "" {
		violations = append(violations, "batch title is required")
		title = "(untitled)"
	}
	if in.Price.IsNegative() {
		violations = append(violations, fmt.Sprintf("price of batch %q cannot be negative", title))
	}
	if in.Quantity < 0 {
		violations = append(violations, fmt.Sprintf("quantity of batch %q cannot be negative", title))
	}
	if in.SaleStartsAt != nil && in.SaleEndsAt != nil && !in.SaleEndsAt.After(*in.SaleStartsAt) {
		violations = append(violations, fmt.Sprintf("sale window of batch %q ends before it starts", title))
	}
	return violations
}

// PlanBatchReconciliation matches incoming definitions to stored batches by id when
// one is given and by title otherwise. Matched batches are updated in place, the
// rest are created, and stored batches left unmatched are removed.
func PlanBatchReconciliation(eventID string, existing []Batch, incoming []BatchInput, now time.Time) (*BatchPlan, error) {
	byID := make(map[string]Batch, len(existing))
	byTitle := make(map[string]Batch, len(existing))
	for _, b := range existing {
		byID[b.ID] = b
		byTitle[titleKey(b.Title)] = b
	}

	var violations []string
	seenTitles := make(map[string]bool, len(incoming))
	matched := make(map[string]bool, len(existing))
	plan := &BatchPlan{}

	for _, in := range incoming {
		violations = append(violations, in.validate()...)

		key := titleKey(in.Title)
		if key != "" {
			if seenTitles[key] {
				violations = append(violations, fmt.Sprintf("batch title %q is used more than once", strings.TrimSpace(in.Title)))
			}
			seenTitles[key] = true
		}

		var current Batch
		var found bool
		if in.ID != "" {
			current, found = byID[in.ID]
			if !found {
				violations = append(violations, fmt.Sprintf("batch %s does not belong to event %s", in.ID, eventID))
				continue
			}
		} else if b, ok := byTitle[key]; ok && !matched[b.ID] {
			current, found = b, true
		}

		if found {
			if matched[current.ID] {
				violations = append(violations, fmt.Sprintf("batch %s is edited more than once", current.ID))
				continue
			}
			matched[current.ID] = true
			plan.Update = append(plan.Update, in.applyTo(current, now))
			continue
		}

		plan.Create = append(plan.Create, in.newBatch(eventID, now))
	}

	if len(violations) > 0 {
		return nil, apperrors.Validation("invalid batches", violations...)
	}

	for _, b := range existing {
		if !matched[b.ID] {
			plan.Remove = append(plan.Remove, b)
		}
	}

	return plan, nil
}

func (in BatchInput) newBatch(eventID string, now time.Time) Batch {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return Batch{
		ID:           uuid.NewString(),
		EventID:      eventID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Price:        in.Price,
		Quantity:     in.Quantity,
		Capacity:     in.Quantity,
		IsActive:     active,
		SaleStartsAt: in.SaleStartsAt,
		SaleEndsAt:   in.SaleEndsAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// applyTo keeps what was already sold: the edited quantity is what remains on sale.
func (in BatchInput) applyTo(b Batch, now time.Time) Batch {
	sold := b.Sold()
	b.Title = strings.TrimSpace(in.Title)
	b.Description = in.Description
	b.Price = in.Price
	b.Quantity = in.Quantity
	b.Capacity = sold + in.Quantity
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	b.SaleStartsAt = in.SaleStartsAt
	b.SaleEndsAt = in.SaleEndsAt
	b.UpdatedAt = now
	return b
}
