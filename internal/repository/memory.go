package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/models"
)

// MemoryStore keeps every aggregate in process. Transactions are serialized and
// restored from a snapshot when the unit of work fails, so it is meant for tests,
// demos and single-instance runs only.
type MemoryStore struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	data     memoryData
	failures map[string]error
	repos    *Repositories
}

type memoryData struct {
	events   map[string]models.Event
	batches  map[string]models.Batch
	orders   map[string]models.Order
	tickets  []models.Ticket
	payments []models.Payment
	users    map[string]models.User
}

func newMemoryData() memoryData {
	return memoryData{
		events:  make(map[string]models.Event),
		batches: make(map[string]models.Batch),
		orders:  make(map[string]models.Order),
		users:   make(map[string]models.User),
	}
}

func (d memoryData) clone() memoryData {
	c := newMemoryData()
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	c.tickets = append([]models.Ticket(nil), d.tickets...)
	c.payments = append([]models.Payment(nil), d.payments...)
	return c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: newMemoryData(), failures: make(map[string]error)}
	s.repos = &Repositories{
		Events:   &memoryEvents{s},
		Batches:  &memoryBatches{s},
		Orders:   &memoryOrders{s},
		Tickets:  &memoryTickets{s},
		Payments: &memoryPayments{s},
		Users:    &memoryUsers{s},
	}
	return s
}

func (s *MemoryStore) Repositories() *Repositories {
	return s.repos
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.repos); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailNext makes the next call of op (for example "tickets.create") return err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// failure must be called with mu held
func (s *MemoryStore) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

type memoryEvents struct{ s *MemoryStore }

func (r *memoryEvents) Create(ctx context.Context, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("events.create"); err != nil {
		return err
	}
	if r.urlTaken(event.URL, event.ID) {
		return ErrDuplicateURL
	}
	stored := *event
	stored.Batches = nil
	r.s.data.events[event.ID] = stored
	return nil
}

func (r *memoryEvents) urlTaken(url, exceptID string) bool {
	if url == "" {
		return false
	}
	for id, e := range r.s.data.events {
		if id != exceptID && e.URL == url {
			return true
		}
	}
	return false
}

func (r *memoryEvents) GetByURL(ctx context.Context, url string) (*models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, event := range r.s.data.events {
		if url != "" && event.URL == url {
			return &event, nil
		}
	}
	return nil, nil
}

func (r *memoryEvents) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	event, ok := r.s.data.events[id]
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (r *memoryEvents) Update(ctx context.Context, event *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("events.update"); err != nil {
		return err
	}
	current, ok := r.s.data.events[event.ID]
	if !ok {
		return nil
	}
	if r.urlTaken(event.URL, event.ID) {
		return ErrDuplicateURL
	}
	stored := *event
	stored.Batches = nil
	stored.ArchivedAt = current.ArchivedAt
	stored.ArchivedBy = current.ArchivedBy
	r.s.data.events[event.ID] = stored
	return nil
}

func (r *memoryEvents) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("events.delete"); err != nil {
		return err
	}
	for _, o := range r.s.data.orders {
		if o.EventID == id && o.Status == models.OrderStatusPaid {
			return fmt.Errorf("event %s has paid orders", id)
		}
	}
	delete(r.s.data.events, id)
	for batchID, b := range r.s.data.batches {
		if b.EventID == id {
			delete(r.s.data.batches, batchID)
		}
	}
	for orderID, o := range r.s.data.orders {
		if o.EventID == id {
			delete(r.s.data.orders, orderID)
		}
	}
	return nil
}

func (r *memoryEvents) Archive(ctx context.Context, id, archivedBy string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("events.archive"); err != nil {
		return err
	}
	event, ok := r.s.data.events[id]
	if !ok {
		return nil
	}
	event.Status = models.EventStatusArchived
	event.ArchivedAt = &at
	event.ArchivedBy = &archivedBy
	event.UpdatedAt = at
	r.s.data.events[id] = event
	return nil
}

func (r *memoryEvents) Reactivate(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.data.events[id]
	if !ok {
		return nil
	}
	event.Status = models.EventStatusPublished
	event.ArchivedAt = nil
	event.ArchivedBy = nil
	event.UpdatedAt = at
	r.s.data.events[id] = event
	return nil
}

func (r *memoryEvents) List(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := time.Now()
	search := strings.ToLower(filter.Search)
	var events []models.Event
	for _, e := range r.s.data.events {
		if filter.ProducerID != "" && e.ProducerID != filter.ProducerID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if !filter.IncludeArchived && e.Status == models.EventStatusArchived {
			continue
		}
		if filter.UpcomingOnly && !e.StartsAt.After(now) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.Location), search) {
			continue
		}
		events = append(events, e)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].StartsAt.Equal(events[j].StartsAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartsAt.Before(events[j].StartsAt)
	})

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset >= len(events) {
			return nil, nil
		}
		end := offset + filter.PageSize
		if end > len(events) {
			end = len(events)
		}
		events = events[offset:end]
	}

	return events, nil
}

func (r *memoryEvents) HasSales(ctx context.Context, eventID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.data.orders {
		if o.EventID != eventID {
			continue
		}
		if o.Status == models.OrderStatusPaid {
			return true, nil
		}
		for _, p := range r.s.data.payments {
			if p.OrderID == o.ID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memoryEvents) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.failure("events.stats"); err != nil {
		return nil, err
	}

	stats := &models.EventStats{EventID: eventID, Revenue: decimal.Zero}
	for _, t := range r.s.data.tickets {
		b, ok := r.s.data.batches[t.BatchID]
		if ok && b.EventID == eventID && (t.Status == models.TicketStatusSold || t.Status == models.TicketStatusUsed) {
			stats.TicketsSold++
		}
	}
	stats.Participants = stats.TicketsSold
	for _, o := range r.s.data.orders {
		if o.EventID == eventID && o.Status == models.OrderStatusPaid {
			stats.Revenue = stats.Revenue.Add(o.Subtotal)
		}
	}
	return stats, nil
}

func (r *memoryEvents) ProducerStats(ctx context.Context, producerID string, monthStart time.Time) (*models.ProducerStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	monthEnd := monthStart.AddDate(0, 1, 0)
	inMonth := func(t time.Time) bool { return !t.Before(monthStart) && t.Before(monthEnd) }

	stats := &models.ProducerStats{ProducerID: producerID, TotalRevenue: decimal.Zero, RevenueThisMonth: decimal.Zero}
	owned := make(map[string]bool)
	for _, e := range r.s.data.events {
		if e.ProducerID != producerID {
			continue
		}
		owned[e.ID] = true
		if e.Status == models.EventStatusArchived {
			continue
		}
		stats.TotalEvents++
		if inMonth(e.StartsAt) {
			stats.EventsThisMonth++
		}
	}
	for _, o := range r.s.data.orders {
		if !owned[o.EventID] || o.Status != models.OrderStatusPaid {
			continue
		}
		stats.TotalSales++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.Subtotal)
		if inMonth(o.CreatedAt) {
			stats.RevenueThisMonth = stats.RevenueThisMonth.Add(o.Subtotal)
		}
	}
	return stats, nil
}

type memoryBatches struct{ s *MemoryStore }

func (r *memoryBatches) Create(ctx context.Context, batch *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("batches.create"); err != nil {
		return err
	}
	batch.Version = 0
	r.s.data.batches[batch.ID] = *batch
	return nil
}

func (r *memoryBatches) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	batch, ok := r.s.data.batches[id]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

func (r *memoryBatches) ListByEvent(ctx context.Context, eventID string) ([]models.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var batches []models.Batch
	for _, b := range r.s.data.batches {
		if b.EventID == eventID {
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].Price.Equal(batches[j].Price) {
			return batches[i].Title < batches[j].Title
		}
		return batches[i].Price.LessThan(batches[j].Price)
	})
	return batches, nil
}

func (r *memoryBatches) Update(ctx context.Context, batch *models.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("batches.update"); err != nil {
		return err
	}
	current, ok := r.s.data.batches[batch.ID]
	if !ok || current.Version != batch.Version {
		return apperrors.InvalidState("batch " + batch.ID + " was changed concurrently, reload and retry")
	}
	batch.Version++
	r.s.data.batches[batch.ID] = *batch
	return nil
}

func (r *memoryBatches) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("batches.delete"); err != nil {
		return err
	}
	delete(r.s.data.batches, id)
	return nil
}

func (r *memoryBatches) HasOrderItems(ctx context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.data.orders {
		for _, item := range o.Items {
			if item.BatchID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memoryBatches) Decrement(ctx context.Context, id string, qty int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("batches.decrement"); err != nil {
		return 0, err
	}
	batch, ok := r.s.data.batches[id]
	if !ok || batch.Quantity < qty {
		return 0, apperrors.ErrInsufficientInventory
	}
	batch.Quantity -= qty
	batch.Version++
	r.s.data.batches[id] = batch
	return batch.Quantity, nil
}

func (r *memoryBatches) DecrementClamped(ctx context.Context, id string, qty int) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("batches.decrement"); err != nil {
		return 0, 0, err
	}
	batch, ok := r.s.data.batches[id]
	if !ok {
		return 0, 0, apperrors.ErrBatchNotFound
	}
	before := batch.Quantity
	batch.Quantity -= qty
	if batch.Quantity < 0 {
		batch.Quantity = 0
	}
	batch.Version++
	r.s.data.batches[id] = batch
	return before, batch.Quantity, nil
}

type memoryOrders struct{ s *MemoryStore }

func (r *memoryOrders) Create(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.create"); err != nil {
		return err
	}
	r.s.data.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r *memoryOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.data.orders[id]
	if !ok {
		return nil, nil
	}
	order = copyOrder(order)
	return &order, nil
}

// GetForUpdate needs no row lock here: transactions already run one at a time.
func (r *memoryOrders) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryOrders) Update(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.update"); err != nil {
		return err
	}
	current, ok := r.s.data.orders[order.ID]
	if !ok {
		return nil
	}
	updated := copyOrder(*order)
	updated.Items = current.Items
	r.s.data.orders[order.ID] = updated
	return nil
}

func (r *memoryOrders) ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var orders []models.Order
	for _, o := range r.s.data.orders {
		if o.BuyerID == buyerID {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r *memoryOrders) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var orders []models.Order
	for _, o := range r.s.data.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

type memoryTickets struct{ s *MemoryStore }

func (r *memoryTickets) Create(ctx context.Context, ticket *models.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tickets.create"); err != nil {
		return err
	}
	for _, t := range r.s.data.tickets {
		if t.TicketNumber == ticket.TicketNumber {
			return apperrors.Persistence("create ticket", errDuplicateTicketNumber)
		}
	}
	r.s.data.tickets = append(r.s.data.tickets, *ticket)
	return nil
}

func (r *memoryTickets) ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var tickets []models.Ticket
	for _, t := range r.s.data.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (r *memoryTickets) ListByEvent(ctx context.Context, eventID string) ([]models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var participants []models.Participant
	for _, t := range r.s.data.tickets {
		if t.OrderID == nil {
			continue
		}
		order, ok := r.s.data.orders[*t.OrderID]
		if !ok || order.EventID != eventID {
			continue
		}
		batch := r.s.data.batches[t.BatchID]
		unitPrice := batch.Price
		for _, item := range order.Items {
			if item.BatchID == t.BatchID {
				unitPrice = item.UnitPrice
				break
			}
		}
		participants = append(participants, models.Participant{
			TicketID:     t.ID,
			TicketNumber: t.TicketNumber,
			TicketStatus: t.Status,
			HolderName:   t.HolderName,
			HolderEmail:  t.HolderEmail,
			BatchID:      t.BatchID,
			BatchTitle:   batch.Title,
			UnitPrice:    unitPrice,
			OrderID:      order.ID,
			OrderStatus:  order.Status,
			BuyerID:      order.BuyerID,
			Buyer:        order.Buyer,
			PaidAt:       order.PaidAt,
			IssuedAt:     t.CreatedAt,
		})
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].TicketNumber < participants[j].TicketNumber
	})
	return participants, nil
}

type memoryPayments struct{ s *MemoryStore }

func (r *memoryPayments) Create(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.create"); err != nil {
		return err
	}
	r.s.data.payments = append(r.s.data.payments, *payment)
	return nil
}

func (r *memoryPayments) ListByOrder(ctx context.Context, orderID string) ([]models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var payments []models.Payment
	for _, p := range r.s.data.payments {
		if p.OrderID == orderID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

type memoryUsers struct{ s *MemoryStore }

func (r *memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *memoryUsers) Upsert(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.users[user.ID]
	if !ok {
		r.s.data.users[user.ID] = *user
		return nil
	}
	if user.Email != "" {
		current.Email = user.Email
	}
	if user.FullName != "" {
		current.FullName = user.FullName
	}
	current.UpdatedAt = user.UpdatedAt
	r.s.data.users[user.ID] = current
	return nil
}

var errDuplicateTicketNumber = errors.New("duplicate ticket number")
