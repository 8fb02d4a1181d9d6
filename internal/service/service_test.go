package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ticketbay/internal/external"
	"ticketbay/internal/models"
	"ticketbay/internal/repository"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	ctx       context.Context
	store     *repository.MemoryStore
	gateway   *external.SimulatedGateway
	publisher *recordingPublisher
	services  *Services
	event     *models.Event
	producer  *models.Identity
	buyer     *models.Identity
	contact   models.BuyerContact
}

const (
	generalBatch = "batch-general"
	vipBatch     = "batch-vip"
)

// newFixture seeds a published event with a roomy general batch and a single VIP ticket.
func newFixture(t *testing.T, policy UnderflowPolicy) *fixture {
	t.Helper()
	return newFixtureWithGateway(t, policy, external.NewSimulatedGateway("declined"))
}

func newFixtureWithGateway(t *testing.T, policy UnderflowPolicy, gateway external.PaymentGateway) *fixture {
	t.Helper()

	ctx := context.Background()
	store := repository.NewMemoryStore()
	repos := store.Repositories()
	now := time.Now()

	producer := &models.Identity{UserID: "producer-1", Email: "producer@example.com", Name: "Producer"}
	require.NoError(t, repos.Users.Upsert(ctx, identityUser(producer, now)))

	event := &models.Event{
		ID:         "event-1",
		ProducerID: producer.UserID,
		Title:      "Festival de Inverno",
		URL:        "festival-de-inverno",
		Location:   "Curitiba",
		StartsAt:   now.Add(30 * 24 * time.Hour),
		EndsAt:     now.Add(30*24*time.Hour + 6*time.Hour),
		Status:     models.EventStatusPublished,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repos.Events.Create(ctx, event))

	for _, b := range []models.Batch{
		{ID: generalBatch, EventID: event.ID, Title: "General", Price: decimal.NewFromInt(50), Quantity: 100, Capacity: 100, IsActive: true},
		{ID: vipBatch, EventID: event.ID, Title: "VIP", Price: decimal.NewFromInt(150), Quantity: 1, Capacity: 1, IsActive: true},
	} {
		batch := b
		require.NoError(t, repos.Batches.Create(ctx, &batch))
	}

	publisher := &recordingPublisher{}
	simulated, _ := gateway.(*external.SimulatedGateway)
	services := NewServices(Dependencies{
		Store:     store,
		Gateway:   gateway,
		Publisher: publisher,
	}, CheckoutConfig{ServiceFee: decimal.NewNullDecimal(models.DefaultServiceFee), UnderflowPolicy: policy, Currency: "BRL"}, 0)

	return &fixture{
		ctx:       ctx,
		store:     store,
		gateway:   simulated,
		publisher: publisher,
		services:  services,
		event:     event,
		producer:  producer,
		buyer:     &models.Identity{UserID: "buyer-1", Email: "ana@example.com", Name: "Ana Souza"},
		contact:   models.BuyerContact{Name: "Ana Souza", Email: "ana@example.com", Phone: "+55 41 99999-0000"},
	}
}

func (f *fixture) batch(t *testing.T, id string) *models.Batch {
	t.Helper()
	batch, err := f.store.Repositories().Batches.GetByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, batch)
	return batch
}

func (f *fixture) order(t *testing.T, id string) *models.Order {
	t.Helper()
	order, err := f.store.Repositories().Orders.GetByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func (f *fixture) createOrder(t *testing.T, buyer *models.Identity, quantities map[string]int) *models.Order {
	t.Helper()
	order, err := f.services.Checkout.CreateOrder(f.ctx, buyer, f.event.ID, quantities)
	require.NoError(t, err)
	return order
}

func (f *fixture) pay(t *testing.T, buyer *models.Identity, orderID string) *CheckoutOutcome {
	t.Helper()
	outcome, err := f.services.Checkout.ProcessCheckout(f.ctx, buyer, orderID, "pix", f.contact)
	require.NoError(t, err)
	return outcome
}
