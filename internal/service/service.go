package service

import (
	"time"

	"ticketbay/internal/external"
	"ticketbay/internal/messaging"
	"ticketbay/internal/repository"
)

type Services struct {
	Inventory *InventoryLedger
	Tickets   *TicketIssuer
	Checkout  *Checkout
	Events    *EventService
	Orders    *OrderService
	Intents   *IntentService
}

// Dependencies bundles the adapters services are built on. Searcher and Intents may be nil.
type Dependencies struct {
	Store     repository.Store
	Gateway   external.PaymentGateway
	Publisher messaging.Publisher
	Searcher  EventSearcher
	Intents   IntentStore
}

func NewServices(deps Dependencies, cfg CheckoutConfig, intentTTL time.Duration) *Services {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	cfg = cfg.withDefaults()
	ledger := NewInventoryLedger(deps.Store.Repositories().Batches, cfg.UnderflowPolicy)
	issuer := NewTicketIssuer(deps.Store, ledger)
	checkout := NewCheckout(deps.Store, ledger, issuer, deps.Gateway, publisher, cfg)

	services := &Services{
		Inventory: ledger,
		Tickets:   issuer,
		Checkout:  checkout,
		Events:    NewEventService(deps.Store, deps.Searcher, publisher),
		Orders:    NewOrderService(deps.Store),
	}
	if deps.Intents != nil {
		services.Intents = NewIntentService(deps.Intents, checkout, intentTTL)
	}
	return services
}
