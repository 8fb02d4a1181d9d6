package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketbay_orders_created_total",
			Help: "Total pending orders created",
		},
	)

	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbay_checkout_outcomes_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketbay_tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	inventoryConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbay_inventory_conflicts_total",
			Help: "Decrements that found fewer tickets than requested",
		},
		[]string{"policy"},
	)

	ordersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketbay_orders_swept_total",
			Help: "Stale pending orders cancelled by the sweeper",
		},
	)

	eventRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketbay_event_removals_total",
			Help: "Event delete requests by resulting action",
		},
		[]string{"action"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketbay_operation_duration_seconds",
			Help:    "Duration of checkout operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func OrderCreated() {
	ordersCreated.Inc()
}

// CheckoutOutcome records a processCheckout result: paid, payment_failed, sold_out, invalid_state, error
func CheckoutOutcome(outcome string) {
	checkoutOutcomes.WithLabelValues(outcome).Inc()
}

func TicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func InventoryConflict(policy string) {
	inventoryConflicts.WithLabelValues(policy).Inc()
}

func OrdersSwept(n int) {
	ordersSwept.Add(float64(n))
}

func EventRemoved(action string) {
	eventRemovals.WithLabelValues(action).Inc()
}

// ObserveDuration is meant to be deferred: defer metrics.ObserveDuration("checkout", time.Now())
func ObserveDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
