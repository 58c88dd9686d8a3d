package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook metrics
var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_webhooks_received_total",
			Help: "Webhook deliveries received, by provider and outcome of signature verification.",
		},
		[]string{"provider", "outcome"},
	)

	WebhookEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_webhook_events_applied_total",
			Help: "Webhook events applied to canonical state, by provider and event type.",
		},
		[]string{"provider", "event_type"},
	)

	WebhookEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_webhook_events_dropped_total",
			Help: "Webhook events dropped, by provider and reason (duplicate, unhandled, anomaly).",
		},
		[]string{"provider", "reason"},
	)
)

// Money-movement metrics
var (
	CheckoutsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_checkouts_initiated_total",
			Help: "Checkout sessions created, by provider and tier.",
		},
		[]string{"provider", "tier"},
	)

	CheckoutsDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_checkouts_denied_total",
			Help: "Checkouts short-circuited by the fraud gate.",
		},
	)

	PayoutsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_payouts_initiated_total",
			Help: "Payouts successfully handed to a provider.",
		},
	)

	PayoutsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_payouts_failed_total",
			Help: "Payout initiations rolled back after a provider failure.",
		},
	)
)
