package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/metrics"
	"vauntico-server/internal/notify"
)

// SubscriptionEvent is a verified, provider-normalized subscription webhook
// event. ProviderStatus carries the provider's absolute reported status in
// the vocabulary of the canonical mapping table; the reconciler consults it,
// not arrival order, for the authoritative outcome.
type SubscriptionEvent struct {
	Provider        string
	ExternalEventID string
	EventType       string

	// UserID is zero when the event could not name the user directly; the
	// reconciler then resolves the row by ProviderSubscriptionRef.
	UserID                  uint
	ProviderCustomerRef     string
	ProviderSubscriptionRef string

	ProviderStatus     string
	Tier               string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
}

// PayoutEvent is a verified payout-confirmation webhook event for a
// PaymentRequest, matched by the provider transaction reference.
type PayoutEvent struct {
	Provider          string
	ExternalEventID   string
	EventType         string
	ExternalReference string
	Succeeded         bool
	FailureReason     string
}

// Reconciler applies one verified event at a time to canonical state,
// enforcing the allowed-transition tables and the idempotency claim.
type Reconciler struct {
	store    Store
	notifier notify.Notifier
	log      *slog.Logger
}

func NewReconciler(store Store, notifier notify.Notifier, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, notifier: notifier, log: log}
}

// ApplySubscriptionEvent claims the event and folds the provider's reported
// status into the user's Subscription row. Duplicate deliveries are no-ops;
// unknown statuses and unresolvable users are dropped as anomalies.
func (r *Reconciler) ApplySubscriptionEvent(ctx context.Context, ev SubscriptionEvent) error {
	claimed, err := r.store.ClaimEvent(ctx, ev.Provider, ev.ExternalEventID, ev.EventType)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		metrics.WebhookEventsDropped.WithLabelValues(ev.Provider, "duplicate").Inc()
		r.log.Info("duplicate webhook delivery ignored",
			"provider", ev.Provider, "event_id", ev.ExternalEventID, "event_type", ev.EventType)
		return nil
	}

	status, ok := subscriptions.MapProviderStatus(ev.ProviderStatus)
	if !ok {
		return r.dropAnomaly(ctx, ev.Provider, ev.ExternalEventID,
			fmt.Errorf("unknown provider status %q", ev.ProviderStatus))
	}

	sub, err := r.resolveSubscription(ctx, ev)
	if err != nil {
		return err
	}
	if sub == nil {
		return r.dropAnomaly(ctx, ev.Provider, ev.ExternalEventID,
			fmt.Errorf("event names no known user or subscription ref %q", ev.ProviderSubscriptionRef))
	}

	previous := sub.Status
	sub.Provider = ev.Provider
	sub.Status = status
	if ev.ProviderCustomerRef != "" {
		sub.ProviderCustomerRef = ev.ProviderCustomerRef
	}
	if ev.ProviderSubscriptionRef != "" {
		sub.ProviderSubscriptionRef = ev.ProviderSubscriptionRef
	}
	if ev.Tier != "" {
		sub.Tier = ev.Tier
	}
	if ev.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = ev.CurrentPeriodStart
	}
	if ev.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	if ev.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *ev.CancelAtPeriodEnd
	}
	sub.UpdatedAt = time.Now()

	if err := r.store.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	if err := r.store.MarkEventProcessed(ctx, ev.Provider, ev.ExternalEventID, nil); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	metrics.WebhookEventsApplied.WithLabelValues(ev.Provider, ev.EventType).Inc()
	r.log.Info("subscription reconciled",
		"provider", ev.Provider, "user_id", sub.UserID,
		"from", previous, "to", status, "tier", sub.Tier)

	if status != previous && (status == subscriptions.StatusCanceled || status == subscriptions.StatusPastDue) {
		r.notifier.Alert(fmt.Sprintf("Subscription %s", status), map[string]any{
			"userId":   sub.UserID,
			"provider": ev.Provider,
			"tier":     sub.Tier,
			"from":     previous,
		})
	}
	return nil
}

// resolveSubscription finds the row the event applies to, creating a fresh
// in-memory row for a first checkout-completion when the user is known.
func (r *Reconciler) resolveSubscription(ctx context.Context, ev SubscriptionEvent) (*subscriptions.Subscription, error) {
	if ev.UserID != 0 {
		sub, err := r.store.SubscriptionByUser(ctx, ev.UserID)
		if err != nil {
			return nil, fmt.Errorf("load subscription: %w", err)
		}
		if sub == nil {
			sub = &subscriptions.Subscription{UserID: ev.UserID, Tier: subscriptions.TierFree}
		}
		return sub, nil
	}
	if ev.ProviderSubscriptionRef != "" {
		sub, err := r.store.SubscriptionByProviderRef(ctx, ev.Provider, ev.ProviderSubscriptionRef)
		if err != nil {
			return nil, fmt.Errorf("load subscription: %w", err)
		}
		return sub, nil
	}
	return nil, nil
}

// ApplyPayoutEvent claims the event and advances the matching PaymentRequest:
// provider success confirms processing→paid, provider failure rolls back
// processing→pending with the rejection reason. Events whose reported state
// would violate the transition table are dropped as anomalies.
func (r *Reconciler) ApplyPayoutEvent(ctx context.Context, ev PayoutEvent) error {
	claimed, err := r.store.ClaimEvent(ctx, ev.Provider, ev.ExternalEventID, ev.EventType)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		metrics.WebhookEventsDropped.WithLabelValues(ev.Provider, "duplicate").Inc()
		return nil
	}

	req, err := r.store.PaymentRequestByExternalRef(ctx, ev.ExternalReference)
	if err != nil {
		return fmt.Errorf("load payment request: %w", err)
	}
	if req == nil {
		return r.dropAnomaly(ctx, ev.Provider, ev.ExternalEventID,
			fmt.Errorf("no payment request for reference %q", ev.ExternalReference))
	}

	if ev.Succeeded {
		now := time.Now()
		ok, err := r.store.TransitionPaymentRequest(ctx, req.ID,
			paymentbridge.StatusProcessing, paymentbridge.StatusPaid,
			map[string]any{"processed_at": &now})
		if err != nil {
			return fmt.Errorf("transition to paid: %w", err)
		}
		if !ok {
			return r.dropAnomaly(ctx, ev.Provider, ev.ExternalEventID,
				fmt.Errorf("paid confirmation for request %s in status %q", req.ID, req.Status))
		}
		if err := r.store.MarkEventProcessed(ctx, ev.Provider, ev.ExternalEventID, nil); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		metrics.WebhookEventsApplied.WithLabelValues(ev.Provider, ev.EventType).Inc()
		r.log.Info("payout confirmed", "request_id", req.ID, "reference", ev.ExternalReference)
		r.notifier.Alert("Payout paid", map[string]any{
			"requestId": req.ID,
			"reference": req.Reference,
			"amount":    req.AmountCents,
			"currency":  req.Currency,
		})
		return nil
	}

	reason := ev.FailureReason
	if reason == "" {
		reason = "provider reported transfer failure"
	}
	ok, err := r.store.TransitionPaymentRequest(ctx, req.ID,
		paymentbridge.StatusProcessing, paymentbridge.StatusPending,
		map[string]any{"rejection_reason": reason})
	if err != nil {
		return fmt.Errorf("rollback to pending: %w", err)
	}
	if !ok {
		return r.dropAnomaly(ctx, ev.Provider, ev.ExternalEventID,
			fmt.Errorf("failure event for request %s in status %q", req.ID, req.Status))
	}
	if err := r.store.MarkEventProcessed(ctx, ev.Provider, ev.ExternalEventID, nil); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	metrics.WebhookEventsApplied.WithLabelValues(ev.Provider, ev.EventType).Inc()
	r.log.Warn("payout failed, rolled back to pending",
		"request_id", req.ID, "reference", ev.ExternalReference, "reason", reason)
	r.notifier.Alert("Payout failed", map[string]any{
		"requestId": req.ID,
		"reference": req.Reference,
		"reason":    reason,
	})
	return nil
}

// dropAnomaly records the event as processed-with-error so redeliveries
// no-op, and alerts operators. The delivery itself is still acknowledged.
func (r *Reconciler) dropAnomaly(ctx context.Context, provider, eventID string, cause error) error {
	metrics.WebhookEventsDropped.WithLabelValues(provider, "anomaly").Inc()
	r.log.Warn("webhook event dropped as anomaly",
		"provider", provider, "event_id", eventID, "cause", cause)
	r.notifier.Alert("Webhook anomaly dropped", map[string]any{
		"provider": provider,
		"eventId":  eventID,
		"cause":    cause.Error(),
	})
	if err := r.store.MarkEventProcessed(ctx, provider, eventID, cause); err != nil {
		return fmt.Errorf("mark anomaly processed: %w", err)
	}
	return nil
}
