package reconcile

import (
	"context"

	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/domain/subscriptions"
)

// Store provides the persistence operations the reconciler needs. The
// database row is the single source of truth; every mutation goes through a
// conditional predicate, never through optimistic in-memory state.
type Store interface {
	// ClaimEvent atomically records a (provider, externalEventID) delivery.
	// Returns true only for the call that won the insert; losers of a
	// concurrent duplicate delivery get false.
	ClaimEvent(ctx context.Context, provider, externalEventID, eventType string) (bool, error)

	// MarkEventProcessed stamps processed_at on a claimed event, storing the
	// processing error when the event was dropped as an anomaly.
	MarkEventProcessed(ctx context.Context, provider, externalEventID string, procErr error) error

	// SubscriptionByUser returns nil, nil when the user has no subscription row.
	SubscriptionByUser(ctx context.Context, userID uint) (*subscriptions.Subscription, error)

	// SubscriptionByProviderRef returns nil, nil when no row matches.
	SubscriptionByProviderRef(ctx context.Context, provider, subscriptionRef string) (*subscriptions.Subscription, error)

	// UpsertSubscription writes the row keyed by user_id, overwriting fields
	// in place (one Subscription per user).
	UpsertSubscription(ctx context.Context, sub *subscriptions.Subscription) error

	// PaymentRequestByExternalRef returns nil, nil when no row matches.
	PaymentRequestByExternalRef(ctx context.Context, externalRef string) (*paymentbridge.PaymentRequest, error)

	// TransitionPaymentRequest applies updates plus the status change only if
	// the row is still in `from`. Returns false when the predicate missed.
	TransitionPaymentRequest(ctx context.Context, id, from, to string, updates map[string]any) (bool, error)

	// CheckoutSessionByReference returns nil, nil when no audit row matches.
	CheckoutSessionByReference(ctx context.Context, reference string) (*subscriptions.CheckoutSession, error)
}
