package webhooks

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/service/reconcile"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 65536

// Applier folds verified provider events into canonical state.
type Applier interface {
	ApplySubscriptionEvent(ctx context.Context, ev reconcile.SubscriptionEvent) error
	ApplyPayoutEvent(ctx context.Context, ev reconcile.PayoutEvent) error
}

// SessionStore resolves checkout-completion events back to the audit row
// written at initiation time.
type SessionStore interface {
	CheckoutSessionByReference(ctx context.Context, reference string) (*subscriptions.CheckoutSession, error)
}

// Handler terminates both providers' webhook endpoints. Signature
// verification happens on the raw body before any parsing; after the
// signature passes, the delivery is always acknowledged with 200 so the
// provider stops retrying, and failures surface through logs and alerts.
type Handler struct {
	applier Applier
	store   SessionStore
	log     *slog.Logger

	stripeWebhookSecret string
	stripeTierForPrice  func(priceID string) string

	paystackSecret  string
	paystackTierFor func(planCode string) string
}

func NewHandler(
	applier Applier,
	store SessionStore,
	stripeWebhookSecret string,
	stripeTierForPrice func(string) string,
	paystackSecret string,
	paystackTierForPlan func(string) string,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		applier:             applier,
		store:               store,
		log:                 log,
		stripeWebhookSecret: stripeWebhookSecret,
		stripeTierForPrice:  stripeTierForPrice,
		paystackSecret:      paystackSecret,
		paystackTierFor:     paystackTierForPlan,
	}
}

// ack acknowledges a verified delivery. Processing errors are logged, never
// surfaced as retryable HTTP failures.
func (h *Handler) ack(c *gin.Context, provider string, err error) {
	if err != nil {
		h.log.Error("webhook processing failed", "provider", provider, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// parseUserID reads the user identifier providers echo back in metadata or
// reference fields. Zero means the event named no user.
func parseUserID(s string) uint {
	if s == "" {
		return 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
