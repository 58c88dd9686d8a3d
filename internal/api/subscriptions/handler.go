package subscriptions

import (
	"context"
	"errors"
	"net/http"

	"vauntico-server/internal/apperrors"
	subs "vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

// Store is the persistence slice the subscription endpoints need.
type Store interface {
	SubscriptionByUser(ctx context.Context, userID uint) (*subs.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, userID uint, flag bool) error
}

// Handler serves the authenticated subscription endpoints.
type Handler struct {
	initiator *checkout.Initiator
	store     Store
	registry  *provider.Registry
}

func NewHandler(initiator *checkout.Initiator, store Store, registry *provider.Registry) *Handler {
	return &Handler{initiator: initiator, store: store, registry: registry}
}

type checkoutRequest struct {
	Tier      string `json:"tier" binding:"required"`
	Provider  string `json:"provider" binding:"omitempty,oneof=stripe paystack"`
	TrialDays int    `json:"trialDays" binding:"omitempty,min=1,max=90"`
}

// Checkout handles POST /subscriptions/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	var input checkoutRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.initiator.Initiate(c.Request.Context(), checkout.Input{
		UserID:    c.GetUint("user_id"),
		Email:     c.GetString("email"),
		Tier:      input.Tier,
		Provider:  input.Provider,
		TrialDays: input.TrialDays,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":    res.Provider,
		"sessionId":   res.SessionID,
		"url":         res.URL,
		"reference":   res.Reference,
		"amountCents": res.AmountCents,
		"currency":    res.Currency,
	})
}

// Status handles GET /subscriptions/status. Users without a subscription row
// are reported on the free tier rather than 404ed.
func (h *Handler) Status(c *gin.Context) {
	userID := c.GetUint("user_id")
	sub, err := h.store.SubscriptionByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	if sub == nil || sub.Status == subs.StatusCanceled {
		tier := subs.TierFree
		c.JSON(http.StatusOK, gin.H{
			"tier":   tier,
			"status": "none",
			"limits": subs.LimitsForTier(tier),
		})
		return
	}

	tier := sub.Tier
	if sub.Status != subs.StatusActive {
		// Past-due and incomplete subscriptions keep their tier label but
		// grant only free-tier limits until payment recovers.
		tier = subs.TierFree
	}
	c.JSON(http.StatusOK, gin.H{
		"tier":              sub.Tier,
		"status":            sub.Status,
		"provider":          sub.Provider,
		"currentPeriodEnd":  sub.CurrentPeriodEnd,
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		"limits":            subs.LimitsForTier(tier),
	})
}

// Cancel handles POST /subscriptions/cancel: flag the row, ask the provider
// to stop renewing. The status stays active until the provider's webhook
// reports the actual cancellation.
func (h *Handler) Cancel(c *gin.Context) {
	userID := c.GetUint("user_id")
	ctx := c.Request.Context()

	sub, err := h.store.SubscriptionByUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}
	if sub == nil || sub.Status == subs.StatusCanceled {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active subscription"})
		return
	}

	if sub.ProviderSubscriptionRef != "" {
		p, err := h.registry.Get(sub.Provider)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := p.CancelAtPeriodEnd(ctx, sub.ProviderSubscriptionRef); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.store.SetCancelAtPeriodEnd(ctx, userID, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to flag cancellation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "subscription will not renew",
		"cancelAtPeriodEnd": true,
		"currentPeriodEnd":  sub.CurrentPeriodEnd,
	})
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	var denied *apperrors.AdmissionDenied
	if errors.As(err, &denied) {
		c.JSON(status, gin.H{"error": denied.Error(), "recommendation": denied.Recommendation})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
