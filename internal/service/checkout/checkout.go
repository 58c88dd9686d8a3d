package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/fraud"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/metrics"
)

// Store persists the pre-transition audit trail of checkout initiations.
type Store interface {
	SubscriptionByUser(ctx context.Context, userID uint) (*subscriptions.Subscription, error)
	SaveCheckoutSession(ctx context.Context, cs *subscriptions.CheckoutSession) error
}

// Input is one checkout initiation request, already authenticated.
type Input struct {
	UserID    uint
	Email     string
	Tier      string
	Provider  string // empty means the configured default
	TrialDays int
	IP        string
	UserAgent string
}

// Result is what the client needs to hand off to the provider's hosted page.
type Result struct {
	Provider    string
	SessionID   string
	URL         string
	Reference   string
	AmountCents int64
	Currency    string
}

// Initiator runs the checkout sequence: fraud gate, customer resolution,
// provider session, audit record. It never writes a Subscription row; only
// the completion webhook does that.
type Initiator struct {
	store     Store
	registry  *provider.Registry
	gate      fraud.Gate
	trialDays int
	log       *slog.Logger
}

func NewInitiator(store Store, registry *provider.Registry, gate fraud.Gate, trialDays int, log *slog.Logger) *Initiator {
	if log == nil {
		log = slog.Default()
	}
	return &Initiator{store: store, registry: registry, gate: gate, trialDays: trialDays, log: log}
}

func (i *Initiator) Initiate(ctx context.Context, in Input) (*Result, error) {
	if !subscriptions.IsPaidTier(in.Tier) {
		return nil, &apperrors.ValidationError{Msg: fmt.Sprintf("tier %q is not purchasable", in.Tier)}
	}

	if existing, err := i.store.SubscriptionByUser(ctx, in.UserID); err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	} else if existing != nil && existing.Status == subscriptions.StatusActive && existing.Tier == in.Tier {
		return nil, &apperrors.ConflictError{Msg: "subscription for this tier is already active"}
	}

	p, err := i.registry.ForCheckout(in.Provider)
	if err != nil {
		return nil, &apperrors.ValidationError{Msg: err.Error()}
	}
	amountCents, currency := p.CheckoutPrice(in.Tier)

	// The fraud gate runs before any provider call. A denial means zero
	// provider traffic for this attempt.
	verdict := i.gate.Check(ctx, fraud.CheckInput{
		UserID:      in.UserID,
		AmountCents: amountCents,
		Currency:    currency,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
	})
	if verdict.Denied() {
		metrics.CheckoutsDenied.Inc()
		i.log.Warn("checkout denied by fraud gate",
			"user_id", in.UserID, "tier", in.Tier, "score", verdict.Score)
		return nil, &apperrors.AdmissionDenied{Score: verdict.Score, Recommendation: verdict.Recommendation}
	}
	if verdict.Recommendation == fraud.RecommendationReview {
		i.log.Warn("checkout flagged for review, proceeding",
			"user_id", in.UserID, "tier", in.Tier, "score", verdict.Score)
	}

	cust, err := p.EnsureCustomer(ctx, in.Email, in.UserID)
	if err != nil {
		return nil, err
	}

	trialDays := in.TrialDays
	if trialDays == 0 {
		trialDays = i.trialDays
	}
	session, err := p.CreateCheckoutSession(ctx, provider.CheckoutParams{
		UserID:    in.UserID,
		Email:     in.Email,
		Tier:      in.Tier,
		TrialDays: trialDays,
		Customer:  cust,
	})
	if err != nil {
		return nil, err
	}

	audit := &subscriptions.CheckoutSession{
		UserID:       in.UserID,
		Provider:     p.Name(),
		Tier:         in.Tier,
		Reference:    session.SessionID,
		AmountCents:  session.AmountCents,
		Currency:     session.Currency,
		FraudScore:   verdict.Score,
		FraudVerdict: verdict.Recommendation,
	}
	if err := i.store.SaveCheckoutSession(ctx, audit); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	metrics.CheckoutsInitiated.WithLabelValues(p.Name(), in.Tier).Inc()
	i.log.Info("checkout initiated",
		"user_id", in.UserID, "provider", p.Name(), "tier", in.Tier, "reference", session.SessionID)

	return &Result{
		Provider:    p.Name(),
		SessionID:   session.SessionID,
		URL:         session.URL,
		Reference:   session.SessionID,
		AmountCents: session.AmountCents,
		Currency:    session.Currency,
	}, nil
}
