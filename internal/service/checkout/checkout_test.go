package checkout

import (
	"context"
	"testing"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/fraud"
	"vauntico-server/internal/infra/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	existing *subscriptions.Subscription
	saved    []*subscriptions.CheckoutSession
}

func (s *fakeStore) SubscriptionByUser(context.Context, uint) (*subscriptions.Subscription, error) {
	return s.existing, nil
}

func (s *fakeStore) SaveCheckoutSession(_ context.Context, cs *subscriptions.CheckoutSession) error {
	s.saved = append(s.saved, cs)
	return nil
}

type fixedGate struct {
	verdict fraud.Verdict
	seen    *fraud.CheckInput
}

func (g *fixedGate) Check(_ context.Context, in fraud.CheckInput) fraud.Verdict {
	g.seen = &in
	return g.verdict
}

type fakeProvider struct {
	name          string
	priceCents    int64
	priceCurrency string
	customerCalls int
	sessionCalls  int
	sessionErr    error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) CheckoutPrice(string) (int64, string) {
	return p.priceCents, p.priceCurrency
}

func (p *fakeProvider) EnsureCustomer(_ context.Context, email string, _ uint) (provider.Customer, error) {
	p.customerCalls++
	return provider.Customer{Ref: "cus_1", Email: email}, nil
}

func (p *fakeProvider) CreateCheckoutSession(context.Context, provider.CheckoutParams) (provider.CheckoutSession, error) {
	p.sessionCalls++
	if p.sessionErr != nil {
		return provider.CheckoutSession{}, p.sessionErr
	}
	return provider.CheckoutSession{
		SessionID:   "cs_test_1",
		URL:         "https://pay.example/cs_test_1",
		AmountCents: 290000,
		Currency:    "NGN",
	}, nil
}

func (p *fakeProvider) InitiatePayout(context.Context, provider.PayoutParams) (provider.PayoutResult, error) {
	return provider.PayoutResult{}, nil
}

func (p *fakeProvider) CancelAtPeriodEnd(context.Context, string) error { return nil }

func newTestInitiator(store *fakeStore, p *fakeProvider, verdict fraud.Verdict) (*Initiator, *fixedGate) {
	reg := provider.NewRegistry(p.name, p.name, p)
	gate := &fixedGate{verdict: verdict}
	return NewInitiator(store, reg, gate, 0, nil), gate
}

func TestInitiate_HappyPath(t *testing.T) {
	store := &fakeStore{}
	p := &fakeProvider{name: subscriptions.ProviderPaystack}
	init, _ := newTestInitiator(store, p, fraud.VerdictForScore(10))

	res, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierCreatorPass,
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_1", res.URL)

	require.Len(t, store.saved, 1)
	audit := store.saved[0]
	assert.Equal(t, "cs_test_1", audit.Reference)
	assert.Equal(t, subscriptions.TierCreatorPass, audit.Tier)
	assert.Equal(t, fraud.RecommendationApprove, audit.FraudVerdict)
}

func TestInitiate_DenyVerdictShortCircuits(t *testing.T) {
	store := &fakeStore{}
	p := &fakeProvider{name: subscriptions.ProviderStripe}
	init, _ := newTestInitiator(store, p, fraud.VerdictForScore(85))

	_, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierCreatorPass,
	})
	var denied *apperrors.AdmissionDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, 85, denied.Score)

	// A denial means zero provider traffic and zero persistence.
	assert.Zero(t, p.customerCalls)
	assert.Zero(t, p.sessionCalls)
	assert.Empty(t, store.saved)
}

func TestInitiate_ReviewVerdictProceedsAndIsRecorded(t *testing.T) {
	store := &fakeStore{}
	p := &fakeProvider{name: subscriptions.ProviderStripe}
	init, _ := newTestInitiator(store, p, fraud.VerdictForScore(65))

	_, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierEnterprise,
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, fraud.RecommendationReview, store.saved[0].FraudVerdict)
	assert.Equal(t, 65, store.saved[0].FraudScore)
}

func TestInitiate_FraudCheckUsesProviderPrice(t *testing.T) {
	store := &fakeStore{}
	p := &fakeProvider{name: subscriptions.ProviderStripe, priceCents: 2900, priceCurrency: "USD"}
	init, gate := newTestInitiator(store, p, fraud.VerdictForScore(10))

	_, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierCreatorPass,
	})
	require.NoError(t, err)

	// The risk payload quotes the selected adapter's price, not a fixed one.
	require.NotNil(t, gate.seen)
	assert.Equal(t, int64(2900), gate.seen.AmountCents)
	assert.Equal(t, "USD", gate.seen.Currency)
}

func TestInitiate_RejectsFreeTier(t *testing.T) {
	store := &fakeStore{}
	p := &fakeProvider{name: subscriptions.ProviderStripe}
	init, _ := newTestInitiator(store, p, fraud.VerdictForScore(0))

	_, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierFree,
	})
	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestInitiate_ActiveSameTierConflicts(t *testing.T) {
	store := &fakeStore{existing: &subscriptions.Subscription{
		UserID: 7,
		Tier:   subscriptions.TierCreatorPass,
		Status: subscriptions.StatusActive,
	}}
	p := &fakeProvider{name: subscriptions.ProviderStripe}
	init, _ := newTestInitiator(store, p, fraud.VerdictForScore(0))

	_, err := init.Initiate(context.Background(), Input{
		UserID: 7, Email: "a@b.c", Tier: subscriptions.TierCreatorPass,
	})
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Zero(t, p.sessionCalls)
}
