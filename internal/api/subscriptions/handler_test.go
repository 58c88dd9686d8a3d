package subscriptions

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	subs "vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/fraud"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/service/checkout"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{}

func (fakeStore) SubscriptionByUser(context.Context, uint) (*subs.Subscription, error) {
	return nil, nil
}

func (fakeStore) SetCancelAtPeriodEnd(context.Context, uint, bool) error { return nil }

func (fakeStore) SaveCheckoutSession(context.Context, *subs.CheckoutSession) error { return nil }

type capturingProvider struct {
	params provider.CheckoutParams
}

func (p *capturingProvider) Name() string { return subs.ProviderPaystack }

func (p *capturingProvider) CheckoutPrice(string) (int64, string) { return 250000, "NGN" }

func (p *capturingProvider) EnsureCustomer(context.Context, string, uint) (provider.Customer, error) {
	return provider.Customer{Ref: "CUS_1"}, nil
}

func (p *capturingProvider) CreateCheckoutSession(_ context.Context, params provider.CheckoutParams) (provider.CheckoutSession, error) {
	p.params = params
	return provider.CheckoutSession{
		SessionID:   "ref_1",
		URL:         "https://pay.example/ref_1",
		AmountCents: 250000,
		Currency:    "NGN",
	}, nil
}

func (p *capturingProvider) InitiatePayout(context.Context, provider.PayoutParams) (provider.PayoutResult, error) {
	return provider.PayoutResult{}, nil
}

func (p *capturingProvider) CancelAtPeriodEnd(context.Context, string) error { return nil }

type allowGate struct{}

func (allowGate) Check(context.Context, fraud.CheckInput) fraud.Verdict {
	return fraud.VerdictForScore(5)
}

func newCheckoutRouter(p *capturingProvider, defaultTrialDays int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reg := provider.NewRegistry(p.Name(), p.Name(), p)
	initiator := checkout.NewInitiator(fakeStore{}, reg, allowGate{}, defaultTrialDays, nil)
	h := NewHandler(initiator, fakeStore{}, reg)

	r := gin.New()
	r.POST("/subscriptions/checkout", func(c *gin.Context) {
		c.Set("user_id", uint(7))
		c.Set("email", "a@b.c")
	}, h.Checkout)
	return r
}

func postCheckout(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckout_TrialDaysFromBodyReachesProvider(t *testing.T) {
	p := &capturingProvider{}
	r := newCheckoutRouter(p, 14)

	w := postCheckout(r, `{"tier":"creator_pass","trialDays":30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 30, p.params.TrialDays)
}

func TestCheckout_OmittedTrialDaysFallsBackToDefault(t *testing.T) {
	p := &capturingProvider{}
	r := newCheckoutRouter(p, 14)

	w := postCheckout(r, `{"tier":"creator_pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 14, p.params.TrialDays)
}

func TestCheckout_RejectsOutOfRangeTrialDays(t *testing.T) {
	p := &capturingProvider{}
	r := newCheckoutRouter(p, 14)

	w := postCheckout(r, `{"tier":"creator_pass","trialDays":365}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
