package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

const (
	stripeSecret   = "whsec_test"
	paystackSecret = "sk_test_secret"
)

type capturingApplier struct {
	subEvents    []reconcile.SubscriptionEvent
	payoutEvents []reconcile.PayoutEvent
	err          error
}

func (a *capturingApplier) ApplySubscriptionEvent(_ context.Context, ev reconcile.SubscriptionEvent) error {
	a.subEvents = append(a.subEvents, ev)
	return a.err
}

func (a *capturingApplier) ApplyPayoutEvent(_ context.Context, ev reconcile.PayoutEvent) error {
	a.payoutEvents = append(a.payoutEvents, ev)
	return a.err
}

type fakeSessionStore struct {
	sessions map[string]*subscriptions.CheckoutSession
}

func (s *fakeSessionStore) CheckoutSessionByReference(_ context.Context, ref string) (*subscriptions.CheckoutSession, error) {
	if cs, ok := s.sessions[ref]; ok {
		return cs, nil
	}
	return nil, nil
}

func newTestRouter(applier *capturingApplier, store *fakeSessionStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if store == nil {
		store = &fakeSessionStore{}
	}
	h := NewHandler(applier, store,
		stripeSecret, func(string) string { return subscriptions.TierCreatorPass },
		paystackSecret, func(string) string { return subscriptions.TierEnterprise },
		nil)
	r := gin.New()
	r.POST("/stripe/webhooks", h.Stripe)
	r.POST("/subscriptions/webhook/paystack", h.Paystack)
	return r
}

func postStripe(r *gin.Engine, payload []byte, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhooks", bytes.NewReader(payload))
	if signed {
		now := time.Now()
		sig := webhook.ComputeSignature(now, payload, stripeSecret)
		req.Header.Set("Stripe-Signature",
			fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postPaystack(r *gin.Engine, payload []byte, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions/webhook/paystack", bytes.NewReader(payload))
	if signed {
		mac := hmac.New(sha512.New, []byte(paystackSecret))
		mac.Write(payload)
		req.Header.Set("x-paystack-signature", hex.EncodeToString(mac.Sum(nil)))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripe_BadSignatureRejectedWithoutMutation(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	w := postStripe(r, []byte(`{"type":"customer.subscription.updated"}`), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, applier.subEvents)
	assert.Empty(t, applier.payoutEvents)
}

func TestStripe_SubscriptionUpdated(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_9",
			"status": "past_due",
			"cancel_at_period_end": false,
			"current_period_end": 1767225600,
			"metadata": {"user_id": "42"},
			"customer": {"id": "cus_9"}
		}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	ev := applier.subEvents[0]
	assert.Equal(t, subscriptions.ProviderStripe, ev.Provider)
	assert.Equal(t, "evt_1", ev.ExternalEventID)
	assert.Equal(t, uint(42), ev.UserID)
	assert.Equal(t, "sub_9", ev.ProviderSubscriptionRef)
	assert.Equal(t, "past_due", ev.ProviderStatus)
	require.NotNil(t, ev.CurrentPeriodEnd)
}

func TestStripe_SubscriptionDeletedForcesCanceled(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_9", "status": "active", "metadata": {"user_id": "42"}}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, applier.subEvents, 1)
	assert.Equal(t, "canceled", applier.subEvents[0].ProviderStatus)
}

func TestStripe_CheckoutCompletedUsesAuditRow(t *testing.T) {
	applier := &capturingApplier{}
	store := &fakeSessionStore{sessions: map[string]*subscriptions.CheckoutSession{
		"cs_1": {UserID: 7, Tier: subscriptions.TierEnterprise, Reference: "cs_1"},
	}}
	r := newTestRouter(applier, store)

	payload := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "payment_status": "paid", "subscription": {"id": "sub_1"}, "customer": {"id": "cus_1"}}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	ev := applier.subEvents[0]
	assert.Equal(t, uint(7), ev.UserID)
	assert.Equal(t, subscriptions.TierEnterprise, ev.Tier)
	assert.Equal(t, "active", ev.ProviderStatus)
}

func TestStripe_UnpaidCheckoutStartsIncomplete(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_3b",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "payment_status": "unpaid", "client_reference_id": "7"}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	assert.Equal(t, "incomplete", applier.subEvents[0].ProviderStatus)
}

func TestStripe_CheckoutUsesEmbeddedSubscriptionStatus(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_3c",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_3", "payment_status": "unpaid", "subscription": {"id": "sub_3", "status": "trialing"}}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	assert.Equal(t, "trialing", applier.subEvents[0].ProviderStatus)
}

func TestStripe_TransferCreatedConfirmsPayout(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_6",
		"type": "transfer.created",
		"data": {"object": {"id": "tr_1", "transfer_group": "PAYREQ_1"}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.payoutEvents, 1)
	ev := applier.payoutEvents[0]
	assert.True(t, ev.Succeeded)
	assert.Equal(t, "PAYREQ_1", ev.ExternalReference,
		"the transfer group is the payment reference written at initiation")
}

func TestStripe_TransferReversedFailsPayout(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_7",
		"type": "transfer.reversed",
		"data": {"object": {"id": "tr_1"}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.payoutEvents, 1)
	ev := applier.payoutEvents[0]
	assert.False(t, ev.Succeeded)
	assert.Equal(t, "tr_1", ev.ExternalReference)
	assert.NotEmpty(t, ev.FailureReason)
}

func TestStripe_ProcessingErrorStillAcknowledged(t *testing.T) {
	applier := &capturingApplier{err: assert.AnError}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"id": "evt_4",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_9", "status": "active", "metadata": {"user_id": "42"}}}
	}`)
	w := postStripe(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code, "verified deliveries are never re-requested")
}

func TestStripe_UnhandledEventIgnored(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	w := postStripe(r, []byte(`{"id":"evt_5","type":"customer.created","data":{"object":{}}}`), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, applier.subEvents)
}

func TestPaystack_BadSignatureRejected(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	w := postPaystack(r, []byte(`{"event":"charge.success","data":{}}`), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, applier.subEvents)
}

func TestPaystack_SubscriptionDisable(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"event": "subscription.disable",
		"data": {
			"subscription_code": "SUB_x1",
			"status": "cancelled",
			"customer": {"customer_code": "CUS_x1", "email": "a@b.c"},
			"plan": {"plan_code": "PLN_ent"},
			"metadata": {"user_id": "9"}
		}
	}`)
	w := postPaystack(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	ev := applier.subEvents[0]
	assert.Equal(t, subscriptions.ProviderPaystack, ev.Provider)
	assert.Equal(t, "canceled", ev.ProviderStatus)
	assert.Equal(t, "SUB_x1", ev.ProviderSubscriptionRef)
	assert.Equal(t, uint(9), ev.UserID)
	assert.NotEmpty(t, ev.ExternalEventID, "digest fallback must produce a dedupe key")
}

func TestPaystack_NotRenewSetsCancelAtPeriodEnd(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"event": "subscription.not_renew",
		"data": {
			"subscription_code": "SUB_x1",
			"status": "non-renewing",
			"customer": {"customer_code": "CUS_x1"},
			"metadata": {"user_id": "9"}
		}
	}`)
	w := postPaystack(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.subEvents, 1)
	ev := applier.subEvents[0]
	assert.Equal(t, "active", ev.ProviderStatus)
	require.NotNil(t, ev.CancelAtPeriodEnd)
	assert.True(t, *ev.CancelAtPeriodEnd)
}

func TestPaystack_TransferFailed(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"event": "transfer.failed",
		"data": {"reference": "TRF_1", "transfer_code": "TRF_1", "status": "failed"}
	}`)
	w := postPaystack(r, payload, true)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.payoutEvents, 1)
	ev := applier.payoutEvents[0]
	assert.False(t, ev.Succeeded)
	assert.Equal(t, "TRF_1", ev.ExternalReference)
	assert.NotEmpty(t, ev.FailureReason)
}

func TestPaystack_IdenticalRedeliveryKeepsSameEventID(t *testing.T) {
	applier := &capturingApplier{}
	r := newTestRouter(applier, nil)

	payload := []byte(`{
		"event": "charge.success",
		"data": {"reference": "ref_1", "customer": {"customer_code": "CUS_1"}, "metadata": {"user_id": "3"}}
	}`)
	postPaystack(r, payload, true)
	postPaystack(r, payload, true)

	require.Len(t, applier.subEvents, 2)
	assert.Equal(t, applier.subEvents[0].ExternalEventID, applier.subEvents[1].ExternalEventID,
		"the claim layer depends on a stable identifier per payload")
}
