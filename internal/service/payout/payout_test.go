package payout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	requests map[string]*paymentbridge.PaymentRequest
}

func newFakeStore(reqs ...*paymentbridge.PaymentRequest) *fakeStore {
	s := &fakeStore{requests: map[string]*paymentbridge.PaymentRequest{}}
	for _, r := range reqs {
		s.requests[r.ID] = r
	}
	return s
}

func (s *fakeStore) PaymentRequestByID(_ context.Context, id string) (*paymentbridge.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) TransitionPaymentRequest(_ context.Context, id, from, to string, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	if ref, ok := updates["external_reference"].(string); ok {
		req.ExternalReference = &ref
	}
	if reason, ok := updates["rejection_reason"].(string); ok {
		req.RejectionReason = &reason
	}
	return true, nil
}

type payoutProvider struct {
	err    error
	calls  int
	params provider.PayoutParams
}

func (p *payoutProvider) Name() string { return "paystack" }

func (p *payoutProvider) CheckoutPrice(string) (int64, string) { return 0, "NGN" }

func (p *payoutProvider) EnsureCustomer(context.Context, string, uint) (provider.Customer, error) {
	return provider.Customer{}, nil
}

func (p *payoutProvider) CreateCheckoutSession(context.Context, provider.CheckoutParams) (provider.CheckoutSession, error) {
	return provider.CheckoutSession{}, nil
}

func (p *payoutProvider) InitiatePayout(_ context.Context, params provider.PayoutParams) (provider.PayoutResult, error) {
	p.calls++
	p.params = params
	if p.err != nil {
		return provider.PayoutResult{}, p.err
	}
	return provider.PayoutResult{Reference: "TRF_42", TransferCode: "TRF_42"}, nil
}

func (p *payoutProvider) CancelAtPeriodEnd(context.Context, string) error { return nil }

func pendingRequest() *paymentbridge.PaymentRequest {
	return &paymentbridge.PaymentRequest{
		ID:                 "req-1",
		CreatorID:          9,
		RequestType:        paymentbridge.TypePayout,
		AmountCents:        100000,
		Currency:           "NGN",
		ProcessingFeeCents: 10000,
		Status:             paymentbridge.StatusPending,
		Reference:          "PAYREQ_1",
		BankAccountDetails: `{"account_number":"0001112223","bank_code":"058","account_name":"A Creator"}`,
	}
}

func newProcessor(store Store, p *payoutProvider) *Processor {
	reg := provider.NewRegistry("paystack", "paystack", p)
	return NewProcessor(store, reg, notify.NopNotifier{}, nil)
}

func TestTrigger_ClaimsAndInitiates(t *testing.T) {
	store := newFakeStore(pendingRequest())
	prov := &payoutProvider{}
	proc := newProcessor(store, prov)

	req, err := proc.Trigger(context.Background(), "req-1")
	require.NoError(t, err)

	// Still processing: only the transfer webhook may mark it paid.
	assert.Equal(t, paymentbridge.StatusProcessing, req.Status)
	require.NotNil(t, req.ExternalReference)
	assert.Equal(t, "TRF_42", *req.ExternalReference)

	// The fee was charged on top at creation, so the transfer carries the
	// full requested amount.
	assert.Equal(t, int64(100000), prov.params.AmountCents)
	assert.Equal(t, "PAYREQ_1", prov.params.Reference)
}

func TestTrigger_SecondCallerGetsConflict(t *testing.T) {
	store := newFakeStore(pendingRequest())
	prov := &payoutProvider{}
	proc := newProcessor(store, prov)

	_, err := proc.Trigger(context.Background(), "req-1")
	require.NoError(t, err)

	_, err = proc.Trigger(context.Background(), "req-1")
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, prov.calls, "a claimed request must not reach the provider twice")
}

func TestTrigger_ProviderFailureRollsBackToPending(t *testing.T) {
	store := newFakeStore(pendingRequest())
	prov := &payoutProvider{err: errors.New("transfer rejected")}
	proc := newProcessor(store, prov)

	_, err := proc.Trigger(context.Background(), "req-1")
	require.Error(t, err)

	req, _ := store.PaymentRequestByID(context.Background(), "req-1")
	assert.Equal(t, paymentbridge.StatusPending, req.Status, "failed payout must be retryable")
	require.NotNil(t, req.RejectionReason)
	assert.Contains(t, *req.RejectionReason, "transfer rejected")
}

func TestTrigger_RejectsNonPayoutRequest(t *testing.T) {
	bridge := pendingRequest()
	bridge.RequestType = paymentbridge.TypeBridge
	store := newFakeStore(bridge)
	proc := newProcessor(store, &payoutProvider{})

	_, err := proc.Trigger(context.Background(), "req-1")
	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestTrigger_UnknownRequest(t *testing.T) {
	proc := newProcessor(newFakeStore(), &payoutProvider{})
	_, err := proc.Trigger(context.Background(), "missing")
	var validation *apperrors.ValidationError
	require.ErrorAs(t, err, &validation)
}
