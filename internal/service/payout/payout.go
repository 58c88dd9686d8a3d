package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/infra/provider"
	"vauntico-server/internal/metrics"
	"vauntico-server/internal/notify"
)

// Store is the persistence slice the payout flow needs.
type Store interface {
	// PaymentRequestByID returns nil, nil when no row matches.
	PaymentRequestByID(ctx context.Context, id string) (*paymentbridge.PaymentRequest, error)

	// TransitionPaymentRequest applies updates plus the status change only if
	// the row is still in `from`. Returns false when the predicate missed.
	TransitionPaymentRequest(ctx context.Context, id, from, to string, updates map[string]any) (bool, error)
}

// Processor drives the admin payout flow: claim the request, call the
// processor, and compensate on failure. The synchronous provider result never
// marks a request paid; only the transfer webhook does.
type Processor struct {
	store    Store
	registry *provider.Registry
	notifier notify.Notifier
	log      *slog.Logger
}

func NewProcessor(store Store, registry *provider.Registry, notifier notify.Notifier, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{store: store, registry: registry, notifier: notifier, log: log}
}

// Trigger initiates the payout for a pending request. Exactly one concurrent
// caller wins the pending to processing claim; everyone else gets a conflict.
func (p *Processor) Trigger(ctx context.Context, requestID string) (*paymentbridge.PaymentRequest, error) {
	req, err := p.store.PaymentRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load payment request: %w", err)
	}
	if req == nil {
		return nil, &apperrors.ValidationError{Msg: fmt.Sprintf("payment request %s not found", requestID)}
	}
	if req.RequestType != paymentbridge.TypePayout {
		return nil, &apperrors.ValidationError{Msg: fmt.Sprintf("request %s is not a payout", requestID)}
	}

	claimed, err := p.store.TransitionPaymentRequest(ctx, req.ID,
		paymentbridge.StatusPending, paymentbridge.StatusProcessing,
		map[string]any{"processed_at": time.Now()})
	if err != nil {
		return nil, fmt.Errorf("claim payout: %w", err)
	}
	if !claimed {
		return nil, &apperrors.ConflictError{Msg: fmt.Sprintf("payment request %s is not pending", requestID)}
	}
	metrics.PayoutsInitiated.Inc()

	prov, err := p.registry.ForPayout()
	if err != nil {
		return nil, p.rollback(ctx, req, fmt.Sprintf("no payout provider configured: %v", err), err)
	}

	// The fee was charged on top at creation; the creator's transfer is the
	// full requested amount.
	result, err := prov.InitiatePayout(ctx, provider.PayoutParams{
		Reference:          req.Reference,
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		BankAccountDetails: req.BankAccountDetails,
		Reason:             fmt.Sprintf("Creator payout %s", req.Reference),
	})
	if err != nil {
		return nil, p.rollback(ctx, req, err.Error(), err)
	}

	// Store the provider's reference so the transfer webhook can correlate.
	// Status stays processing until the webhook confirms or fails it.
	if _, uerr := p.store.TransitionPaymentRequest(ctx, req.ID,
		paymentbridge.StatusProcessing, paymentbridge.StatusProcessing,
		map[string]any{"external_reference": result.Reference}); uerr != nil {
		p.log.Error("failed to record transfer reference",
			"request_id", req.ID, "reference", result.Reference, "error", uerr)
	}

	p.log.Info("payout initiated",
		"request_id", req.ID, "reference", req.Reference, "transfer_ref", result.Reference)
	p.notifier.Alert("Payout initiated", map[string]any{
		"requestId": req.ID,
		"reference": req.Reference,
		"amount":    req.AmountCents,
		"currency":  req.Currency,
	})

	updated, err := p.store.PaymentRequestByID(ctx, req.ID)
	if err != nil || updated == nil {
		return req, nil
	}
	return updated, nil
}

// rollback compensates a failed provider call: the claimed request goes back
// to pending with the failure recorded, so an admin can retry later.
func (p *Processor) rollback(ctx context.Context, req *paymentbridge.PaymentRequest, reason string, cause error) error {
	metrics.PayoutsFailed.Inc()
	ok, err := p.store.TransitionPaymentRequest(ctx, req.ID,
		paymentbridge.StatusProcessing, paymentbridge.StatusPending,
		map[string]any{"rejection_reason": reason})
	if err != nil {
		p.log.Error("payout rollback failed, request stuck in processing",
			"request_id", req.ID, "error", err)
	} else if !ok {
		p.log.Error("payout rollback missed, request no longer processing",
			"request_id", req.ID)
	}
	p.log.Warn("payout provider call failed, rolled back to pending",
		"request_id", req.ID, "reason", reason)
	p.notifier.Alert("Payout failed", map[string]any{
		"requestId": req.ID,
		"reference": req.Reference,
		"reason":    reason,
	})
	return cause
}
