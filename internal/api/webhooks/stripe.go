package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/metrics"
	"vauntico-server/internal/service/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// Stripe handles POST /stripe/webhooks.
func (h *Handler) Stripe(c *gin.Context) {
	payload, err := readBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.stripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(subscriptions.ProviderStripe, "rejected").Inc()
		h.log.Warn("stripe signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}
	metrics.WebhooksReceived.WithLabelValues(subscriptions.ProviderStripe, "verified").Inc()

	ctx := c.Request.Context()
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.ack(c, subscriptions.ProviderStripe, err)
			return
		}
		h.ack(c, subscriptions.ProviderStripe,
			h.applier.ApplySubscriptionEvent(ctx, h.checkoutCompletedEvent(c, event.ID, &session)))

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.ack(c, subscriptions.ProviderStripe, err)
			return
		}
		ev := h.subscriptionEvent(event.ID, string(event.Type), &sub)
		if event.Type == "customer.subscription.deleted" {
			ev.ProviderStatus = "canceled"
		}
		h.ack(c, subscriptions.ProviderStripe, h.applier.ApplySubscriptionEvent(ctx, ev))

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			h.ack(c, subscriptions.ProviderStripe, err)
			return
		}
		status := "active"
		if event.Type == "invoice.payment_failed" {
			status = "past_due"
		}
		ev := reconcile.SubscriptionEvent{
			Provider:        subscriptions.ProviderStripe,
			ExternalEventID: event.ID,
			EventType:       string(event.Type),
			ProviderStatus:  status,
		}
		if inv.Subscription != nil {
			ev.ProviderSubscriptionRef = inv.Subscription.ID
		}
		if inv.Customer != nil {
			ev.ProviderCustomerRef = inv.Customer.ID
		}
		h.ack(c, subscriptions.ProviderStripe, h.applier.ApplySubscriptionEvent(ctx, ev))

	case "transfer.created", "transfer.reversed":
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			h.ack(c, subscriptions.ProviderStripe, err)
			return
		}
		// The transfer group carries our payment reference from initiation,
		// so it correlates even when the transfer ID was never recorded.
		reference := tr.TransferGroup
		if reference == "" {
			reference = tr.ID
		}
		ev := reconcile.PayoutEvent{
			Provider:          subscriptions.ProviderStripe,
			ExternalEventID:   event.ID,
			EventType:         string(event.Type),
			ExternalReference: reference,
			Succeeded:         event.Type == "transfer.created",
		}
		if !ev.Succeeded {
			ev.FailureReason = "transfer reversed"
		}
		h.ack(c, subscriptions.ProviderStripe, h.applier.ApplyPayoutEvent(ctx, ev))

	default:
		metrics.WebhookEventsDropped.WithLabelValues(subscriptions.ProviderStripe, "unhandled").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// checkoutCompletedEvent correlates a completed hosted-checkout session with
// the audit row written at initiation.
func (h *Handler) checkoutCompletedEvent(c *gin.Context, eventID string, session *stripe.CheckoutSession) reconcile.SubscriptionEvent {
	ev := reconcile.SubscriptionEvent{
		Provider:        subscriptions.ProviderStripe,
		ExternalEventID: eventID,
		EventType:       "checkout.session.completed",
		UserID:          parseUserID(session.ClientReferenceID),
		ProviderStatus:  checkoutSessionStatus(session),
	}
	if session.Customer != nil {
		ev.ProviderCustomerRef = session.Customer.ID
	}
	if session.Subscription != nil {
		ev.ProviderSubscriptionRef = session.Subscription.ID
	}
	if audit, err := h.store.CheckoutSessionByReference(c.Request.Context(), session.ID); err == nil && audit != nil {
		ev.Tier = audit.Tier
		if ev.UserID == 0 {
			ev.UserID = audit.UserID
		}
	}
	return ev
}

func (h *Handler) subscriptionEvent(eventID, eventType string, sub *stripe.Subscription) reconcile.SubscriptionEvent {
	ev := reconcile.SubscriptionEvent{
		Provider:                subscriptions.ProviderStripe,
		ExternalEventID:         eventID,
		EventType:               eventType,
		UserID:                  parseUserID(sub.Metadata["user_id"]),
		ProviderSubscriptionRef: sub.ID,
		ProviderStatus:          string(sub.Status),
		CancelAtPeriodEnd:       &sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		ev.ProviderCustomerRef = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0)
		ev.CurrentPeriodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		ev.CurrentPeriodEnd = &t
	}
	if tier, ok := sub.Metadata["tier"]; ok && tier != "" {
		ev.Tier = tier
	} else if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.Tier = h.stripeTierForPrice(sub.Items.Data[0].Price.ID)
	}
	return ev
}

// checkoutSessionStatus reports the provider status a completed session
// proves. An unpaid session starts the row as incomplete; later subscription
// events move it forward.
func checkoutSessionStatus(session *stripe.CheckoutSession) string {
	if session.Subscription != nil && session.Subscription.Status != "" {
		return string(session.Subscription.Status)
	}
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return "active"
	default:
		return "incomplete"
	}
}

func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
