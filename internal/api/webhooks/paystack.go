package webhooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/paystack"
	"vauntico-server/internal/metrics"
	"vauntico-server/internal/service/reconcile"

	"github.com/gin-gonic/gin"
)

// paystackEnvelope is the common wrapper of every Paystack webhook delivery.
type paystackEnvelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type paystackSubscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	Status           string `json:"status"`
	NextPaymentDate  string `json:"next_payment_date"`
	Customer         struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
	Plan struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Metadata map[string]string `json:"metadata"`
}

type paystackChargeData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Customer  struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
	Plan struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Metadata map[string]string `json:"metadata"`
}

type paystackTransferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

// Paystack handles POST /subscriptions/webhook/paystack.
func (h *Handler) Paystack(c *gin.Context) {
	payload, err := readBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error reading request body"})
		return
	}

	if !paystack.VerifySignature(payload, c.GetHeader("x-paystack-signature"), h.paystackSecret) {
		metrics.WebhooksReceived.WithLabelValues(subscriptions.ProviderPaystack, "rejected").Inc()
		h.log.Warn("paystack signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}
	metrics.WebhooksReceived.WithLabelValues(subscriptions.ProviderPaystack, "verified").Inc()

	var env paystackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.ack(c, subscriptions.ProviderPaystack, err)
		return
	}
	eventID := env.ID
	if eventID == "" {
		// Paystack deliveries carry no event identifier; a digest of the raw
		// body stands in so redeliveries still dedupe.
		sum := sha256.Sum256(payload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	ctx := c.Request.Context()
	switch env.Event {
	case "subscription.create", "subscription.disable", "subscription.not_renew":
		var data paystackSubscriptionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			h.ack(c, subscriptions.ProviderPaystack, err)
			return
		}
		ev := reconcile.SubscriptionEvent{
			Provider:                subscriptions.ProviderPaystack,
			ExternalEventID:         eventID,
			EventType:               env.Event,
			UserID:                  parseUserID(data.Metadata["user_id"]),
			ProviderCustomerRef:     data.Customer.CustomerCode,
			ProviderSubscriptionRef: data.SubscriptionCode,
			ProviderStatus:          normalizePaystackStatus(data.Status),
			Tier:                    h.paystackTierFor(data.Plan.PlanCode),
		}
		if env.Event == "subscription.disable" {
			ev.ProviderStatus = "canceled"
		}
		if env.Event == "subscription.not_renew" {
			flag := true
			ev.CancelAtPeriodEnd = &flag
			ev.ProviderStatus = "active"
		}
		if end, err := time.Parse(time.RFC3339, data.NextPaymentDate); err == nil {
			ev.CurrentPeriodEnd = &end
		}
		h.ack(c, subscriptions.ProviderPaystack, h.applier.ApplySubscriptionEvent(ctx, ev))

	case "charge.success":
		var data paystackChargeData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			h.ack(c, subscriptions.ProviderPaystack, err)
			return
		}
		ev := reconcile.SubscriptionEvent{
			Provider:            subscriptions.ProviderPaystack,
			ExternalEventID:     eventID,
			EventType:           env.Event,
			UserID:              parseUserID(data.Metadata["user_id"]),
			ProviderCustomerRef: data.Customer.CustomerCode,
			ProviderStatus:      "active",
			Tier:                h.paystackTierFor(data.Plan.PlanCode),
		}
		// Initial charges reference the checkout transaction we initiated.
		if audit, err := h.store.CheckoutSessionByReference(ctx, data.Reference); err == nil && audit != nil {
			ev.Tier = audit.Tier
			if ev.UserID == 0 {
				ev.UserID = audit.UserID
			}
		}
		h.ack(c, subscriptions.ProviderPaystack, h.applier.ApplySubscriptionEvent(ctx, ev))

	case "invoice.payment_failed":
		var data paystackSubscriptionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			h.ack(c, subscriptions.ProviderPaystack, err)
			return
		}
		ev := reconcile.SubscriptionEvent{
			Provider:                subscriptions.ProviderPaystack,
			ExternalEventID:         eventID,
			EventType:               env.Event,
			UserID:                  parseUserID(data.Metadata["user_id"]),
			ProviderCustomerRef:     data.Customer.CustomerCode,
			ProviderSubscriptionRef: data.SubscriptionCode,
			ProviderStatus:          "past_due",
		}
		h.ack(c, subscriptions.ProviderPaystack, h.applier.ApplySubscriptionEvent(ctx, ev))

	case "transfer.success", "transfer.failed", "transfer.reversed":
		var data paystackTransferData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			h.ack(c, subscriptions.ProviderPaystack, err)
			return
		}
		ref := data.Reference
		if ref == "" {
			ref = data.TransferCode
		}
		h.ack(c, subscriptions.ProviderPaystack, h.applier.ApplyPayoutEvent(ctx, reconcile.PayoutEvent{
			Provider:          subscriptions.ProviderPaystack,
			ExternalEventID:   eventID,
			EventType:         env.Event,
			ExternalReference: ref,
			Succeeded:         env.Event == "transfer.success",
			FailureReason:     transferFailureReason(env.Event, data.Status),
		}))

	default:
		metrics.WebhookEventsDropped.WithLabelValues(subscriptions.ProviderPaystack, "unhandled").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// normalizePaystackStatus folds Paystack's subscription vocabulary onto the
// canonical table's input vocabulary.
func normalizePaystackStatus(s string) string {
	switch s {
	case "active", "non-renewing":
		return "active"
	case "attention":
		return "past_due"
	case "cancelled", "completed":
		return "canceled"
	default:
		return s
	}
}

func transferFailureReason(event, status string) string {
	switch event {
	case "transfer.success":
		return ""
	case "transfer.reversed":
		return "transfer reversed"
	default:
		if status != "" {
			return "transfer " + status
		}
		return "transfer failed"
	}
}
