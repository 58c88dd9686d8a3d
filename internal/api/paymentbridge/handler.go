package paymentbridge

import (
	"context"
	"net/http"
	"strconv"

	"vauntico-server/internal/apperrors"
	bridge "vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/notify"
	"vauntico-server/internal/service/payout"

	"github.com/gin-gonic/gin"
)

// Store is the persistence slice the payment-bridge endpoints need.
type Store interface {
	CreatePaymentRequest(ctx context.Context, req *bridge.PaymentRequest) error
	PaymentRequestByID(ctx context.Context, id string) (*bridge.PaymentRequest, error)
	PaymentRequestsByCreator(ctx context.Context, creatorID uint, status string, limit, offset int) ([]bridge.PaymentRequest, int64, error)
	TransitionPaymentRequest(ctx context.Context, id, from, to string, updates map[string]any) (bool, error)
}

// Handler serves the creator payment-bridge endpoints.
type Handler struct {
	store     Store
	processor *payout.Processor
	notifier  notify.Notifier
}

func NewHandler(store Store, processor *payout.Processor, notifier notify.Notifier) *Handler {
	return &Handler{store: store, processor: processor, notifier: notifier}
}

type createRequest struct {
	RequestType        string `json:"requestType" binding:"required,oneof=payout bridge refund"`
	AmountCents        int64  `json:"amountCents" binding:"required,min=1"`
	Currency           string `json:"currency" binding:"required,currency"`
	BankAccountDetails string `json:"bankAccountDetails" binding:"required"`
	Notes              string `json:"notes" binding:"omitempty,max=500"`
}

// Create handles POST /payment-bridge/request. The processing fee is
// computed server-side and frozen on the row.
func (h *Handler) Create(c *gin.Context) {
	var input createRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.AmountCents < bridge.MinAmountCents {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "amount below the minimum payout threshold",
		})
		return
	}

	req := &bridge.PaymentRequest{
		CreatorID:          c.GetUint("user_id"),
		RequestType:        input.RequestType,
		AmountCents:        input.AmountCents,
		Currency:           input.Currency,
		ProcessingFeeCents: bridge.ProcessingFee(input.AmountCents),
		Status:             bridge.StatusPending,
		Reference:          bridge.NewReference(),
		BankAccountDetails: input.BankAccountDetails,
	}
	if input.Notes != "" {
		req.Notes = &input.Notes
	}
	if err := h.store.CreatePaymentRequest(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment request"})
		return
	}

	h.notifier.Alert("Payment request created", gin.H{
		"requestId": req.ID,
		"reference": req.Reference,
		"type":      req.RequestType,
		"amount":    req.AmountCents,
		"currency":  req.Currency,
	})

	c.JSON(http.StatusCreated, requestJSON(req))
}

// List handles GET /payment-bridge/requests: the caller's own requests,
// newest first, paginated.
func (h *Handler) List(c *gin.Context) {
	limit, offset := pagination(c)
	reqs, total, err := h.store.PaymentRequestsByCreator(c.Request.Context(),
		c.GetUint("user_id"), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list payment requests"})
		return
	}

	out := make([]gin.H, 0, len(reqs))
	for i := range reqs {
		out = append(out, requestJSON(&reqs[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"requests": out,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// Status handles GET /payment-bridge/status/:id. Owners see their own
// requests; admins see everyone's.
func (h *Handler) Status(c *gin.Context) {
	req, err := h.store.PaymentRequestByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment request"})
		return
	}
	if req == nil || !canView(c, req) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment request not found"})
		return
	}
	c.JSON(http.StatusOK, requestJSON(req))
}

// Cancel handles POST /payment-bridge/cancel/:id: owners withdraw their own
// pending requests.
func (h *Handler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := h.store.PaymentRequestByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment request"})
		return
	}
	if req == nil || !canView(c, req) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment request not found"})
		return
	}

	ok, err := h.store.TransitionPaymentRequest(ctx, req.ID,
		bridge.StatusPending, bridge.StatusCancelled, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel payment request"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "only pending requests can be cancelled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment request cancelled"})
}

// Payout handles POST /payment-bridge/payout/:id (admin only).
func (h *Handler) Payout(c *gin.Context) {
	req, err := h.processor.Trigger(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, requestJSON(req))
}

func canView(c *gin.Context, req *bridge.PaymentRequest) bool {
	if c.GetString("role") == "admin" {
		return true
	}
	return req.CreatorID == c.GetUint("user_id")
}

func requestJSON(req *bridge.PaymentRequest) gin.H {
	return gin.H{
		"id":                 req.ID,
		"reference":          req.Reference,
		"requestType":        req.RequestType,
		"amountCents":        req.AmountCents,
		"processingFeeCents": req.ProcessingFeeCents,
		"currency":           req.Currency,
		"status":             req.Status,
		"externalReference":  req.ExternalReference,
		"rejectionReason":    req.RejectionReason,
		"notes":              req.Notes,
		"createdAt":          req.CreatedAt,
		"updatedAt":          req.UpdatedAt,
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
