package paymentbridge

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request types
const (
	TypePayout = "payout"
	TypeBridge = "bridge"
	TypeRefund = "refund"
)

// PaymentRequest statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// MinAmountCents is the smallest accepted request amount ($10 / ₦1,000 equivalent).
const MinAmountCents = 1000

// PaymentRequest is a creator payout/bridge/refund request. The processing
// fee is fixed at creation and never recomputed, even across failure
// rollbacks and retries.
type PaymentRequest struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	CreatorID          uint   `gorm:"not null;index:idx_payment_requests_creator_id"`
	RequestType        string `gorm:"type:varchar(20);not null"`
	AmountCents        int64  `gorm:"not null"`
	Currency           string `gorm:"type:varchar(3);not null"`
	ProcessingFeeCents int64  `gorm:"not null"`
	Status             string `gorm:"type:varchar(20);not null;default:'pending'"`
	Reference          string `gorm:"not null;uniqueIndex:idx_payment_requests_reference"`
	ExternalReference  *string
	BankAccountDetails string `gorm:"type:jsonb"`
	Notes              *string
	RejectionReason    *string
	ProcessedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (PaymentRequest) TableName() string { return "creator_payment_requests" }

func (p *PaymentRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Reference == "" {
		p.Reference = NewReference()
	}
	return nil
}

// NewReference builds a unique, human-traceable payment reference.
func NewReference() string {
	return fmt.Sprintf("PAYREQ_%d_%s", time.Now().UnixMilli(),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString()[:8], "-", "")))
}

// ProcessingFee computes the fixed 10% fee in cents, rounded half away from zero.
func ProcessingFee(amountCents int64) int64 {
	return int64(math.Round(float64(amountCents) * 0.10))
}

// CanTransition enforces the PaymentRequest status machine. Forward-only,
// except for the single failure rollback processing → pending.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusPaid || to == StatusFailed || to == StatusPending
	default:
		// paid, failed, cancelled are terminal
		return false
	}
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidRequestType reports whether t is one of the accepted request types.
func ValidRequestType(t string) bool {
	switch t {
	case TypePayout, TypeBridge, TypeRefund:
		return true
	}
	return false
}

// ValidCurrency reports whether c is a supported settlement currency.
func ValidCurrency(c string) bool {
	switch strings.ToUpper(c) {
	case "NGN", "USD", "EUR":
		return true
	}
	return false
}
