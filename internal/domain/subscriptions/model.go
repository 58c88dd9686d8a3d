package subscriptions

import (
	"time"
)

// Payment provider identifiers
const (
	ProviderStripe   = "stripe"
	ProviderPaystack = "paystack"
)

// Subscription is the canonical, provider-agnostic subscription record.
// Exactly one row per user; a new subscription after cancellation overwrites
// the same row instead of appending a new one.
type Subscription struct {
	ID                      uint   `gorm:"primaryKey"`
	UserID                  uint   `gorm:"not null;uniqueIndex:idx_subscriptions_user_id"`
	Provider                string `gorm:"type:varchar(20);not null"`
	ProviderCustomerRef     string `gorm:"column:provider_customer_ref"`
	ProviderSubscriptionRef string `gorm:"column:provider_subscription_ref;uniqueIndex:idx_subscriptions_provider_sub_ref"`
	Tier                    string `gorm:"type:varchar(30);not null;default:'free'"`
	Status                  string `gorm:"type:varchar(20);not null"`
	CurrentPeriodStart      *time.Time
	CurrentPeriodEnd        *time.Time
	CancelAtPeriodEnd       bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// CheckoutSession is the pre-transition audit record written when a checkout
// is initiated. No Subscription row exists yet; the later webhook is
// correlated against Reference. Sessions that never complete simply expire on
// the provider side and stay here for audit.
type CheckoutSession struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"not null;index:idx_checkout_sessions_user_id"`
	Provider     string `gorm:"type:varchar(20);not null"`
	Tier         string `gorm:"type:varchar(30);not null"`
	Reference    string `gorm:"not null;uniqueIndex:idx_checkout_sessions_reference"`
	AmountCents  int64
	Currency     string `gorm:"type:varchar(3)"`
	FraudScore   int
	FraudVerdict string `gorm:"type:varchar(20)"`
	CreatedAt    time.Time
}
