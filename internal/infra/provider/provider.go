package provider

import (
	"context"
	"fmt"
)

// Customer is a provider-side customer record tied 1:1 to a local user.
type Customer struct {
	Ref   string
	Email string
}

// CheckoutParams carries everything an adapter needs to open a checkout
// session for a subscription tier.
type CheckoutParams struct {
	UserID    uint
	Email     string
	Tier      string
	TrialDays int
	Customer  Customer
}

// CheckoutSession is the client-facing result of a checkout initiation. The
// session reference is the correlation key for the completion webhook.
type CheckoutSession struct {
	SessionID   string
	URL         string
	AmountCents int64
	Currency    string
}

// PayoutParams describes a provider payout of a claimed PaymentRequest.
type PayoutParams struct {
	Reference          string
	AmountCents        int64
	Currency           string
	BankAccountDetails string // JSON as stored on the request
	Reason             string
}

// PayoutResult holds the provider transaction identifiers. The synchronous
// result alone never marks a request paid; the webhook confirms it.
type PayoutResult struct {
	Reference    string
	TransferCode string
}

// PaymentProvider is the polymorphic capability both processors implement.
// Selection happens via configuration, never by string branching in handlers.
type PaymentProvider interface {
	Name() string

	// CheckoutPrice reports the amount this adapter charges for a tier, in
	// its minor unit, with the settlement currency. Zero for unknown tiers.
	CheckoutPrice(tier string) (amountCents int64, currency string)

	// EnsureCustomer resolves-or-creates the provider customer for a user.
	// Idempotent per (user, provider).
	EnsureCustomer(ctx context.Context, email string, userID uint) (Customer, error)

	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error)

	InitiatePayout(ctx context.Context, p PayoutParams) (PayoutResult, error)

	// CancelAtPeriodEnd requests a provider-side cancel at the end of the
	// current billing period. Canonical status changes only via webhook.
	CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error
}

// Registry holds the configured adapters and the configured defaults.
type Registry struct {
	providers       map[string]PaymentProvider
	defaultCheckout string
	defaultPayout   string
}

func NewRegistry(defaultCheckout, defaultPayout string, providers ...PaymentProvider) *Registry {
	r := &Registry{
		providers:       make(map[string]PaymentProvider, len(providers)),
		defaultCheckout: defaultCheckout,
		defaultPayout:   defaultPayout,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the adapter by name.
func (r *Registry) Get(name string) (PaymentProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", name)
	}
	return p, nil
}

// ForCheckout resolves the requested provider, or the configured default
// when the caller states no preference.
func (r *Registry) ForCheckout(preferred string) (PaymentProvider, error) {
	if preferred == "" {
		preferred = r.defaultCheckout
	}
	return r.Get(preferred)
}

// ForPayout returns the configured payout processor.
func (r *Registry) ForPayout() (PaymentProvider, error) {
	return r.Get(r.defaultPayout)
}
