package stripepay

import (
	"context"
	"encoding/json"
	"fmt"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/provider"

	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/customer"
	"github.com/stripe/stripe-go/v75/subscription"
	"github.com/stripe/stripe-go/v75/transfer"
)

// Config carries the Stripe credentials and the static tier→price table.
type Config struct {
	SecretKey string
	AppURL    string

	// PriceIDs maps tier → Stripe price identifier.
	PriceIDs map[string]string
	// AmountCents maps tier → the USD charge amount advertised to clients.
	AmountCents map[string]int64
}

// Adapter implements provider.PaymentProvider on the Stripe API.
type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	stripe.Key = cfg.SecretKey
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return subscriptions.ProviderStripe }

func (a *Adapter) CheckoutPrice(tier string) (int64, string) {
	return a.cfg.AmountCents[tier], "USD"
}

func (a *Adapter) providerErr(op string, err error) error {
	return &apperrors.ProviderError{Provider: a.Name(), Op: op, Err: err}
}

// EnsureCustomer looks the customer up by email and creates one when absent.
func (a *Adapter) EnsureCustomer(ctx context.Context, email string, userID uint) (provider.Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	it := customer.List(listParams)
	for it.Next() {
		c := it.Customer()
		return provider.Customer{Ref: c.ID, Email: email}, nil
	}
	if err := it.Err(); err != nil {
		return provider.Customer{}, a.providerErr("list customer", err)
	}

	cus, err := customer.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Metadata: map[string]string{
			"user_id": fmt.Sprint(userID),
		},
	})
	if err != nil {
		return provider.Customer{}, a.providerErr("create customer", err)
	}
	return provider.Customer{Ref: cus.ID, Email: email}, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, p provider.CheckoutParams) (provider.CheckoutSession, error) {
	priceID, ok := a.cfg.PriceIDs[p.Tier]
	if !ok || priceID == "" {
		return provider.CheckoutSession{}, a.providerErr("create checkout session",
			fmt.Errorf("no price configured for tier %q", p.Tier))
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		SuccessURL: stripe.String(a.cfg.AppURL + "/pricing?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(a.cfg.AppURL + "/pricing?canceled=true"),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(p.Customer.Ref),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(fmt.Sprint(p.UserID)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": fmt.Sprint(p.UserID),
				"tier":    p.Tier,
			},
		},
	}
	if p.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		return provider.CheckoutSession{}, a.providerErr("create checkout session", err)
	}

	return provider.CheckoutSession{
		SessionID:   s.ID,
		URL:         s.URL,
		AmountCents: a.cfg.AmountCents[p.Tier],
		Currency:    "USD",
	}, nil
}

// InitiatePayout transfers funds to the creator's connected account. The
// stored bank details must carry the destination account reference.
func (a *Adapter) InitiatePayout(ctx context.Context, p provider.PayoutParams) (provider.PayoutResult, error) {
	var bank struct {
		StripeAccountID string `json:"stripe_account_id"`
	}
	if err := json.Unmarshal([]byte(p.BankAccountDetails), &bank); err != nil || bank.StripeAccountID == "" {
		return provider.PayoutResult{}, a.providerErr("initiate payout",
			fmt.Errorf("bank details missing stripe_account_id"))
	}

	tr, err := transfer.New(&stripe.TransferParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Destination:   stripe.String(bank.StripeAccountID),
		TransferGroup: stripe.String(p.Reference),
		Description:   stripe.String(p.Reason),
	})
	if err != nil {
		return provider.PayoutResult{}, a.providerErr("initiate payout", err)
	}
	return provider.PayoutResult{Reference: tr.ID, TransferCode: tr.ID}, nil
}

func (a *Adapter) CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error {
	_, err := subscription.Update(subscriptionRef, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return a.providerErr("cancel at period end", err)
	}
	return nil
}

// TierForPrice resolves a Stripe price ID back to the internal tier. Falls
// back to free for unrecognized prices.
func (a *Adapter) TierForPrice(priceID string) string {
	for tier, id := range a.cfg.PriceIDs {
		if id != "" && id == priceID {
			return tier
		}
	}
	return subscriptions.TierFree
}
