package paystack

import (
	"context"
	"encoding/json"
	"fmt"

	"vauntico-server/internal/apperrors"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/infra/provider"
)

// Config carries the Paystack credentials and the static tier→plan table.
type Config struct {
	SecretKey string

	// PlanCodes maps tier → Paystack plan code.
	PlanCodes map[string]string
}

// Adapter implements provider.PaymentProvider on the Paystack API.
type Adapter struct {
	cfg    Config
	client *Client
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, client: NewClient(cfg.SecretKey)}
}

// NewAdapterWithClient exists for tests against a stub server.
func NewAdapterWithClient(cfg Config, client *Client) *Adapter {
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return subscriptions.ProviderPaystack }

func (a *Adapter) CheckoutPrice(tier string) (int64, string) {
	return subscriptions.PaystackAmountKobo[tier], "NGN"
}

func (a *Adapter) providerErr(op string, err error) error {
	return &apperrors.ProviderError{Provider: a.Name(), Op: op, Err: err}
}

func (a *Adapter) EnsureCustomer(ctx context.Context, email string, userID uint) (provider.Customer, error) {
	existing, err := a.client.CustomerByEmail(ctx, email)
	if err != nil {
		return provider.Customer{}, a.providerErr("lookup customer", err)
	}
	if existing != nil {
		return provider.Customer{Ref: existing.CustomerCode, Email: email}, nil
	}

	created, err := a.client.CreateCustomer(ctx, email, map[string]string{
		"user_id": fmt.Sprint(userID),
	})
	if err != nil {
		return provider.Customer{}, a.providerErr("create customer", err)
	}
	return provider.Customer{Ref: created.CustomerCode, Email: email}, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, p provider.CheckoutParams) (provider.CheckoutSession, error) {
	planCode, ok := a.cfg.PlanCodes[p.Tier]
	if !ok || planCode == "" {
		return provider.CheckoutSession{}, a.providerErr("initialize transaction",
			fmt.Errorf("no plan configured for tier %q", p.Tier))
	}
	amount, ok := subscriptions.PaystackAmountKobo[p.Tier]
	if !ok {
		return provider.CheckoutSession{}, a.providerErr("initialize transaction",
			fmt.Errorf("no price for tier %q", p.Tier))
	}

	tx, err := a.client.InitializeTransaction(ctx, p.Email, p.Customer.Ref, planCode, amount, p.TrialDays)
	if err != nil {
		return provider.CheckoutSession{}, a.providerErr("initialize transaction", err)
	}

	return provider.CheckoutSession{
		SessionID:   tx.Reference,
		URL:         tx.AuthorizationURL,
		AmountCents: amount,
		Currency:    "NGN",
	}, nil
}

func (a *Adapter) InitiatePayout(ctx context.Context, p provider.PayoutParams) (provider.PayoutResult, error) {
	var bank struct {
		AccountName   string `json:"account_name"`
		AccountNumber string `json:"account_number"`
		BankCode      string `json:"bank_code"`
	}
	if err := json.Unmarshal([]byte(p.BankAccountDetails), &bank); err != nil {
		return provider.PayoutResult{}, a.providerErr("initiate transfer",
			fmt.Errorf("malformed bank account details: %w", err))
	}
	if bank.AccountNumber == "" || bank.BankCode == "" {
		return provider.PayoutResult{}, a.providerErr("initiate transfer",
			fmt.Errorf("bank details missing account_number/bank_code"))
	}

	recipient, err := a.client.CreateTransferRecipient(ctx, bank.AccountName, bank.AccountNumber, bank.BankCode, p.Currency)
	if err != nil {
		return provider.PayoutResult{}, a.providerErr("create transfer recipient", err)
	}

	tr, err := a.client.InitiateTransfer(ctx, recipient.RecipientCode, p.AmountCents, p.Currency, p.Reference, p.Reason)
	if err != nil {
		return provider.PayoutResult{}, a.providerErr("initiate transfer", err)
	}
	return provider.PayoutResult{Reference: tr.Reference, TransferCode: tr.TransferCode}, nil
}

func (a *Adapter) CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error {
	if err := a.client.CancelSubscription(ctx, subscriptionRef); err != nil {
		return a.providerErr("cancel subscription", err)
	}
	return nil
}

// TierForPlan resolves a Paystack plan code back to the internal tier.
func (a *Adapter) TierForPlan(planCode string) string {
	for tier, code := range a.cfg.PlanCodes {
		if code != "" && code == planCode {
			return tier
		}
	}
	return subscriptions.TierFree
}
