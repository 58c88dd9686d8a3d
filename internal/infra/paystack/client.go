package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.paystack.co"

// Client is a minimal Paystack API client covering the customer,
// transaction, subscription and transfer endpoints this service uses.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL exists for tests against a stub server.
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = baseURL
	return c
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("paystack: malformed response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return fmt.Errorf("paystack: %s (%d)", env.Message, resp.StatusCode)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Customer is a Paystack customer record.
type Customer struct {
	ID           int64  `json:"id"`
	CustomerCode string `json:"customer_code"`
	Email        string `json:"email"`
}

// CustomerByEmail looks a customer up by email. Returns nil when absent.
func (c *Client) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var customers []Customer
	path := "/customer?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &customers); err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// CreateCustomer registers a customer with metadata linking the local user.
func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	var out Customer
	err := c.do(ctx, http.MethodPost, "/customer", map[string]any{
		"email":    email,
		"metadata": metadata,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transaction is the result of a transaction initialization.
type Transaction struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a hosted checkout for a subscription plan.
// Amount is in minor units (kobo).
func (c *Client) InitializeTransaction(ctx context.Context, email, customerCode, planCode string, amount int64, trialDays int) (*Transaction, error) {
	payload := map[string]any{
		"email":    email,
		"customer": customerCode,
		"plan":     planCode,
		"amount":   amount,
	}
	if trialDays > 0 {
		payload["trial_period"] = trialDays
	}
	var out Transaction
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSubscription disables a subscription at the end of the period.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionCode string) error {
	path := fmt.Sprintf("/subscription/%s/cancel", subscriptionCode)
	return c.do(ctx, http.MethodPost, path, map[string]any{}, nil)
}

// TransferRecipient is a registered payout destination.
type TransferRecipient struct {
	RecipientCode string `json:"recipient_code"`
}

// CreateTransferRecipient registers a bank account as a payout destination.
func (c *Client) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode, currency string) (*TransferRecipient, error) {
	var out TransferRecipient
	err := c.do(ctx, http.MethodPost, "/transferrecipient", map[string]any{
		"type":           "nuban",
		"name":           name,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       currency,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer is an initiated payout.
type Transfer struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// InitiateTransfer moves funds from the balance to a recipient. Amount is in
// minor units.
func (c *Client) InitiateTransfer(ctx context.Context, recipientCode string, amount int64, currency, reference, reason string) (*Transfer, error) {
	var out Transfer
	err := c.do(ctx, http.MethodPost, "/transfer", map[string]any{
		"source":    "balance",
		"amount":    amount,
		"currency":  currency,
		"recipient": recipientCode,
		"reference": reference,
		"reason":    reason,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
