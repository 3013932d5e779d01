package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
)

// Intent is the payment handle handed back to callers: the client secret is
// what the caller needs to complete payment externally.
type Intent struct {
	ID           string
	ClientSecret string
}

type CreateIntentParams struct {
	Amount         int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type StripeClient struct{}

// NewStripeClient sets the account key for the package-level stripe client.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

func (c *StripeClient) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	const op = "payment.StripeClient.CreateIntent"

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.Amount),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (c *StripeClient) GetIntent(ctx context.Context, id string) (*Intent, error) {
	const op = "payment.StripeClient.GetIntent"

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Refund refunds the full amount of a payment intent and returns the refund id.
func (c *StripeClient) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	const op = "payment.StripeClient.Refund"

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return r.ID, nil
}
