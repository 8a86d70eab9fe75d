package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway implements Gateway on top of Stripe Checkout Sessions.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string, timeout time.Duration) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, in CreateSessionInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountInCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(in.Name),
						Description: stripe.String(in.Description),
					},
				},
			},
		},
	}

	for key, value := range in.Metadata {
		params.AddMetadata(key, value)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session create: %w", err)
	}

	return sess.ID, nil
}

func (g *StripeGateway) GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	sess, err := g.api.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return "", fmt.Errorf("stripe checkout session get: %w", err)
	}

	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return SessionPaid, nil
	}

	switch sess.Status {
	case stripe.CheckoutSessionStatusExpired:
		return SessionExpired, nil
	case stripe.CheckoutSessionStatusOpen:
		return SessionOpen, nil
	default:
		// Complete but unpaid covers async payment methods still settling.
		return SessionOpen, nil
	}
}
