package stripe

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

const (
	currencyUSD = "usd"

	// MetadataUserID and MetadataAmountCents are read back by the webhook handler.
	MetadataUserID      = "user_id"
	MetadataAmountCents = "amount_cents"
)

// CheckoutDefaults are the per-deployment values every top-up session shares.
type CheckoutDefaults struct {
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// CheckoutParams describes a one-off credit top-up.
type CheckoutParams struct {
	UserID      uuid.UUID
	AmountCents int64
	CheckoutDefaults
}

func (p CheckoutParams) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if p.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if p.SuccessURL == "" || p.CancelURL == "" {
		return errors.New("success and cancel urls are required")
	}
	return nil
}

func (p CheckoutParams) toStripeParams() *stripe.CheckoutSessionParams {
	productName := p.ProductName
	if productName == "" {
		productName = "Credits"
	}
	userID := p.UserID.String()
	amount := strconv.FormatInt(p.AmountCents, 10)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currencyUSD),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
			},
		},
	}
	params.AddMetadata(MetadataUserID, userID)
	params.AddMetadata(MetadataAmountCents, amount)
	return params
}

// CheckoutDefaults returns the configured product name and redirect urls.
func (c *Client) CheckoutDefaults() CheckoutDefaults {
	if c == nil {
		return CheckoutDefaults{}
	}
	return c.checkout
}

// CreateCheckoutSession opens a hosted payment page for a credit top-up.
// Blank defaults on params are filled from the client configuration.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*stripe.CheckoutSession, error) {
	if c == nil {
		return nil, errors.New("stripe client is not configured")
	}
	if strings.TrimSpace(params.ProductName) == "" {
		params.ProductName = c.checkout.ProductName
	}
	if strings.TrimSpace(params.SuccessURL) == "" {
		params.SuccessURL = c.checkout.SuccessURL
	}
	if strings.TrimSpace(params.CancelURL) == "" {
		params.CancelURL = c.checkout.CancelURL
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	sp := params.toStripeParams()
	sp.Context = ctx
	return session.New(sp)
}
