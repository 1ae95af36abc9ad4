// Package stripeclient reads payer details from Stripe and verifies webhook
// signatures. It never creates or modifies Stripe objects.
package stripeclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payment-processor/internal/models"
	"payment-processor/internal/util"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// ErrNotConfigured is returned when no secret key was provided
var ErrNotConfigured = errors.New("stripe secret key not configured")

type paymentIntentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type checkoutSessionGetter interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// PayerLookup resolves the payer of a payment intent or checkout session
type PayerLookup struct {
	intents  paymentIntentGetter
	sessions checkoutSessionGetter
}

// NewPayerLookup creates a lookup backed by the Stripe API
func NewPayerLookup(secretKey string) *PayerLookup {
	if secretKey == "" {
		return &PayerLookup{}
	}

	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &PayerLookup{intents: sc.PaymentIntents, sessions: sc.CheckoutSessions}
}

// LookupPayer returns whatever payer data Stripe holds for id. Ids starting
// with cs_ are checkout sessions; everything else is a payment intent.
// Missing fields are left empty.
func (p *PayerLookup) LookupPayer(ctx context.Context, id string) (*models.Payer, error) {
	if p.intents == nil || p.sessions == nil {
		return nil, ErrNotConfigured
	}

	ctx, span := util.StartSpan(ctx, "PayerLookup.LookupPayer")
	defer span.End()

	if strings.HasPrefix(id, "cs_") {
		return p.fromSession(ctx, id)
	}
	return p.fromPaymentIntent(ctx, id)
}

func (p *PayerLookup) fromPaymentIntent(ctx context.Context, id string) (*models.Payer, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	params.AddExpand("customer")

	pi, err := p.intents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}

	payer := &models.Payer{Email: pi.ReceiptEmail}
	if ch := pi.LatestCharge; ch != nil && ch.BillingDetails != nil {
		payer.Name = ch.BillingDetails.Name
		if payer.Email == "" {
			payer.Email = ch.BillingDetails.Email
		}
	}
	mergeCustomer(payer, pi.Customer)
	return payer, nil
}

func (p *PayerLookup) fromSession(ctx context.Context, id string) (*models.Payer, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")

	s, err := p.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session %s: %w", id, err)
	}

	payer := &models.Payer{}
	if d := s.CustomerDetails; d != nil {
		payer.Name = d.Name
		payer.Email = d.Email
	}
	if payer.Email == "" {
		payer.Email = s.CustomerEmail
	}
	mergeCustomer(payer, s.Customer)
	return payer, nil
}

func mergeCustomer(payer *models.Payer, c *stripe.Customer) {
	if c == nil {
		return
	}
	payer.CustomerID = c.ID
	if payer.Name == "" {
		payer.Name = c.Name
	}
	if payer.Email == "" {
		payer.Email = c.Email
	}
}
