package stripeclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

type fakeIntents struct {
	pi     *stripe.PaymentIntent
	err    error
	params *stripe.PaymentIntentParams
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = params
	return f.pi, f.err
}

type fakeSessions struct {
	s   *stripe.CheckoutSession
	err error
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.s, f.err
}

func TestLookupPayer_PaymentIntent(t *testing.T) {
	intents := &fakeIntents{pi: &stripe.PaymentIntent{
		ID: "pi_1",
		LatestCharge: &stripe.Charge{BillingDetails: &stripe.ChargeBillingDetails{
			Name:  "Ana Perez",
			Email: "billing@example.com",
		}},
		Customer: &stripe.Customer{ID: "cus_1", Email: "customer@example.com"},
	}}
	lookup := &PayerLookup{intents: intents, sessions: &fakeSessions{}}

	payer, err := lookup.LookupPayer(context.Background(), "pi_1")
	require.NoError(t, err)

	assert.Equal(t, "Ana Perez", payer.Name)
	assert.Equal(t, "billing@example.com", payer.Email)
	assert.Equal(t, "cus_1", payer.CustomerID)
	require.NotNil(t, intents.params)
	assert.ElementsMatch(t, []*string{stripe.String("latest_charge"), stripe.String("customer")}, intents.params.Expand)
}

func TestLookupPayer_ReceiptEmailWins(t *testing.T) {
	lookup := &PayerLookup{intents: &fakeIntents{pi: &stripe.PaymentIntent{
		ReceiptEmail: "receipt@example.com",
		Customer:     &stripe.Customer{ID: "cus_2", Name: "From Customer", Email: "customer@example.com"},
	}}, sessions: &fakeSessions{}}

	payer, err := lookup.LookupPayer(context.Background(), "pi_2")
	require.NoError(t, err)

	assert.Equal(t, "From Customer", payer.Name)
	assert.Equal(t, "receipt@example.com", payer.Email)
}

func TestLookupPayer_CheckoutSession(t *testing.T) {
	lookup := &PayerLookup{intents: &fakeIntents{}, sessions: &fakeSessions{s: &stripe.CheckoutSession{
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Name: "Luis", Email: "luis@example.com"},
	}}}

	payer, err := lookup.LookupPayer(context.Background(), "cs_test_1")
	require.NoError(t, err)

	assert.Equal(t, "Luis", payer.Name)
	assert.Equal(t, "luis@example.com", payer.Email)
	assert.Empty(t, payer.CustomerID)
}

func TestLookupPayer_Errors(t *testing.T) {
	_, err := NewPayerLookup("").LookupPayer(context.Background(), "pi_1")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	lookup := &PayerLookup{intents: &fakeIntents{err: errors.New("no such payment_intent")}, sessions: &fakeSessions{}}
	_, err = lookup.LookupPayer(context.Background(), "pi_missing")
	assert.Error(t, err)
}
