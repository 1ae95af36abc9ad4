package normalizer

import (
	"encoding/json"
	"strings"
	"testing"

	"payment-processor/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	require.NoError(t, dec.Decode(&body))
	return body
}

func TestNormalize_BookingMessageWithSeatString(t *testing.T) {
	body := decode(t, `{
		"userId": "u1",
		"seatIds": " A1, A2 ,,A3 ",
		"amount": 20,
		"status": "paid",
		"orderId": "o1",
		"eventId": "e1",
		"paymentProviderId": "pi_1",
		"stripeEventId": "evt_1",
		"stripeEventType": "checkout.session.completed"
	}`)

	event := Normalize(body)
	require.NotNil(t, event)

	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, []string{"A1", "A2", "A3"}, event.SeatIDs)
	assert.True(t, decimal.NewFromInt(20).Equal(event.Amount))
	assert.Equal(t, "paid", event.RawStatus)
	assert.Equal(t, "o1", event.OrderID)
	assert.Equal(t, "e1", event.EventID)
	assert.Equal(t, "pi_1", event.PaymentProviderID)
	assert.Equal(t, models.DefaultCurrency, event.Currency)
	assert.Equal(t, models.SourceInternal, event.Source)
	assert.Equal(t, "evt_1", event.ProviderEventID)
}

func TestNormalize_BookingMessageWithSeatList(t *testing.T) {
	body := decode(t, `{"userId":"u1","seatIds":["B1"," ","B2",7],"amount":"12.50","currency":"EUR"}`)

	event := Normalize(body)
	require.NotNil(t, event)

	assert.Equal(t, []string{"B1", "B2", "7"}, event.SeatIDs)
	assert.Equal(t, "12.5", event.Amount.String())
	assert.Equal(t, "eur", event.Currency)
}

func TestNormalize_ProviderEnvelope(t *testing.T) {
	body := decode(t, `{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"payment_intent": "pi_999",
			"payment_status": "paid",
			"amount_total": 2050,
			"currency": "usd",
			"metadata": {"user_id": "u9", "seat_ids": "S1,S2", "event_id": "ev1", "order_id": "ord1"}
		}}
	}`)

	event := Normalize(body)
	require.NotNil(t, event)

	assert.Equal(t, "u9", event.UserID)
	assert.Equal(t, "20.5", event.Amount.String())
	assert.Equal(t, "paid", event.RawStatus)
	assert.Equal(t, []string{"S1", "S2"}, event.SeatIDs)
	assert.Equal(t, "ev1", event.EventID)
	assert.Equal(t, "ord1", event.OrderID)
	assert.Equal(t, "pi_999", event.PaymentProviderID)
	assert.Equal(t, models.SourceProvider, event.Source)
	assert.Equal(t, "evt_123", event.ProviderEventID)
	assert.Equal(t, "checkout.session.completed", event.ProviderEventType)
}

func TestNormalize_ProviderEnvelopeFallbacks(t *testing.T) {
	body := decode(t, `{
		"id": "evt_2",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_abc",
			"status": "succeeded",
			"amount": 999,
			"metadata": {"seat_ids": "Z9"}
		}}
	}`)

	event := Normalize(body)
	require.NotNil(t, event)

	assert.Equal(t, "pi_abc", event.PaymentProviderID)
	assert.Equal(t, "succeeded", event.RawStatus)
	assert.Equal(t, "9.99", event.Amount.String())
	assert.Equal(t, "", event.UserID)
}

func TestNormalize_ProviderIDFallsBackToEnvelopeID(t *testing.T) {
	body := decode(t, `{"id":"evt_3","type":"x","data":{"object":{"metadata":{"seat_ids":"A"}}}}`)

	event := Normalize(body)
	require.NotNil(t, event)
	assert.Equal(t, "evt_3", event.PaymentProviderID)
}

func TestNormalize_Unsupported(t *testing.T) {
	cases := map[string]string{
		"empty object":          `{}`,
		"no discriminator":      `{"data":{"object":{"id":"pi_1"}}}`,
		"empty discriminator":   `{"type":"","data":{"object":{"id":"pi_1"}}}`,
		"missing data object":   `{"type":"checkout.session.completed","data":{}}`,
		"user without seats":    `{"userId":"u1","amount":10}`,
		"seats without user":    `{"seatIds":"A1"}`,
		"data object not a map": `{"type":"t","data":{"object":"nope"}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Normalize(decode(t, raw)))
		})
	}

	assert.Nil(t, Normalize(nil))
}

func TestParseSeatIDs(t *testing.T) {
	assert.Equal(t, []string{"A1", "A2"}, ParseSeatIDs("A1, A2"))
	assert.Equal(t, []string{"A1", "A1"}, ParseSeatIDs([]any{"A1", "A1"}))
	assert.Equal(t, []string{"x"}, ParseSeatIDs([]string{" x ", ""}))
	assert.Empty(t, ParseSeatIDs(" , ,"))
	assert.Nil(t, ParseSeatIDs(42))
	assert.Nil(t, ParseSeatIDs(nil))
}

func TestClassify(t *testing.T) {
	cases := map[string]models.PaymentOutcome{
		"PAID":       models.OutcomeCompleted,
		"paid":       models.OutcomeCompleted,
		"Complete":   models.OutcomeCompleted,
		"completed":  models.OutcomeCompleted,
		"succeeded":  models.OutcomeCompleted,
		"failed":     models.OutcomeFailed,
		"canceled":   models.OutcomeFailed,
		"Cancelled":  models.OutcomeFailed,
		"UNPAID":     models.OutcomeFailed,
		"unknown":    models.OutcomePending,
		"":           models.OutcomePending,
		" paid ":     models.OutcomeCompleted,
		"processing": models.OutcomePending,
	}

	for raw, want := range cases {
		assert.Equal(t, want, Classify(raw), "status %q", raw)
	}
}
