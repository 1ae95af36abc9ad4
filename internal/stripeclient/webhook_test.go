package stripeclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestVerifyWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	assert.NoError(t, VerifyWebhook(payload, signed.Header, "whsec_test"))

	err := VerifyWebhook(payload, signed.Header, "whsec_other")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	err = VerifyWebhook(payload, "", "whsec_test")
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}
