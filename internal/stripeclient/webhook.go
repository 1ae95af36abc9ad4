package stripeclient

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79/webhook"
)

// SignatureHeader carries the webhook signature
const SignatureHeader = "Stripe-Signature"

// ErrInvalidSignature means the payload was not signed with our secret
var ErrInvalidSignature = errors.New("stripe signature invalid")

// VerifyWebhook checks a webhook payload against the endpoint secret using
// the default timestamp tolerance.
func VerifyWebhook(payload []byte, signature, secret string) error {
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
