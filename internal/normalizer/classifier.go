package normalizer

import (
	"strings"

	"payment-processor/internal/models"
)

// Classify maps a provider or internal payment status to an outcome.
// Unknown and empty statuses are pending.
func Classify(rawStatus string) models.PaymentOutcome {
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "paid", "complete", "completed", "succeeded":
		return models.OutcomeCompleted
	case "failed", "canceled", "cancelled", "unpaid":
		return models.OutcomeFailed
	default:
		return models.OutcomePending
	}
}
