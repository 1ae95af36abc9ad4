package models

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypePaymentReconciled = "PAYMENT_RECONCILED"
)

// BaseEvent contains common fields for all published events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentReconciledEvent is published after every side effect of a payment succeeded
type PaymentReconciledEvent struct {
	BaseEvent
	OrderID           string   `json:"order_id"`
	UserID            string   `json:"user_id,omitempty"`
	PaymentProviderID string   `json:"payment_provider_id,omitempty"`
	SeatIDs           []string `json:"seat_ids"`
	Amount            float64  `json:"amount"`
	Currency          string   `json:"currency"`
}

// Record is one individually acknowledged unit of a queued batch.
// Body holds either a JSON object or a JSON string containing one.
type Record struct {
	MessageID string          `json:"messageId"`
	Body      json.RawMessage `json:"body"`
}

// BatchInvocation is the envelope of a queued batch
type BatchInvocation struct {
	Records []Record `json:"Records"`
}

// BatchItemResult is the per-record outcome of a batch run
type BatchItemResult struct {
	Identifier string
	Success    bool
	Err        error
}

// BatchItemFailure names a record that must be redelivered
type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResponse lists the records to redeliver; empty means the whole batch succeeded
type BatchResponse struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

// DirectResponse is returned to a synchronous webhook caller
type DirectResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}
