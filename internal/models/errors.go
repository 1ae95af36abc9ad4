package models

import "errors"

var (
	// ErrUnsupportedMessage means the payload matched neither known shape
	ErrUnsupportedMessage = errors.New("unsupported message: neither provider event nor booking message")

	// ErrInvalidEvent means a recognized message is missing mandatory fields
	ErrInvalidEvent = errors.New("invalid payment event")

	// ErrInFlight means another worker currently holds the payment lock
	ErrInFlight = errors.New("payment is being processed by another worker")
)
