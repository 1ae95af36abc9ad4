package models

import (
	"github.com/shopspring/decimal"
)

// PaymentOutcome is the tri-state result of a payment notification
type PaymentOutcome string

const (
	OutcomePending   PaymentOutcome = "PENDING"
	OutcomeCompleted PaymentOutcome = "COMPLETED"
	OutcomeFailed    PaymentOutcome = "FAILED"
)

// Event sources
const (
	SourceInternal = "internal"
	SourceProvider = "provider"
)

const DefaultCurrency = "usd"

// PaymentEvent is the canonical payment notification, independent of the
// shape it arrived in. It is not modified after normalization.
type PaymentEvent struct {
	UserID            string          `json:"userId"`
	Amount            decimal.Decimal `json:"amount"`
	RawStatus         string          `json:"status"`
	SeatIDs           []string        `json:"seatIds"`
	EventID           string          `json:"eventId,omitempty"`
	PaymentProviderID string          `json:"paymentProviderId,omitempty"`
	OrderID           string          `json:"orderId,omitempty"`
	Currency          string          `json:"currency"`

	Source            string `json:"source"`
	ProviderEventID   string `json:"providerEventId,omitempty"`
	ProviderEventType string `json:"providerEventType,omitempty"`
}

// Payer holds the display data attached to a checkout
type Payer struct {
	Name       string
	Email      string
	CustomerID string
}

// Seat statuses
const (
	SeatStatusSold = "SOLD"
)

// SeatStatusUpdate is the body of PATCH /api/v1/seats/{id}
type SeatStatusUpdate struct {
	Status string `json:"status"`
}

// BookingOrder is the subset of the booking service order used here
type BookingOrder struct {
	ID                string   `json:"id"`
	UserID            string   `json:"userId"`
	Status            string   `json:"status"`
	SeatIDs           []string `json:"seatIds,omitempty"`
	PaymentProviderID string   `json:"paymentProviderId,omitempty"`
}

// CreateBookingOrderRequest is the body of POST /api/v1/booking-orders
type CreateBookingOrderRequest struct {
	UserID            string         `json:"userId"`
	Amount            float64        `json:"amount"`
	Status            PaymentOutcome `json:"status"`
	SeatIDs           []string       `json:"seatIds"`
	PaymentProviderID string         `json:"paymentProviderId"`
}

// UpdateBookingOrderRequest is the body of PATCH /api/v1/booking-orders/{id}
type UpdateBookingOrderRequest struct {
	Status            PaymentOutcome `json:"status"`
	PaymentProviderID string         `json:"paymentProviderId"`
}

// CheckoutRequest is the body of POST /api/v1/checkouts
type CheckoutRequest struct {
	OrderID         string  `json:"orderId"`
	PaymentProvider string  `json:"paymentProvider"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Currency        string  `json:"currency"`
	Amount          float64 `json:"amount"`
	CustomerName    string  `json:"customerName"`
	CustomerEmail   string  `json:"customerEmail"`
	CustomerID      *string `json:"customerId,omitempty"`
}

// TicketRequest is the body of POST /api/v1/tickets
type TicketRequest struct {
	OrderID string `json:"orderId"`
}
