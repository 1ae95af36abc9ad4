package service

import (
	"context"
	"time"

	"payment-processor/internal/models"
)

// BookingService is the part of the booking client the reconciler drives
type BookingService interface {
	OrderLister
	MarkSeatSold(ctx context.Context, seatID string) error
	CreateBookingOrder(ctx context.Context, req models.CreateBookingOrderRequest) (*models.BookingOrder, error)
	UpdateBookingOrder(ctx context.Context, orderID string, req models.UpdateBookingOrderRequest) error
	RefreshAvailability(ctx context.Context, eventID string) error
	CreateCheckout(ctx context.Context, req models.CheckoutRequest) error
	CreateTicket(ctx context.Context, orderID string) error
}

// OrderLister lists booking orders for the idempotency scan
type OrderLister interface {
	ListBookingOrders(ctx context.Context) ([]models.BookingOrder, error)
}

// PayerLookup fetches payer display data from the payment provider
type PayerLookup interface {
	LookupPayer(ctx context.Context, paymentProviderID string) (*models.Payer, error)
}

// ProcessedCache remembers payments that were fully reconciled
type ProcessedCache interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// PaymentLocker serializes work on one payment across workers
type PaymentLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// ReconciledPublisher announces reconciled payments
type ReconciledPublisher interface {
	PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error
}
