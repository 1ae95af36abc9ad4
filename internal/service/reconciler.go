package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-processor/internal/models"
	"payment-processor/internal/normalizer"
	"payment-processor/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Placeholder payer data used when the provider lookup yields nothing
const (
	PlaceholderCustomerName  = "Cliente"
	PlaceholderCustomerEmail = "no-reply@ticketing.local"
)

const (
	paymentProviderStripe  = "STRIPE"
	defaultSeatConcurrency = 8
	defaultLockTTL         = 2 * time.Minute
)

// Critical step names, used in error messages and metrics
const (
	stepMarkSeatsSold  = "mark_seats_sold"
	stepFinalizeOrder  = "finalize_order"
	stepCreateCheckout = "create_checkout"
	stepCreateTicket   = "create_ticket"
)

// ReconcileStatus tells what Reconcile did with an event
type ReconcileStatus string

const (
	StatusPerformed               ReconcileStatus = "performed"
	StatusSkippedNotCompleted     ReconcileStatus = "skipped_not_completed"
	StatusSkippedAlreadyProcessed ReconcileStatus = "skipped_already_processed"
)

// ReconcileResult describes a successful Reconcile call
type ReconcileResult struct {
	Status     ReconcileStatus
	Outcome    models.PaymentOutcome
	OrderID    string
	BestEffort []StepResult
}

// Reconciler applies the booking side effects of a completed payment
type Reconciler struct {
	booking         BookingService
	guard           *IdempotencyGuard
	payers          PayerLookup
	locker          PaymentLocker
	publisher       ReconciledPublisher
	seatConcurrency int
	lockTTL         time.Duration
	logger          *zap.Logger
}

// ReconcilerOption configures optional collaborators
type ReconcilerOption func(*Reconciler)

// WithPayerLookup enables payer enrichment from the payment provider
func WithPayerLookup(p PayerLookup) ReconcilerOption {
	return func(r *Reconciler) { r.payers = p }
}

// WithLocker enables the per-payment in-flight lock
func WithLocker(l PaymentLocker, ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.locker = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithPublisher enables the reconciled event
func WithPublisher(p ReconciledPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

// WithSeatConcurrency bounds the number of concurrent seat updates
func WithSeatConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.seatConcurrency = n
		}
	}
}

// NewReconciler creates a new reconciler
func NewReconciler(booking BookingService, guard *IdempotencyGuard, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		booking:         booking,
		guard:           guard,
		seatConcurrency: defaultSeatConcurrency,
		lockTTL:         defaultLockTTL,
		logger:          util.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs the side effects of a payment event.
//
// Seat updates, the order step, the checkout and the ticket are critical:
// the first failure aborts the run and is returned. Steps already done are not
// rolled back; a redelivery repeats them. Other steps are best-effort and are
// reported in the result.
func (r *Reconciler) Reconcile(ctx context.Context, event *models.PaymentEvent) (*ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	start := time.Now()
	defer func() { util.ReconcileLatency.Observe(time.Since(start).Seconds()) }()

	if event == nil {
		return nil, fmt.Errorf("%w: nil event", models.ErrInvalidEvent)
	}
	if len(event.SeatIDs) == 0 {
		util.PaymentEventsRejectedTotal.WithLabelValues("no_seats").Inc()
		return nil, fmt.Errorf("%w: no seat ids", models.ErrInvalidEvent)
	}

	outcome := normalizer.Classify(event.RawStatus)
	result := &ReconcileResult{Outcome: outcome, OrderID: event.OrderID}

	if outcome != models.OutcomeCompleted {
		r.logger.Info("Payment not completed, nothing to reconcile",
			zap.String("status", event.RawStatus),
			zap.String("outcome", string(outcome)),
			zap.String("order_id", event.OrderID))
		result.Status = StatusSkippedNotCompleted
		util.PaymentEventsReconciledTotal.WithLabelValues(string(result.Status)).Inc()
		return result, nil
	}

	if r.guard != nil && r.guard.AlreadyProcessed(ctx, event.PaymentProviderID) {
		r.logger.Info("Payment already processed",
			zap.String("payment_provider_id", event.PaymentProviderID))
		result.Status = StatusSkippedAlreadyProcessed
		util.PaymentEventsReconciledTotal.WithLabelValues(string(result.Status)).Inc()
		return result, nil
	}

	if event.OrderID == "" && event.UserID == "" {
		util.PaymentEventsRejectedTotal.WithLabelValues("no_order_no_user").Inc()
		return nil, fmt.Errorf("%w: no order id and no user id", models.ErrInvalidEvent)
	}

	release, err := r.lock(ctx, event.PaymentProviderID)
	if err != nil {
		return nil, err
	}
	defer release()

	r.logger.Info("Reconciling payment",
		zap.String("payment_provider_id", event.PaymentProviderID),
		zap.String("order_id", event.OrderID),
		zap.Strings("seat_ids", event.SeatIDs))

	if err := r.markSeatsSold(ctx, event.SeatIDs); err != nil {
		return nil, r.critical(stepMarkSeatsSold, err)
	}

	if event.EventID != "" {
		result.BestEffort = append(result.BestEffort, runBestEffort(ctx, r.logger, StepRefreshAvailability, func(ctx context.Context) error {
			return r.booking.RefreshAvailability(ctx, event.EventID)
		}))
	}

	orderID, err := r.finalizeOrder(ctx, event)
	if err != nil {
		return nil, r.critical(stepFinalizeOrder, err)
	}
	result.OrderID = orderID

	payer, step := r.lookupPayer(ctx, event.PaymentProviderID)
	result.BestEffort = append(result.BestEffort, step)

	checkout := models.CheckoutRequest{
		OrderID:         orderID,
		PaymentProvider: paymentProviderStripe,
		PaymentIntentID: event.PaymentProviderID,
		Currency:        event.Currency,
		Amount:          event.Amount.InexactFloat64(),
		CustomerName:    payer.Name,
		CustomerEmail:   payer.Email,
	}
	if payer.CustomerID != "" {
		customerID := payer.CustomerID
		checkout.CustomerID = &customerID
	}
	if err := r.booking.CreateCheckout(ctx, checkout); err != nil {
		return nil, r.critical(stepCreateCheckout, err)
	}

	if err := r.booking.CreateTicket(ctx, orderID); err != nil {
		return nil, r.critical(stepCreateTicket, err)
	}

	result.BestEffort = append(result.BestEffort,
		runBestEffort(ctx, r.logger, StepMarkProcessed, func(ctx context.Context) error {
			if r.guard == nil {
				return errStepSkipped
			}
			return r.guard.MarkProcessed(ctx, event.PaymentProviderID)
		}),
		runBestEffort(ctx, r.logger, StepPublishReconciled, func(ctx context.Context) error {
			return r.publishReconciled(ctx, event, orderID)
		}),
	)

	result.Status = StatusPerformed
	util.PaymentEventsReconciledTotal.WithLabelValues(string(result.Status)).Inc()

	r.logger.Info("Payment reconciled",
		zap.String("order_id", orderID),
		zap.String("payment_provider_id", event.PaymentProviderID))

	return result, nil
}

// lock takes the in-flight lock for a payment. Lock backend errors are
// logged and ignored; only a lock held by someone else stops the run.
func (r *Reconciler) lock(ctx context.Context, paymentProviderID string) (func(), error) {
	noop := func() {}
	if r.locker == nil || paymentProviderID == "" {
		return noop, nil
	}

	key := "payment:" + paymentProviderID
	token, ok, err := r.locker.AcquireLock(ctx, key, r.lockTTL)
	if err != nil {
		r.logger.Warn("Failed to acquire payment lock, continuing without it",
			zap.String("payment_provider_id", paymentProviderID),
			zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInFlight, paymentProviderID)
	}

	return func() {
		// the caller's context may already be done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			r.logger.Warn("Failed to release payment lock", zap.Error(err))
		}
	}, nil
}

// markSeatsSold updates every seat concurrently and waits for all calls.
// A failing seat does not cancel its siblings.
func (r *Reconciler) markSeatsSold(ctx context.Context, seatIDs []string) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.markSeatsSold")
	defer span.End()

	var g errgroup.Group
	g.SetLimit(r.seatConcurrency)

	for _, seatID := range seatIDs {
		seatID := seatID
		g.Go(func() error {
			if err := r.booking.MarkSeatSold(ctx, seatID); err != nil {
				return fmt.Errorf("seat %s: %w", seatID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// finalizeOrder completes the referenced order, or creates one when the
// message carries no order id.
func (r *Reconciler) finalizeOrder(ctx context.Context, event *models.PaymentEvent) (string, error) {
	if event.OrderID != "" {
		err := r.booking.UpdateBookingOrder(ctx, event.OrderID, models.UpdateBookingOrderRequest{
			Status:            models.OutcomeCompleted,
			PaymentProviderID: event.PaymentProviderID,
		})
		if err != nil {
			return "", err
		}
		return event.OrderID, nil
	}

	r.logger.Warn("Completed payment without order id, creating order",
		zap.String("user_id", event.UserID),
		zap.String("payment_provider_id", event.PaymentProviderID))

	order, err := r.booking.CreateBookingOrder(ctx, models.CreateBookingOrderRequest{
		UserID:            event.UserID,
		Amount:            event.Amount.InexactFloat64(),
		Status:            models.OutcomeCompleted,
		SeatIDs:           event.SeatIDs,
		PaymentProviderID: event.PaymentProviderID,
	})
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

// lookupPayer returns provider payer data, falling back to placeholders
// field by field.
func (r *Reconciler) lookupPayer(ctx context.Context, paymentProviderID string) (models.Payer, StepResult) {
	payer := models.Payer{Name: PlaceholderCustomerName, Email: PlaceholderCustomerEmail}

	step := runBestEffort(ctx, r.logger, StepPayerLookup, func(ctx context.Context) error {
		if r.payers == nil {
			return errStepSkipped
		}
		if paymentProviderID == "" {
			return errors.New("no payment provider id")
		}

		found, err := r.payers.LookupPayer(ctx, paymentProviderID)
		if err != nil {
			return err
		}
		if found == nil {
			return errors.New("payer not found")
		}

		if found.Name != "" {
			payer.Name = found.Name
		}
		if found.Email != "" {
			payer.Email = found.Email
		}
		payer.CustomerID = found.CustomerID
		return nil
	})

	return payer, step
}

func (r *Reconciler) publishReconciled(ctx context.Context, event *models.PaymentEvent, orderID string) error {
	if r.publisher == nil {
		return errStepSkipped
	}
	return r.publisher.PublishPaymentReconciled(ctx, &models.PaymentReconciledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentReconciled,
			Timestamp: time.Now().UTC(),
		},
		OrderID:           orderID,
		UserID:            event.UserID,
		PaymentProviderID: event.PaymentProviderID,
		SeatIDs:           event.SeatIDs,
		Amount:            event.Amount.InexactFloat64(),
		Currency:          event.Currency,
	})
}

func (r *Reconciler) critical(step string, err error) error {
	util.CriticalStepFailuresTotal.WithLabelValues(step).Inc()
	util.PaymentEventsReconciledTotal.WithLabelValues("failed").Inc()
	r.logger.Error("Critical reconciliation step failed",
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}
