package service

import (
	"context"
	"time"

	"payment-processor/config"
	"payment-processor/internal/util"

	"go.uber.org/zap"
)

// IdempotencyGuard decides whether a payment was already reconciled.
//
// It fails open: when the lookup itself fails the payment is treated as new.
type IdempotencyGuard struct {
	orders   OrderLister
	cache    ProcessedCache
	enabled  bool
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(orders OrderLister, cache ProcessedCache, cfg config.IdempotencyConfig) *IdempotencyGuard {
	return &IdempotencyGuard{
		orders:   orders,
		cache:    cache,
		enabled:  cfg.LookupEnabled,
		cacheTTL: cfg.CacheTTL,
		logger:   util.GetLogger(),
	}
}

// AlreadyProcessed reports whether an order carrying paymentProviderID exists
func (g *IdempotencyGuard) AlreadyProcessed(ctx context.Context, paymentProviderID string) bool {
	if paymentProviderID == "" || !g.enabled {
		return false
	}

	ctx, span := util.StartSpan(ctx, "IdempotencyGuard.AlreadyProcessed")
	defer span.End()

	if g.cache != nil {
		hit, err := g.cache.CheckIdempotencyKey(ctx, paymentProviderID)
		if err != nil {
			g.logger.Warn("Idempotency cache lookup failed", zap.Error(err))
		} else if hit {
			util.IdempotencyLookupsTotal.WithLabelValues("cache_hit").Inc()
			return true
		}
	}

	orders, err := g.orders.ListBookingOrders(ctx)
	if err != nil {
		util.IdempotencyLookupsTotal.WithLabelValues("error").Inc()
		g.logger.Error("Idempotency lookup failed, treating payment as new",
			zap.String("payment_provider_id", paymentProviderID),
			zap.Error(err))
		return false
	}

	for _, o := range orders {
		if o.PaymentProviderID == paymentProviderID {
			util.IdempotencyLookupsTotal.WithLabelValues("duplicate").Inc()
			return true
		}
	}

	util.IdempotencyLookupsTotal.WithLabelValues("new").Inc()
	return false
}

// MarkProcessed records a reconciled payment in the cache
func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, paymentProviderID string) error {
	if g.cache == nil || paymentProviderID == "" {
		return errStepSkipped
	}
	return g.cache.SetIdempotencyKey(ctx, paymentProviderID, "1", g.cacheTTL)
}
