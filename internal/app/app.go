// Package app wires the reconciliation pipeline from configuration. It is
// shared by the HTTP server and the Lambda entry point.
package app

import (
	"payment-processor/config"
	"payment-processor/internal/api"
	"payment-processor/internal/bookingclient"
	"payment-processor/internal/broker"
	"payment-processor/internal/redisclient"
	"payment-processor/internal/service"
	"payment-processor/internal/stripeclient"
	"payment-processor/internal/util"

	"go.uber.org/zap"
)

// App holds the wired pipeline and the resources it owns
type App struct {
	Coordinator *service.Coordinator
	Checks      map[string]api.ReadinessCheck

	closers []func() error
	logger  *zap.Logger
}

// New builds the pipeline. Redis and Kafka are optional: when their address
// is empty the cache, lock and reconciled events are disabled.
func New(cfg *config.Config) *App {
	logger := util.GetLogger()
	a := &App{Checks: map[string]api.ReadinessCheck{}, logger: logger}

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	booking := bookingclient.NewClient(cfg.Booking)

	var cache service.ProcessedCache
	opts := []service.ReconcilerOption{
		service.WithSeatConcurrency(cfg.Booking.SeatConcurrency),
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Redis unavailable, running without idempotency cache", zap.Error(err))
		} else {
			logger.Info("Redis connected")
			cache = redisClient
			opts = append(opts, service.WithLocker(redisClient, cfg.Idempotency.LockTTL))
			a.Checks["redis"] = redisClient.Ping
			a.closers = append(a.closers, redisClient.Close)
		}
	}

	if cfg.Stripe.SecretKey != "" {
		opts = append(opts, service.WithPayerLookup(stripeclient.NewPayerLookup(cfg.Stripe.SecretKey)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReconciled)
		opts = append(opts, service.WithPublisher(broker.NewEventPublisher(producer)))
		a.closers = append(a.closers, producer.Close)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicReconciled))
	}

	guard := service.NewIdempotencyGuard(booking, cache, cfg.Idempotency)
	reconciler := service.NewReconciler(booking, guard, opts...)
	a.Coordinator = service.NewCoordinator(reconciler, cfg.Worker.RecordConcurrency)

	return a
}

// Close releases everything New opened
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing resource", zap.Error(err))
		}
	}
}
