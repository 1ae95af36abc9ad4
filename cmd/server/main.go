package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-processor/config"
	"payment-processor/internal/api"
	"payment-processor/internal/app"
	"payment-processor/internal/broker"
	"payment-processor/internal/messaging"
	"payment-processor/internal/util"
	"payment-processor/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting payment processor")

	tp, err := util.InitTracer("payment-processor", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	application := app.New(cfg)
	defer application.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var stops []func() error

	if len(cfg.Kafka.Brokers) > 0 {
		retryProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRetry)
		defer retryProducer.Close()
		deadLetterProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDeadLetter)
		defer deadLetterProducer.Close()

		// the retry topic is drained by its own worker and feeds back into itself
		for _, sub := range subscriptions(cfg.Kafka) {
			sub := sub
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, sub.topic, sub.group)
			w := worker.NewPaymentWorker(consumer, retryProducer, deadLetterProducer, application.Coordinator, cfg.Kafka)
			stops = append(stops, w.Stop)
			go func() {
				if err := w.Start(workerCtx); err != nil && err != context.Canceled {
					logger.Error("Payment worker error", zap.String("topic", sub.topic), zap.Error(err))
				}
			}()
		}
	}

	if cfg.SQS.QueueURL != "" {
		poller, err := messaging.NewPoller(workerCtx, cfg.SQS, application.Coordinator)
		if err != nil {
			log.Fatalf("Failed to initialize SQS poller: %v", err)
		}
		go func() {
			if err := poller.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("SQS poller error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(application.Coordinator, cfg.Stripe.WebhookSecret, application.Checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	for _, stop := range stops {
		if err := stop(); err != nil {
			logger.Warn("Error stopping worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

type subscription struct {
	topic string
	group string
}

// subscriptions lists the topics drained by payment workers. The retry topic
// has its own consumer group.
func subscriptions(cfg config.KafkaConfig) []subscription {
	return []subscription{
		{topic: cfg.TopicPayments, group: cfg.ConsumerGroup},
		{topic: cfg.TopicRetry, group: cfg.RetryConsumerGroup},
	}
}
