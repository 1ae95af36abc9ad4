package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"payment-processor/config"
	"payment-processor/internal/app"
	"payment-processor/internal/models"
	"payment-processor/internal/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// handleFunc is the Lambda handler for queued batches and direct events
type handleFunc func(ctx context.Context, raw json.RawMessage) (any, error)

type invocationHandler interface {
	Handle(ctx context.Context, raw json.RawMessage) any
}

func newHandler(h invocationHandler) handleFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		switch resp := h.Handle(ctx, raw).(type) {
		case models.BatchResponse:
			return sqsResponse(resp), nil
		default:
			return resp, nil
		}
	}
}

func sqsResponse(resp models.BatchResponse) events.SQSEventResponse {
	out := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, f := range resp.BatchItemFailures {
		out.BatchItemFailures = append(out.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: f.ItemIdentifier})
	}
	return out
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	tp, err := util.InitTracer("payment-processor", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	application := app.New(cfg)
	defer application.Close()

	util.GetLogger().Info("Starting payment processor lambda", zap.String("env", cfg.Server.Env))
	lambda.Start(newHandler(application.Coordinator))
}
