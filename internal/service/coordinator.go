package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"payment-processor/internal/models"
	"payment-processor/internal/normalizer"
	"payment-processor/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventReconciler runs the side effects of one canonical event
type EventReconciler interface {
	Reconcile(ctx context.Context, event *models.PaymentEvent) (*ReconcileResult, error)
}

// Coordinator turns an invocation (a batch of records or a single event)
// into reconciliations and builds the response the caller expects.
type Coordinator struct {
	reconciler  EventReconciler
	concurrency int
	logger      *zap.Logger
}

// NewCoordinator creates a coordinator. A concurrency of 1 or less processes
// records one at a time in arrival order.
func NewCoordinator(reconciler EventReconciler, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		reconciler:  reconciler,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

// Handle dispatches on the invocation shape. A JSON object with a Records
// field is a batch and yields a models.BatchResponse; anything else is a
// direct event and yields a models.DirectResponse.
func (c *Coordinator) Handle(ctx context.Context, raw json.RawMessage) any {
	if records, ok := batchRecords(raw); ok {
		return BuildBatchResponse(c.HandleBatch(ctx, records))
	}
	return c.HandleDirect(ctx, raw)
}

// HandleBatch processes every record and reports one result per record, in
// arrival order. A failing record never stops the others.
func (c *Coordinator) HandleBatch(ctx context.Context, records []models.Record) []models.BatchItemResult {
	ctx, span := util.StartSpan(ctx, "Coordinator.HandleBatch")
	defer span.End()

	results := make([]models.BatchItemResult, len(records))

	if c.concurrency == 1 {
		for i, rec := range records {
			results[i] = c.processRecord(ctx, rec)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for i, rec := range records {
			i, rec := i, rec
			g.Go(func() error {
				results[i] = c.processRecord(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	c.logger.Info("Batch processed",
		zap.Int("records", len(records)),
		zap.Int("failed", failed))

	return results
}

// HandleDirect processes a single event body
func (c *Coordinator) HandleDirect(ctx context.Context, body json.RawMessage) models.DirectResponse {
	ctx, span := util.StartSpan(ctx, "Coordinator.HandleDirect")
	defer span.End()

	if _, err := c.Process(ctx, body); err != nil {
		c.logger.Error("Direct event failed", zap.Error(err))
		return models.DirectResponse{StatusCode: http.StatusInternalServerError, Body: "ERROR"}
	}
	return models.DirectResponse{StatusCode: http.StatusOK, Body: "OK"}
}

// Process decodes, normalizes and reconciles one message body. The body may
// be a JSON object or a JSON string holding one. A panic during processing
// is returned as an error.
func (c *Coordinator) Process(ctx context.Context, body json.RawMessage) (result *ReconcileResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing message: %v", p)
		}
	}()

	decoded, err := decodeBody(body)
	if err != nil {
		util.PaymentEventsRejectedTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}

	event := normalizer.Normalize(decoded)
	if event == nil {
		util.PaymentEventsRejectedTotal.WithLabelValues("unsupported").Inc()
		return nil, models.ErrUnsupportedMessage
	}
	util.PaymentEventsReceivedTotal.WithLabelValues(event.Source).Inc()

	return c.reconciler.Reconcile(ctx, event)
}

func (c *Coordinator) processRecord(ctx context.Context, rec models.Record) models.BatchItemResult {
	res := models.BatchItemResult{Identifier: rec.MessageID, Success: true}

	if _, err := c.Process(ctx, rec.Body); err != nil {
		res.Success = false
		res.Err = err
		util.BatchRecordsTotal.WithLabelValues("failed").Inc()

		if rec.MessageID == "" {
			c.logger.Error("Record without message id failed and cannot be redelivered", zap.Error(err))
		} else {
			c.logger.Error("Record failed",
				zap.String("message_id", rec.MessageID),
				zap.Error(err))
		}
		return res
	}

	util.BatchRecordsTotal.WithLabelValues("succeeded").Inc()
	return res
}

// BuildBatchResponse lists the failed records, in arrival order
func BuildBatchResponse(results []models.BatchItemResult) models.BatchResponse {
	resp := models.BatchResponse{BatchItemFailures: []models.BatchItemFailure{}}
	for _, res := range results {
		if !res.Success && res.Identifier != "" {
			resp.BatchItemFailures = append(resp.BatchItemFailures, models.BatchItemFailure{ItemIdentifier: res.Identifier})
		}
	}
	return resp
}

func batchRecords(raw json.RawMessage) ([]models.Record, bool) {
	var envelope struct {
		Records json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}
	if len(envelope.Records) == 0 || bytes.Equal(envelope.Records, []byte("null")) {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(envelope.Records, &items); err != nil {
		return nil, false
	}

	records := make([]models.Record, len(items))
	for i, item := range items {
		// a record that does not decode still gets a slot so it fails on its own
		var rec models.Record
		if err := json.Unmarshal(item, &rec); err != nil {
			rec = models.Record{Body: item}
		}
		records[i] = rec
	}
	return records, true
}

var errEmptyBody = errors.New("empty message body")

func decodeBody(body json.RawMessage) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, errEmptyBody
	}

	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("malformed message body: %w", err)
		}
		body = bytes.TrimSpace([]byte(inner))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("malformed message body: %w", err)
	}
	if decoded == nil {
		return nil, errEmptyBody
	}
	return decoded, nil
}
