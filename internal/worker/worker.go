package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"payment-processor/config"
	"payment-processor/internal/models"
	"payment-processor/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AttemptHeader counts how many times a message has been processed
const AttemptHeader = "x-payment-attempt"

// NotBeforeHeader holds the unix millisecond time before which a retried
// message must not be processed again
const NotBeforeHeader = "x-payment-not-before"

const (
	defaultMaxRetries      = 5
	defaultRetryBackoff    = 5 * time.Second
	defaultMaxRetryBackoff = 5 * time.Minute
)

// MessageSource is a Kafka topic read in batches with explicit commits
type MessageSource interface {
	Topic() string
	FetchBatch(ctx context.Context, maxMessages int, wait time.Duration) ([]kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageSink receives messages that must be processed again later
type MessageSink interface {
	PublishMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BatchHandler processes records and reports per record results
type BatchHandler interface {
	HandleBatch(ctx context.Context, records []models.Record) []models.BatchItemResult
}

// PaymentWorker drains a payment notification topic through the batch
// handler. Failed messages go to the retry topic stamped with an exponential
// not-before time, or to the dead letter topic once they ran out of attempts.
// A fetched batch is held until its latest not-before time has passed.
// Offsets are committed only after every failed message has been republished.
type PaymentWorker struct {
	source          MessageSource
	retry           MessageSink
	deadLetter      MessageSink
	handler         BatchHandler
	batchSize       int
	batchWait       time.Duration
	maxRetries      int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error
	logger          *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(
	source MessageSource,
	retry MessageSink,
	deadLetter MessageSink,
	handler BatchHandler,
	cfg config.KafkaConfig,
) *PaymentWorker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	batchWait := cfg.BatchWait
	if batchWait <= 0 {
		batchWait = time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	maxRetryBackoff := cfg.MaxRetryBackoff
	if maxRetryBackoff <= 0 {
		maxRetryBackoff = defaultMaxRetryBackoff
	}
	maxRetryBackoff = max(maxRetryBackoff, retryBackoff)

	return &PaymentWorker{
		source:          source,
		retry:           retry,
		deadLetter:      deadLetter,
		handler:         handler,
		batchSize:       batchSize,
		batchWait:       batchWait,
		maxRetries:      maxRetries,
		retryBackoff:    retryBackoff,
		maxRetryBackoff: maxRetryBackoff,
		now:             time.Now,
		sleep:           sleepContext,
		logger:          util.GetLogger(),
	}
}

// Start runs the worker until ctx is cancelled
func (w *PaymentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment worker", zap.String("topic", w.source.Topic()))

	for {
		if err := w.ProcessBatch(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Payment worker context cancelled, stopping")
				return ctx.Err()
			}
			w.logger.Error("Failed to process batch", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	w.logger.Info("Stopping payment worker", zap.String("topic", w.source.Topic()))
	return w.source.Close()
}

// ProcessBatch fetches one batch, runs it and commits it
func (w *PaymentWorker) ProcessBatch(ctx context.Context) error {
	msgs, err := w.source.FetchBatch(ctx, w.batchSize, w.batchWait)
	if err != nil {
		return fmt.Errorf("failed to fetch batch: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := w.waitNotBefore(ctx, msgs); err != nil {
		return err
	}

	ctx, span := util.StartSpan(ctx, "PaymentWorker.ProcessBatch")
	defer span.End()

	records := make([]models.Record, len(msgs))
	byID := make(map[string]kafka.Message, len(msgs))
	for i, m := range msgs {
		id := MessageID(m)
		records[i] = models.Record{MessageID: id, Body: m.Value}
		byID[id] = m
	}

	var retry, dead []kafka.Message
	for _, res := range w.handler.HandleBatch(ctx, records) {
		if res.Success {
			continue
		}
		m := byID[res.Identifier]
		attempt := Attempt(m) + 1
		next := withAttempt(m, attempt)
		if attempt > w.maxRetries {
			w.logger.Error("Payment notification exhausted its retries",
				zap.String("message_id", res.Identifier),
				zap.Int("attempt", attempt),
				zap.Error(res.Err))
			dead = append(dead, next)
			continue
		}
		notBefore := w.now().Add(w.backoff(attempt))
		next.Headers = append(next.Headers, kafka.Header{
			Key:   NotBeforeHeader,
			Value: []byte(strconv.FormatInt(notBefore.UnixMilli(), 10)),
		})
		retry = append(retry, next)
	}

	if err := w.republish(ctx, w.retry, retry); err != nil {
		return fmt.Errorf("failed to publish retries: %w", err)
	}
	if err := w.republish(ctx, w.deadLetter, dead); err != nil {
		return fmt.Errorf("failed to publish dead letters: %w", err)
	}

	if err := w.source.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	w.logger.Info("Committed batch",
		zap.String("topic", w.source.Topic()),
		zap.Int("messages", len(msgs)),
		zap.Int("retried", len(retry)),
		zap.Int("dead_lettered", len(dead)))
	return nil
}

var errNoSink = errors.New("no topic configured for failed messages")

// waitNotBefore holds the batch until every message in it is due
func (w *PaymentWorker) waitNotBefore(ctx context.Context, msgs []kafka.Message) error {
	var due time.Time
	for _, m := range msgs {
		if t, ok := NotBefore(m); ok && t.After(due) {
			due = t
		}
	}

	wait := due.Sub(w.now())
	if due.IsZero() || wait <= 0 {
		return nil
	}

	w.logger.Debug("Holding retried batch until due",
		zap.String("topic", w.source.Topic()),
		zap.Duration("wait", wait))
	if err := w.sleep(ctx, wait); err != nil {
		return fmt.Errorf("waiting for retry backoff: %w", err)
	}
	return nil
}

// backoff doubles the base delay per attempt, capped at maxRetryBackoff
func (w *PaymentWorker) backoff(attempt int) time.Duration {
	d := w.retryBackoff
	for i := 1; i < attempt && d < w.maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, w.maxRetryBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *PaymentWorker) republish(ctx context.Context, sink MessageSink, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if sink == nil {
		return errNoSink
	}
	return sink.PublishMessages(ctx, msgs...)
}

// MessageID identifies a message within its topic
func MessageID(m kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

// Attempt returns how many times m was already processed
func Attempt(m kafka.Message) int {
	for _, h := range m.Headers {
		if h.Key == AttemptHeader {
			n, err := strconv.Atoi(string(h.Value))
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// NotBefore returns the time before which m must not be processed, if set
func NotBefore(m kafka.Message) (time.Time, bool) {
	for _, h := range m.Headers {
		if h.Key == NotBeforeHeader {
			ms, err := strconv.ParseInt(string(h.Value), 10, 64)
			if err != nil {
				return time.Time{}, false
			}
			return time.UnixMilli(ms), true
		}
	}
	return time.Time{}, false
}

func withAttempt(m kafka.Message, attempt int) kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers)+2)
	for _, h := range m.Headers {
		if h.Key != AttemptHeader && h.Key != NotBeforeHeader {
			headers = append(headers, h)
		}
	}
	headers = append(headers, kafka.Header{Key: AttemptHeader, Value: []byte(strconv.Itoa(attempt))})

	return kafka.Message{Key: m.Key, Value: m.Value, Headers: headers}
}
