// Package messaging polls the payment notification queue on SQS.
package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appconfig "payment-processor/config"
	"payment-processor/internal/models"
	"payment-processor/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// deleteBatchLimit is the SQS maximum of entries per DeleteMessageBatch
const deleteBatchLimit = 10

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// BatchHandler processes records and reports per record results
type BatchHandler interface {
	HandleBatch(ctx context.Context, records []models.Record) []models.BatchItemResult
}

// Poller long-polls a queue and runs each receive as one batch. Only
// messages that succeeded are deleted; failed ones reappear once their
// visibility timeout expires.
type Poller struct {
	client            sqsAPI
	queueURL          string
	maxMessages       int32
	waitTimeSeconds   int32
	visibilityTimeout int32
	handler           BatchHandler
	logger            *zap.Logger
}

// NewPoller creates a poller using the default AWS credential chain
func NewPoller(ctx context.Context, cfg appconfig.SQSConfig, handler BatchHandler) (*Poller, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return newPoller(sqs.NewFromConfig(awsCfg), cfg, handler), nil
}

func newPoller(client sqsAPI, cfg appconfig.SQSConfig, handler BatchHandler) *Poller {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 || maxMessages > 10 {
		maxMessages = 10
	}
	return &Poller{
		client:            client,
		queueURL:          cfg.QueueURL,
		maxMessages:       maxMessages,
		waitTimeSeconds:   cfg.WaitTimeSeconds,
		visibilityTimeout: cfg.VisibilityTimeout,
		handler:           handler,
		logger:            util.GetLogger(),
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Starting SQS poller", zap.String("queue_url", p.queueURL))

	for {
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("SQS poller context cancelled, stopping")
				return ctx.Err()
			}
			p.logger.Error("SQS poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// PollOnce receives one batch, processes it and deletes the successes
func (p *Poller) PollOnce(ctx context.Context) error {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.queueURL),
		MaxNumberOfMessages: p.maxMessages,
		WaitTimeSeconds:     p.waitTimeSeconds,
		VisibilityTimeout:   p.visibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil
	}

	ctx, span := util.StartSpan(ctx, "Poller.PollOnce")
	defer span.End()

	records := make([]models.Record, len(out.Messages))
	handles := make(map[string]string, len(out.Messages))
	for i, m := range out.Messages {
		id := aws.ToString(m.MessageId)
		records[i] = models.Record{MessageID: id, Body: []byte(aws.ToString(m.Body))}
		handles[id] = aws.ToString(m.ReceiptHandle)
	}

	var done []string
	for _, res := range p.handler.HandleBatch(ctx, records) {
		if res.Success && res.Identifier != "" {
			done = append(done, handles[res.Identifier])
		}
	}

	return p.delete(ctx, done)
}

func (p *Poller) delete(ctx context.Context, receiptHandles []string) error {
	for start := 0; start < len(receiptHandles); start += deleteBatchLimit {
		end := min(start+deleteBatchLimit, len(receiptHandles))

		entries := make([]types.DeleteMessageBatchRequestEntry, 0, end-start)
		for i, h := range receiptHandles[start:end] {
			entries = append(entries, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(start + i)),
				ReceiptHandle: aws.String(h),
			})
		}

		out, err := p.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		for _, f := range out.Failed {
			// the message comes back and is deduplicated by the idempotency guard
			p.logger.Warn("Failed to delete processed message",
				zap.String("entry_id", aws.ToString(f.Id)),
				zap.String("code", aws.ToString(f.Code)),
				zap.String("message", aws.ToString(f.Message)))
		}
	}
	return nil
}
