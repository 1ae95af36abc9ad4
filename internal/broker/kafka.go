package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-processor/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// Topic returns the topic this producer writes to
func (p *Producer) Topic() string {
	return p.writer.Topic
}

// PublishEvent publishes a JSON encoded event under key
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.PublishMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("Published event",
		zap.String("topic", p.writer.Topic),
		zap.String("key", key),
		zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// PublishMessages writes raw messages. Topic fields are cleared since the
// writer owns the destination topic.
func (p *Producer) PublishMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafka.Message{Key: m.Key, Value: m.Value, Headers: m.Headers, Time: time.Now()}
	}

	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer. Offsets are committed
// explicitly.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{reader: reader}
}

// Topic returns the topic this consumer reads from
func (c *Consumer) Topic() string {
	return c.reader.Config().Topic
}

// FetchBatch blocks for the first message, then collects more until
// maxMessages are read or wait elapses.
func (c *Consumer) FetchBatch(ctx context.Context, maxMessages int, wait time.Duration) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	messages := make([]kafka.Message, 0, maxMessages)
	messages = append(messages, first)

	fillCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for len(messages) < maxMessages {
		msg, err := c.reader.FetchMessage(fillCtx)
		if err != nil {
			// wait elapsed or the reader stopped; hand over what we have
			break
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// CommitMessages commits the offsets of msgs
func (c *Consumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
