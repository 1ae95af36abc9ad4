package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Booking     BookingConfig
	Idempotency IdempotencyConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	SQS         SQSConfig
	Stripe      StripeConfig
	Worker      WorkerConfig
	Observ      ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// BookingConfig describes how to reach the downstream booking service.
type BookingConfig struct {
	BaseURL         string
	InternalSecret  string
	JWTSecret       string
	Timeout         time.Duration
	RPS             float64
	Burst           int
	SeatConcurrency int
}

type IdempotencyConfig struct {
	LookupEnabled bool
	CacheTTL      time.Duration
	LockTTL       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers         []string
	TopicPayments   string
	TopicRetry      string
	TopicDeadLetter string
	TopicReconciled string
	ConsumerGroup   string
	// RetryConsumerGroup consumes the retry topic, separate from ConsumerGroup
	RetryConsumerGroup string
	BatchSize          int
	BatchWait          time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	MaxRetryBackoff    time.Duration
}

type SQSConfig struct {
	Region            string
	QueueURL          string
	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type WorkerConfig struct {
	RecordConcurrency int
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	consumerGroup := getEnv("KAFKA_CONSUMER_GROUP", "payment-processor-group")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Booking: BookingConfig{
			BaseURL:         strings.TrimRight(getEnv("BOOKING_SERVICE_BASE_URL", getEnv("BOOKING_SERVICE_URL", "http://localhost:8080")), "/"),
			InternalSecret:  getEnv("BOOKING_INTERNAL_SECRET", ""),
			JWTSecret:       getEnv("BOOKING_JWT_SECRET", ""),
			Timeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_MS", 8000)) * time.Millisecond,
			RPS:             getEnvFloat("BOOKING_RPS", 50),
			Burst:           getEnvInt("BOOKING_BURST", 10),
			SeatConcurrency: getEnvInt("SEAT_CONCURRENCY", 8),
		},
		Idempotency: IdempotencyConfig{
			LookupEnabled: getEnvBool("ENABLE_IDEMPOTENCY_LOOKUP", true),
			CacheTTL:      getEnvDuration("IDEMPOTENCY_CACHE_TTL", 24*time.Hour),
			LockTTL:       getEnvDuration("IDEMPOTENCY_LOCK_TTL", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "")),
			TopicPayments:      getEnv("KAFKA_TOPIC_PAYMENTS", "payment-notifications"),
			TopicRetry:         getEnv("KAFKA_TOPIC_RETRY", "payment-notifications-retry"),
			TopicDeadLetter:    getEnv("KAFKA_TOPIC_DEAD_LETTER", "payment-notifications-dlq"),
			TopicReconciled:    getEnv("KAFKA_TOPIC_RECONCILED", "payment-reconciled"),
			ConsumerGroup:      consumerGroup,
			RetryConsumerGroup: getEnv("KAFKA_RETRY_CONSUMER_GROUP", consumerGroup+"-retry"),
			BatchSize:          getEnvInt("KAFKA_BATCH_SIZE", 10),
			BatchWait:          getEnvDuration("KAFKA_BATCH_WAIT", time.Second),
			MaxRetries:         getEnvInt("KAFKA_MAX_RETRIES", 5),
			RetryBackoff:       getEnvDuration("KAFKA_RETRY_BACKOFF", 5*time.Second),
			MaxRetryBackoff:    getEnvDuration("KAFKA_MAX_RETRY_BACKOFF", 5*time.Minute),
		},
		SQS: SQSConfig{
			Region:            getEnv("AWS_REGION", "us-east-1"),
			QueueURL:          getEnv("SQS_QUEUE_URL", ""),
			MaxMessages:       int32(getEnvInt("SQS_MAX_MESSAGES", 10)),
			WaitTimeSeconds:   int32(getEnvInt("SQS_WAIT_TIME_SECONDS", 20)),
			VisibilityTimeout: int32(getEnvInt("SQS_VISIBILITY_TIMEOUT", 60)),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Worker: WorkerConfig{
			RecordConcurrency: getEnvInt("RECORD_CONCURRENCY", 1),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, booking=%s", cfg.Server.Env, cfg.Server.Port, cfg.Booking.BaseURL)
	return cfg
}

// Warnings reports configuration concerns that do not prevent startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Booking.InternalSecret == "" && c.Booking.JWTSecret == "" {
		warnings = append(warnings, "no booking service secret configured: BOOKING_INTERNAL_SECRET and BOOKING_JWT_SECRET are empty, calls will be unauthenticated")
	}
	if c.Stripe.SecretKey == "" {
		warnings = append(warnings, "STRIPE_SECRET_KEY is empty: payer enrichment will use placeholder data")
	}
	if !c.Idempotency.LookupEnabled {
		warnings = append(warnings, "idempotency lookup disabled: every completed payment is treated as new")
	}
	return warnings
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Warning: invalid integer for %s (%s), using default %d", key, val, defaultVal)
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("Warning: invalid number for %s (%s), using default %v", key, val, defaultVal)
		return defaultVal
	}
	return v
}

// getEnvBool treats anything other than "false" as true when the variable is set.
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return strings.ToLower(strings.TrimSpace(val)) != "false"
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid duration for %s (%s), using default %v", key, val, defaultVal)
		return defaultVal
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
