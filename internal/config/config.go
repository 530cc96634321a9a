package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Persistence. An empty DatabaseURL runs on in-memory stores.
	DatabaseURL string

	// Redis holds the processed-trigger set shared by all instances. Claims
	// never expire unless TriggerClaimTTL is set; an expired claim lets a
	// redelivered trigger decrement stock again.
	RedisURL        string
	TriggerClaimTTL time.Duration

	// Kafka carries fulfillment triggers and obligation change events.
	KafkaBrokers    string
	TriggerTopic    string
	ChangeTopic     string
	ConsumerGroupID string

	// NATS delivers obligation changes to terminals.
	NatsURL string

	JaegerEndpoint string
	LogLevel       string

	SettlementTimeout   time.Duration
	ConflictRetries     int
	StockRetryInterval  time.Duration
	StockRetryMaxElapse time.Duration
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvDefault("PORT", "8082"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		TriggerTopic:    getEnvDefault("KAFKA_TRIGGER_TOPIC", "obligation.fulfilled"),
		ChangeTopic:     getEnvDefault("KAFKA_CHANGE_TOPIC", "obligation.changed"),
		ConsumerGroupID: getEnvDefault("KAFKA_GROUP_ID", "settlement-engine"),
		NatsURL:         os.Getenv("NATS_URL"),
		JaegerEndpoint:  os.Getenv("JAEGER_ENDPOINT"),
		LogLevel:        getEnvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.TriggerClaimTTL, err = getExpiry("TRIGGER_CLAIM_TTL"); err != nil {
		return nil, err
	}
	if cfg.SettlementTimeout, err = getDurationDefault("SETTLEMENT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.StockRetryInterval, err = getDurationDefault("STOCK_RETRY_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.StockRetryMaxElapse, err = getDurationDefault("STOCK_RETRY_MAX_ELAPSED", 10*time.Minute); err != nil {
		return nil, err
	}

	retries := getEnvDefault("CONFLICT_RETRIES", "3")
	cfg.ConflictRetries, err = strconv.Atoi(retries)
	if err != nil || cfg.ConflictRetries < 1 {
		return nil, fmt.Errorf("CONFLICT_RETRIES must be a positive integer, got %q", retries)
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}

// getExpiry reads an optional expiry. Unset or "0" means no expiry.
func getExpiry(key string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" || value == "0" {
		return 0, nil
	}
	return getDurationDefault(key, 0)
}
