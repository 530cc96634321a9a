package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TriggerHandler is implemented by service.Coordinator.
type TriggerHandler interface {
	OnFulfilled(ctx context.Context, trigger models.FulfillmentTrigger) error
}

func NewReader(brokers, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  splitBrokers(brokers),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// TriggerConsumer feeds fulfillment triggers from Kafka to the coordinator.
// Offsets are committed only after the handler accepted the trigger, so a
// crash redelivers it; the coordinator's per-line claims absorb the repeat.
type TriggerConsumer struct {
	reader  MessageReader
	handler TriggerHandler

	retryInterval time.Duration
}

func NewTriggerConsumer(reader MessageReader, handler TriggerHandler) *TriggerConsumer {
	return &TriggerConsumer{reader: reader, handler: handler, retryInterval: time.Second}
}

// Run consumes until ctx is cancelled.
func (c *TriggerConsumer) Run(ctx context.Context) {
	defer c.reader.Close()

	telemetry.Logger.Info("Started consuming fulfillment triggers")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		var trigger models.FulfillmentTrigger
		if err := json.Unmarshal(msg.Value, &trigger); err != nil {
			telemetry.Logger.Error("Error unmarshaling trigger, skipping",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else if err := c.handle(ctx, trigger); err != nil {
			// only cancellation ends the retry loop; leave the offset for the
			// next consumer of the partition
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Logger.Error("Error committing offset", zap.Error(err))
		}
	}
}

func (c *TriggerConsumer) handle(ctx context.Context, trigger models.FulfillmentTrigger) error {
	telemetry.Logger.Info("Processing fulfillment trigger",
		zap.String("obligation_id", trigger.ObligationID),
		zap.String("trigger_id", trigger.ID),
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		return c.handler.OnFulfilled(ctx, trigger)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		telemetry.Logger.Warn("Error processing fulfillment trigger",
			zap.String("trigger_id", trigger.ID),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	})
}
