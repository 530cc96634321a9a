package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

// MessageWriter is the part of *kafka.Writer the publishers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds a writer for one topic. brokers is a comma separated list.
func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// KafkaTriggerDispatcher publishes fulfillment triggers keyed by obligation
// id, so every trigger of one obligation lands on the same partition.
type KafkaTriggerDispatcher struct {
	writer MessageWriter
}

var _ interfaces.TriggerDispatcher = (*KafkaTriggerDispatcher)(nil)

func NewKafkaTriggerDispatcher(writer MessageWriter) *KafkaTriggerDispatcher {
	return &KafkaTriggerDispatcher{writer: writer}
}

func (d *KafkaTriggerDispatcher) Dispatch(ctx context.Context, trigger models.FulfillmentTrigger) error {
	payload, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger %s: %w", trigger.ID, err)
	}
	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(trigger.ObligationID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish trigger %s: %w", trigger.ID, err)
	}

	telemetry.Logger.Info("Fulfillment trigger published",
		zap.String("obligation_id", trigger.ObligationID),
		zap.String("trigger_id", trigger.ID),
	)
	return nil
}

// KafkaNotifier publishes obligation changes for downstream consumers.
type KafkaNotifier struct {
	writer MessageWriter
}

var _ interfaces.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, change models.ObligationChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(change.ObligationID),
		Value: payload,
	})
}
