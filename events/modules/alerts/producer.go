// Package alerts handles Kafka event production for alert dispatch events.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// AlertProducer handles sending alert events to Kafka.
type AlertProducer struct {
	Writer *kafka.Writer
}

// NewAlertProducer initializes a new Kafka writer for alert events.
func NewAlertProducer(brokers []string, topic string) *AlertProducer {
	return &AlertProducer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// PublishRaised sends an alert.raised event to the Kafka topic.
func (p *AlertProducer) PublishRaised(ctx context.Context, alert model.Alert) error {
	event := AlertEvent{
		EventType:     EventTypeRaised,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Alert:         alert,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.VulnerabilityID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer.
func (p *AlertProducer) Close() error {
	return p.Writer.Close()
}
