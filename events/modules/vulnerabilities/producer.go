// Package vulnerabilities handles Kafka event production for vulnerability
// change events.
package vulnerabilities

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// VulnerabilityProducer handles sending vulnerability change events to Kafka.
type VulnerabilityProducer struct {
	Writer *kafka.Writer
}

// NewVulnerabilityProducer initializes a new Kafka writer for vulnerability events.
func NewVulnerabilityProducer(brokers []string, topic string) *VulnerabilityProducer {
	return &VulnerabilityProducer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// PublishChange sends a created or updated event to the Kafka topic.
func (p *VulnerabilityProducer) PublishChange(ctx context.Context, eventType string, vuln model.Vulnerability) error {
	event := VulnerabilityEvent{
		EventType:     eventType,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Vulnerability: vuln,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(vuln.VulnerabilityID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer.
func (p *VulnerabilityProducer) Close() error {
	return p.Writer.Close()
}
