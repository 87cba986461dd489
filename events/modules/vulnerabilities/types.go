// Package vulnerabilities defines types for Kafka event processing of
// vulnerability change events.
package vulnerabilities

import (
	"time"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// Event types published to the vulnerability topic.
const (
	EventTypeCreated = "vulnerability.created"
	EventTypeUpdated = "vulnerability.updated"
)

// VulnerabilityEvent represents a vulnerability create or update event
// published to Kafka. Messages are keyed by vulnerability_id so every change
// to one record lands in the same partition, in order.
type VulnerabilityEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	Vulnerability model.Vulnerability `json:"vulnerability"`
}
