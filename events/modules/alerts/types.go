// Package alerts defines types for Kafka event processing of alert dispatch
// events.
package alerts

import (
	"time"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// EventTypeRaised is published when an alert passes rate limiting and is
// dispatched.
const EventTypeRaised = "alert.raised"

// AlertEvent represents an alert dispatch event published to Kafka. Messages
// are keyed by vulnerability_id so alerts for one vulnerability stay ordered.
type AlertEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	Alert model.Alert `json:"alert"`
}
