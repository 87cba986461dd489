package model

import (
	"encoding/json"
	"time"
)

// RawRecord is the tagged envelope a source adapter emits for a single
// advisory before normalization. Payload holds the source-specific document
// verbatim; it is only interpreted by the normalizer for that source.
type RawRecord struct {
	Source    string          `json:"source"`
	SourceRef string          `json:"source_ref"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}
