// Package normalize converts raw source records into drafts in the canonical
// vulnerability shape. Each source keeps its own decoder; the shared rules
// (severity fallback, attack vector extraction, confidence) live here.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/collector/ghsa"
	"github.com/rickdeaconx/kirinvulndb/collector/nvd"
	"github.com/rickdeaconx/kirinvulndb/collector/osv"
	"github.com/rickdeaconx/kirinvulndb/collector/vendorrss"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ErrMalformedRecord marks a raw record that cannot yield a usable draft:
// undecodable payload, or missing both a title and any reference or
// identifier. Malformed records are logged and skipped, never retried.
var ErrMalformedRecord = errors.New("malformed record")

// ErrIrrelevantRecord marks a well-formed record that names no monitored
// tool. These are dropped quietly; collector prefilters are keyword-broad on
// purpose and some spillover is expected.
var ErrIrrelevantRecord = errors.New("record matches no monitored tool")

// Source confidence baselines. Structured databases rank above curated
// advisories, which rank above free-text feeds.
const (
	confidenceNVD  = 0.9
	confidenceGHSA = 0.85
	confidenceOSV  = 0.8
	confidenceRSS  = 0.7

	// severityPenalty applies when a source reports no usable severity and
	// the draft falls back to MEDIUM.
	severityPenalty = 0.1
)

// attackVectorKeywords maps canonical attack vector names to the wording
// that implies them.
var attackVectorKeywords = map[string][]string{
	"rce":              {"remote code execution", "code execution", "rce"},
	"injection":        {"injection", "sql injection", "command injection"},
	"xss":              {"cross-site scripting", "xss"},
	"prompt_injection": {"prompt injection", "model injection"},
}

// exploitKeywords flag in-the-wild exploitation in advisory text.
var exploitKeywords = []string{
	"actively exploited", "exploitation in the wild", "exploited in the wild",
	"under active exploitation",
}

// pocKeywords flag public proof-of-concept availability.
var pocKeywords = []string{
	"proof of concept", "proof-of-concept", "poc available", "public exploit",
	"exploit code",
}

// Normalizer turns raw records into drafts. It is stateless apart from the
// tool matcher and the logger.
type Normalizer struct {
	matcher *collector.ToolMatcher
	logger  *zap.SugaredLogger
}

func New(matcher *collector.ToolMatcher, logger *zap.SugaredLogger) *Normalizer {
	return &Normalizer{matcher: matcher, logger: logger}
}

// Normalize dispatches on the record's source tag. An unknown source is a
// malformed record: it means a collector emitted a tag no decoder owns.
func (n *Normalizer) Normalize(rec model.RawRecord) (model.Draft, error) {
	switch {
	case rec.Source == nvd.Source:
		return n.fromNVD(rec)
	case rec.Source == ghsa.Source:
		return n.fromGHSA(rec)
	case rec.Source == osv.Source:
		return n.fromOSV(rec)
	case strings.HasPrefix(rec.Source, vendorrss.SourcePrefix):
		return n.fromRSS(rec)
	default:
		return model.Draft{}, fmt.Errorf("%w: unknown source %q", ErrMalformedRecord, rec.Source)
	}
}

// validate enforces the floor every draft must clear: a title, and at least
// one reference or identifier to anchor it.
func validate(d model.Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrMalformedRecord)
	}
	if d.CVEID == "" && len(d.References) == 0 {
		return fmt.Errorf("%w: no identifier or reference", ErrMalformedRecord)
	}
	return nil
}

// extractAttackVectors scans text and an optional CVSS vector for canonical
// attack vector names. Order is fixed for stable output.
func extractAttackVectors(text, cvssVector string) []string {
	lower := strings.ToLower(text)
	var vectors []string
	for _, name := range []string{"rce", "injection", "xss", "prompt_injection"} {
		for _, kw := range attackVectorKeywords[name] {
			if strings.Contains(lower, kw) {
				vectors = append(vectors, name)
				break
			}
		}
	}
	if cvssVector != "" {
		if strings.Contains(cvssVector, "AV:N") && !contains(vectors, "rce") {
			vectors = append(vectors, "rce")
		}
		if strings.Contains(cvssVector, "PR:N") && !contains(vectors, "injection") {
			vectors = append(vectors, "injection")
		}
	}
	return vectors
}

func mentionsExploit(text string) bool { return containsAny(text, exploitKeywords) }
func mentionsPOC(text string) bool     { return containsAny(text, pocKeywords) }

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func parseTime(value string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
