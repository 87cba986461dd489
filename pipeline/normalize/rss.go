package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rickdeaconx/kirinvulndb/collector/vendorrss"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/util"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// severityHints orders wording cues from strongest to weakest so the first
// hit wins.
var severityHints = []struct {
	severity model.Severity
	words    []string
}{
	{model.SeverityCritical, []string{"critical", "urgent", "immediate", "zero-day"}},
	{model.SeverityHigh, []string{"high", "important", "severe"}},
	{model.SeverityMedium, []string{"medium", "moderate"}},
	{model.SeverityLow, []string{"low", "minor"}},
}

func (n *Normalizer) fromRSS(rec model.RawRecord) (model.Draft, error) {
	var entry vendorrss.Entry
	if err := json.Unmarshal(rec.Payload, &entry); err != nil {
		return model.Draft{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	description := stripHTML(entry.Description)
	fullText := entry.Title + " " + description
	tools := n.matcher.Match(fullText)
	if len(tools) == 0 {
		return model.Draft{}, fmt.Errorf("%w: feed entry %q matches no monitored tool", ErrIrrelevantRecord, entry.Title)
	}

	confidence := confidenceRSS
	severity, estimated := estimateSeverity(fullText)
	if !estimated {
		confidence -= severityPenalty
	}

	var references []string
	if entry.Link != "" {
		references = append(references, entry.Link)
	}

	d := model.Draft{
		Source:          rec.Source,
		SourceRef:       rec.SourceRef,
		CVEID:           util.ExtractCVEID(fullText),
		Title:           entry.Title,
		Description:     description,
		Severity:        severity,
		ConfidenceScore: confidence,
		AttackVectors:   extractAttackVectors(fullText, ""),
		AffectedTools:   tools,
		PatchStatus:     model.PatchStatusUnpatched,
		References:      references,
		POCAvailable:    mentionsPOC(fullText),
		ExploitInWild:   mentionsExploit(fullText),
		DiscoveryDate:   entry.Published.UTC(),
	}
	if d.DiscoveryDate.IsZero() {
		d.DiscoveryDate = rec.FetchedAt
	}
	return d, validate(d)
}

// estimateSeverity guesses severity from announcement wording. The second
// return value reports whether any hint actually matched.
func estimateSeverity(text string) (model.Severity, bool) {
	lower := strings.ToLower(text)
	for _, hint := range severityHints {
		for _, word := range hint.words {
			if strings.Contains(lower, word) {
				return hint.severity, true
			}
		}
	}
	return model.SeverityMedium, false
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, " "))
}
