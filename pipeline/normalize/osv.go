package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/osv-scanner/pkg/models"

	"github.com/rickdeaconx/kirinvulndb/collector/osv"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/util"
)

func (n *Normalizer) fromOSV(rec model.RawRecord) (model.Draft, error) {
	var entry osv.Record
	if err := json.Unmarshal(rec.Payload, &entry); err != nil {
		return model.Draft{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	vuln := entry.Vulnerability
	if vuln.ID == "" {
		return model.Draft{}, fmt.Errorf("%w: missing OSV id", ErrMalformedRecord)
	}

	fullText := vuln.Summary + " " + vuln.Details
	tools := n.matcher.Match(fullText)
	if entry.Tool != "" && !contains(tools, entry.Tool) {
		// The watched package binds the advisory to a tool even when the text
		// never names it.
		tools = append(tools, entry.Tool)
	}
	if len(tools) == 0 {
		return model.Draft{}, fmt.Errorf("%w: %s matches no monitored tool", ErrIrrelevantRecord, vuln.ID)
	}

	confidence := confidenceOSV
	vector := osvCVSSVector(vuln.Severity)
	var severity model.Severity
	var cvssScore *float64
	if vector != "" {
		score := util.CalculateCVSSScore(vector)
		if score > 0 {
			cvssScore = &score
			severity = model.SeverityFromScore(score)
		}
	}
	if severity == "" {
		severity = model.SeverityMedium
		confidence -= severityPenalty
	}

	var references []string
	for _, ref := range vuln.References {
		if ref.URL != "" {
			references = append(references, ref.URL)
		}
	}

	title := vuln.Summary
	if title == "" {
		title = vuln.ID + ": advisory for " + entry.Tool
	}

	patchStatus := model.PatchStatusUnpatched
	fixedVersion := osvFixedVersion(vuln.Affected)
	if fixedVersion != "" {
		patchStatus = model.PatchStatusPatchAvailable
	}

	d := model.Draft{
		Source:          rec.Source,
		SourceRef:       rec.SourceRef,
		CVEID:           osvCVEAlias(vuln),
		Title:           title,
		Description:     vuln.Details,
		Severity:        severity,
		CVSSScore:       cvssScore,
		CVSSVector:      vector,
		ConfidenceScore: confidence,
		AttackVectors:   extractAttackVectors(fullText, vector),
		AffectedTools:   tools,
		PatchStatus:     patchStatus,
		FixedVersion:    fixedVersion,
		References:      references,
		POCAvailable:    mentionsPOC(fullText),
		ExploitInWild:   mentionsExploit(fullText),
		DiscoveryDate:   vuln.Published.UTC(),
	}
	if d.DiscoveryDate.IsZero() {
		d.DiscoveryDate = rec.FetchedAt
	}
	return d, validate(d)
}

// osvCVEAlias returns the CVE alias of an OSV entry, or the entry's own ID
// when it already is a CVE.
func osvCVEAlias(vuln models.Vulnerability) string {
	if strings.HasPrefix(vuln.ID, "CVE-") {
		return vuln.ID
	}
	for _, alias := range vuln.Aliases {
		if strings.HasPrefix(alias, "CVE-") {
			return alias
		}
	}
	return ""
}

// osvCVSSVector prefers the newest CVSS severity entry present.
func osvCVSSVector(severities []models.Severity) string {
	var v3, v2 string
	for _, s := range severities {
		switch s.Type {
		case models.SeverityCVSSV4:
			return s.Score
		case models.SeverityCVSSV3:
			if v3 == "" {
				v3 = s.Score
			}
		case models.SeverityCVSSV2:
			if v2 == "" {
				v2 = s.Score
			}
		}
	}
	if v3 != "" {
		return v3
	}
	return v2
}

// osvFixedVersion returns the first fixed version announced across the
// affected ranges.
func osvFixedVersion(affected []models.Affected) string {
	for _, aff := range affected {
		for _, r := range aff.Ranges {
			for _, ev := range r.Events {
				if ev.Fixed != "" {
					return ev.Fixed
				}
			}
		}
	}
	return ""
}
