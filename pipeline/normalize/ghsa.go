package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickdeaconx/kirinvulndb/collector/ghsa"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/util"
)

var ghsaSeverity = map[string]model.Severity{
	"critical": model.SeverityCritical,
	"high":     model.SeverityHigh,
	"medium":   model.SeverityMedium,
	"low":      model.SeverityLow,
}

func (n *Normalizer) fromGHSA(rec model.RawRecord) (model.Draft, error) {
	var adv ghsa.Advisory
	if err := json.Unmarshal(rec.Payload, &adv); err != nil {
		return model.Draft{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	fullText := adv.Summary + " " + adv.Description
	tools := n.matcher.Match(fullText)
	if len(tools) == 0 {
		return model.Draft{}, fmt.Errorf("%w: %s matches no monitored tool", ErrIrrelevantRecord, adv.GHSAID)
	}

	confidence := confidenceGHSA
	severity, ok := ghsaSeverity[strings.ToLower(adv.Severity)]
	if !ok {
		severity = model.SeverityMedium
		confidence -= severityPenalty
	}

	var cvssScore *float64
	var cvssVector string
	if adv.CVSS != nil {
		cvssVector = adv.CVSS.VectorString
		score := adv.CVSS.Score
		if score == 0 && cvssVector != "" {
			score = util.CalculateCVSSScore(cvssVector)
		}
		if score > 0 {
			cvssScore = &score
		}
	}

	references := make([]string, 0, len(adv.References)+1)
	if adv.HTMLURL != "" {
		references = append(references, adv.HTMLURL)
	}
	references = append(references, adv.References...)

	patchStatus := model.PatchStatusUnpatched
	var fixedVersion string
	for _, v := range adv.Vulns {
		if v.FirstPatchedVersion != "" {
			patchStatus = model.PatchStatusPatchAvailable
			fixedVersion = v.FirstPatchedVersion
			break
		}
	}

	d := model.Draft{
		Source:          rec.Source,
		SourceRef:       rec.SourceRef,
		CVEID:           adv.CVEID,
		Title:           adv.Summary,
		Description:     adv.Description,
		Severity:        severity,
		CVSSScore:       cvssScore,
		CVSSVector:      cvssVector,
		ConfidenceScore: confidence,
		AttackVectors:   extractAttackVectors(fullText, cvssVector),
		AffectedTools:   tools,
		PatchStatus:     patchStatus,
		FixedVersion:    fixedVersion,
		References:      references,
		POCAvailable:    mentionsPOC(fullText),
		ExploitInWild:   mentionsExploit(fullText),
		DiscoveryDate:   adv.PublishedAt.UTC(),
	}
	if d.DiscoveryDate.IsZero() {
		d.DiscoveryDate = rec.FetchedAt
	}
	return d, validate(d)
}
