package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickdeaconx/kirinvulndb/collector/nvd"
	"github.com/rickdeaconx/kirinvulndb/model"
)

func (n *Normalizer) fromNVD(rec model.RawRecord) (model.Draft, error) {
	var item nvd.Item
	if err := json.Unmarshal(rec.Payload, &item); err != nil {
		return model.Draft{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	cve := item.CVE
	if cve.ID == "" {
		return model.Draft{}, fmt.Errorf("%w: missing CVE id", ErrMalformedRecord)
	}

	description := cve.Description()
	matchText := description + " " + strings.Join(cve.CPECriteria(), " ")
	tools := n.matcher.Match(matchText)
	if len(tools) == 0 {
		return model.Draft{}, fmt.Errorf("%w: %s matches no monitored tool", ErrIrrelevantRecord, cve.ID)
	}

	confidence := confidenceNVD
	var severity model.Severity
	var cvssScore *float64
	vector, score, ok := cve.PreferredCVSS()
	if ok {
		cvssScore = &score
		severity = model.SeverityFromScore(score)
	} else {
		severity = model.SeverityMedium
		confidence -= severityPenalty
	}

	var references []string
	for _, ref := range cve.References {
		if ref.URL != "" {
			references = append(references, ref.URL)
		}
	}

	d := model.Draft{
		Source:           rec.Source,
		SourceRef:        rec.SourceRef,
		CVEID:            cve.ID,
		Title:            cve.ID + ": AI Coding Assistant Vulnerability",
		Description:      description,
		TechnicalDetails: strings.Join(cve.CWEIDs(), ", "),
		Severity:         severity,
		CVSSScore:        cvssScore,
		CVSSVector:       vector,
		ConfidenceScore:  confidence,
		AttackVectors:    extractAttackVectors(description, vector),
		AffectedTools:    tools,
		PatchStatus:      model.PatchStatusUnpatched,
		References:       references,
		POCAvailable:     mentionsPOC(description),
		ExploitInWild:    mentionsExploit(description),
		DiscoveryDate:    parseTime(cve.Published, rec.FetchedAt),
	}
	return d, validate(d)
}
