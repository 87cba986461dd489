package dedup

import (
	"time"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// Merge folds a draft into an existing canonical record in place and reports
// what changed. The rules make merging commutative and idempotent across
// sources:
//
//   - severity and CVSS only ever increase
//   - patch status only advances; wont_fix is set once and terminal
//   - poc_available and exploit_in_wild are sticky once true
//   - references, tools, and attack vectors accumulate as sets
//   - discovery date moves to the earliest sighting
func Merge(v *model.Vulnerability, d model.Draft, now time.Time) Changes {
	var ch Changes

	if d.CVEID != "" && v.CVEID == "" {
		v.CVEID = d.CVEID
		ch.Material = true
	}

	if d.Severity.Rank() > v.Severity.Rank() {
		v.Severity = d.Severity
		ch.SeverityUpgraded = true
		ch.Material = true
	}
	if d.CVSSScore != nil && (v.CVSSScore == nil || *d.CVSSScore > *v.CVSSScore) {
		score := *d.CVSSScore
		v.CVSSScore = &score
		if d.CVSSVector != "" {
			v.CVSSVector = d.CVSSVector
		}
		ch.Material = true
	}

	before := v.PatchStatus
	if mergePatchStatus(v, d) {
		ch.Material = true
		if before.Rank() < model.PatchStatusPatchAvailable.Rank() &&
			v.PatchStatus.Rank() >= model.PatchStatusPatchAvailable.Rank() {
			ch.PatchAvailable = true
		}
	}
	if d.FixedVersion != "" && v.FixedVersion == "" {
		v.FixedVersion = d.FixedVersion
		ch.Material = true
	}

	if d.POCAvailable && !v.POCAvailable {
		v.POCAvailable = true
		ch.POCObserved = true
		ch.Material = true
	}
	if d.ExploitInWild && !v.ExploitInWild {
		v.ExploitInWild = true
		ch.ExploitObserved = true
		ch.Material = true
	}

	if len(d.Description) > len(v.Description) {
		v.Description = d.Description
		ch.Material = true
	}
	if d.TechnicalDetails != "" && v.TechnicalDetails == "" {
		v.TechnicalDetails = d.TechnicalDetails
		ch.Material = true
	}
	if v.Title == "" {
		v.Title = d.Title
		ch.Material = true
	}

	if added := unionInto(&v.References, d.References); added {
		ch.Material = true
	}
	if added := unionInto(&v.AffectedTools, d.AffectedTools); added {
		ch.Material = true
	}
	if added := unionInto(&v.AttackVectors, d.AttackVectors); added {
		ch.Material = true
	}

	if !d.DiscoveryDate.IsZero() && d.DiscoveryDate.Before(v.DiscoveryDate) {
		v.DiscoveryDate = d.DiscoveryDate
		ch.Material = true
	}

	if d.ConfidenceScore > v.ConfidenceScore {
		v.ConfidenceScore = d.ConfidenceScore
		ch.Material = true
	}

	if v.Provenance == nil {
		v.Provenance = make(map[string]string)
	}
	if _, seen := v.Provenance[d.Source]; !seen {
		ch.NewSource = true
		ch.Material = true
	}
	v.Provenance[d.Source] = d.SourceRef

	if d.KirinRemediationAvailable && !v.KirinRemediationAvailable {
		v.KirinRemediationAvailable = true
		ch.Material = true
	}

	if ch.Material {
		v.UpdatedAt = now
	}
	return ch
}

// MergeRecord folds one canonical record into another under the same rules
// as Merge. Used when two workers race on the same CVE and the loser's state
// has to land on the winner's record.
func MergeRecord(dst, src *model.Vulnerability, now time.Time) Changes {
	d := model.Draft{
		CVEID:                     src.CVEID,
		Title:                     src.Title,
		Description:               src.Description,
		TechnicalDetails:          src.TechnicalDetails,
		Severity:                  src.Severity,
		CVSSScore:                 src.CVSSScore,
		CVSSVector:                src.CVSSVector,
		ConfidenceScore:           src.ConfidenceScore,
		AttackVectors:             src.AttackVectors,
		AffectedTools:             src.AffectedTools,
		PatchStatus:               src.PatchStatus,
		FixedVersion:              src.FixedVersion,
		KirinRemediationAvailable: src.KirinRemediationAvailable,
		References:                src.References,
		POCAvailable:              src.POCAvailable,
		ExploitInWild:             src.ExploitInWild,
		DiscoveryDate:             src.DiscoveryDate,
	}
	var ch Changes
	for source, ref := range src.Provenance {
		d.Source = source
		d.SourceRef = ref
		c := Merge(dst, d, now)
		ch.SeverityUpgraded = ch.SeverityUpgraded || c.SeverityUpgraded
		ch.ExploitObserved = ch.ExploitObserved || c.ExploitObserved
		ch.POCObserved = ch.POCObserved || c.POCObserved
		ch.PatchAvailable = ch.PatchAvailable || c.PatchAvailable
		ch.NewSource = ch.NewSource || c.NewSource
		ch.Material = ch.Material || c.Material
	}
	return ch
}

// mergePatchStatus applies the monotonic patch progression. wont_fix can only
// land on a record that has not already reached a terminal decision.
func mergePatchStatus(v *model.Vulnerability, d model.Draft) bool {
	if d.PatchStatus == "" || d.PatchStatus == v.PatchStatus {
		return false
	}
	if v.PatchStatus == model.PatchStatusWontFix {
		return false
	}
	if d.PatchStatus == model.PatchStatusWontFix {
		v.PatchStatus = model.PatchStatusWontFix
		return true
	}
	if d.PatchStatus.Rank() > v.PatchStatus.Rank() {
		v.PatchStatus = d.PatchStatus
		return true
	}
	return false
}

// unionInto appends the members of add that dst does not already hold,
// preserving dst's order. Reports whether anything was added.
func unionInto(dst *[]string, add []string) bool {
	seen := make(map[string]bool, len(*dst))
	for _, v := range *dst {
		seen[v] = true
	}
	added := false
	for _, v := range add {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		*dst = append(*dst, v)
		added = true
	}
	return added
}
