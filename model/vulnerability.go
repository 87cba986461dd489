// Package model defines the canonical entities persisted by the Kirin vulnerability database.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the canonical severity scale for a vulnerability.
type Severity string

// Canonical severity levels, highest first.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering index of a severity. Unknown values rank below INFO.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the canonical severity levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// SeverityFromScore maps a CVSS base score to the canonical severity scale.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score >= 0.1:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// PatchStatus tracks the remediation state of a vulnerability.
type PatchStatus string

// Patch states. The first three advance monotonically; wont_fix is terminal.
const (
	PatchStatusUnpatched      PatchStatus = "unpatched"
	PatchStatusPatchAvailable PatchStatus = "patch_available"
	PatchStatusPatched        PatchStatus = "patched"
	PatchStatusWontFix        PatchStatus = "wont_fix"
)

var patchRank = map[PatchStatus]int{
	PatchStatusUnpatched:      0,
	PatchStatusPatchAvailable: 1,
	PatchStatusPatched:        2,
}

// Rank returns the progression index of a patch status. wont_fix has no rank.
func (p PatchStatus) Rank() int {
	if r, ok := patchRank[p]; ok {
		return r
	}
	return -1
}

// Vulnerability is the canonical, deduplicated record for a single
// vulnerability across all reporting sources.
type Vulnerability struct {
	Key             string `json:"_key,omitempty"`
	VulnerabilityID string `json:"vulnerability_id"`
	CVEID           string `json:"cve_id,omitempty"`

	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	TechnicalDetails string `json:"technical_details,omitempty"`

	Severity        Severity `json:"severity"`
	CVSSScore       *float64 `json:"cvss_score,omitempty"`
	CVSSVector      string   `json:"cvss_vector,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`

	AttackVectors []string `json:"attack_vectors,omitempty"`
	AffectedTools []string `json:"affected_tools,omitempty"`

	PatchStatus               PatchStatus `json:"patch_status"`
	FixedVersion              string      `json:"fixed_version,omitempty"`
	KirinRemediationAvailable bool        `json:"kirin_remediation_available"`
	AutoRemediationPossible   bool        `json:"auto_remediation_possible"`

	References    []string `json:"references,omitempty"`
	POCAvailable  bool     `json:"poc_available"`
	ExploitInWild bool     `json:"exploit_in_wild"`

	DiscoveryDate time.Time `json:"discovery_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Provenance maps a source ID to the stable per-source reference of the
	// raw record that contributed to this canonical record.
	Provenance map[string]string `json:"provenance,omitempty"`

	ObjType string `json:"objtype"`
}

// NewVulnerability mints a canonical record from a normalized draft,
// assigning a fresh vulnerability_id.
func NewVulnerability(d Draft, now time.Time) *Vulnerability {
	v := &Vulnerability{
		VulnerabilityID:           "kirin-" + uuid.New().String(),
		CVEID:                     d.CVEID,
		Title:                     d.Title,
		Description:               d.Description,
		TechnicalDetails:          d.TechnicalDetails,
		Severity:                  d.Severity,
		CVSSScore:                 d.CVSSScore,
		CVSSVector:                d.CVSSVector,
		ConfidenceScore:           d.ConfidenceScore,
		AttackVectors:             append([]string(nil), d.AttackVectors...),
		AffectedTools:             append([]string(nil), d.AffectedTools...),
		PatchStatus:               d.PatchStatus,
		FixedVersion:              d.FixedVersion,
		KirinRemediationAvailable: d.KirinRemediationAvailable,
		References:                append([]string(nil), d.References...),
		POCAvailable:              d.POCAvailable,
		ExploitInWild:             d.ExploitInWild,
		DiscoveryDate:             d.DiscoveryDate,
		CreatedAt:                 now,
		UpdatedAt:                 now,
		Provenance:                map[string]string{d.Source: d.SourceRef},
		ObjType:                   "Vulnerability",
	}
	if v.PatchStatus == "" {
		v.PatchStatus = PatchStatusUnpatched
	}
	if v.DiscoveryDate.IsZero() {
		v.DiscoveryDate = now
	}
	return v
}

// Clone returns a deep copy so in-flight merges never alias stored state.
func (v *Vulnerability) Clone() *Vulnerability {
	c := *v
	if v.CVSSScore != nil {
		score := *v.CVSSScore
		c.CVSSScore = &score
	}
	c.AttackVectors = append([]string(nil), v.AttackVectors...)
	c.AffectedTools = append([]string(nil), v.AffectedTools...)
	c.References = append([]string(nil), v.References...)
	c.Provenance = make(map[string]string, len(v.Provenance))
	for k, ref := range v.Provenance {
		c.Provenance[k] = ref
	}
	return &c
}

// SourceCount returns the number of distinct sources that have reported this
// vulnerability.
func (v *Vulnerability) SourceCount() int {
	return len(v.Provenance)
}

// Draft is a normalized, source-attributed vulnerability report that has not
// yet been resolved against the store. It carries no canonical identity.
type Draft struct {
	Source    string
	SourceRef string

	CVEID            string
	Title            string
	Description      string
	TechnicalDetails string

	Severity   Severity
	CVSSScore  *float64
	CVSSVector string

	// ConfidenceScore is the source's base trust level, refined later by the
	// risk scorer.
	ConfidenceScore float64

	AttackVectors []string
	AffectedTools []string

	PatchStatus               PatchStatus
	FixedVersion              string
	KirinRemediationAvailable bool

	References    []string
	POCAvailable  bool
	ExploitInWild bool

	DiscoveryDate time.Time
}
