package model

import (
	"time"

	"github.com/google/uuid"
)

// RemediationType is the kind of fix a remediation step describes.
type RemediationType string

const (
	RemediationTypeCodePatch        RemediationType = "code_patch"
	RemediationTypeConfiguration    RemediationType = "configuration"
	RemediationTypeUpdateDependency RemediationType = "update_dependency"
	RemediationTypePolicyChange     RemediationType = "policy_change"
	RemediationTypeWorkaround       RemediationType = "workaround"
)

// RemediationStep is a single action within a remediation plan.
type RemediationStep struct {
	Type        RemediationType `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Complexity  string          `json:"complexity,omitempty"`
}

// RemediationPlan is an ephemeral, per-workspace remediation suggestion for a
// vulnerability. Plans live only in a short-lived cache keyed by
// remediation_id; they are never persisted as durable entities.
type RemediationPlan struct {
	RemediationID   string `json:"remediation_id"`
	VulnerabilityID string `json:"vulnerability_id"`
	Workspace       string `json:"workspace,omitempty"`

	Steps          []RemediationStep `json:"steps"`
	KirinPolicyID  string            `json:"kirin_policy_id,omitempty"`
	AutoApplicable bool              `json:"auto_applicable"`
	ValidationHint string            `json:"validation_hint,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewRemediationPlan allocates an empty plan with a fresh remediation_id.
func NewRemediationPlan(vulnID, workspace string, now time.Time, ttl time.Duration) *RemediationPlan {
	return &RemediationPlan{
		RemediationID:   "rem-" + uuid.New().String(),
		VulnerabilityID: vulnID,
		Workspace:       workspace,
		GeneratedAt:     now,
		ExpiresAt:       now.Add(ttl),
	}
}

// Expired reports whether the plan's cache entry has lapsed.
func (p *RemediationPlan) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
