// Package remediation builds short-lived remediation plans for
// vulnerabilities and caches them by remediation_id.
package remediation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"k8s.io/utils/clock"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// Planner generates remediation plans. Plans are advisory snapshots, so they
// live in an in-memory TTL cache rather than the store.
type Planner struct {
	ttl   time.Duration
	clock clock.Clock

	mu    sync.Mutex
	cache map[string]*model.RemediationPlan
}

func NewPlanner(ttl time.Duration, c clock.Clock) *Planner {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Planner{
		ttl:   ttl,
		clock: c,
		cache: make(map[string]*model.RemediationPlan),
	}
}

// Plan builds a plan for the vulnerability in the given workspace and caches
// it under its remediation_id.
func (p *Planner) Plan(v *model.Vulnerability, workspace string) *model.RemediationPlan {
	now := p.clock.Now()
	plan := model.NewRemediationPlan(v.VulnerabilityID, workspace, now, p.ttl)
	plan.Steps = buildSteps(v)
	plan.AutoApplicable = v.AutoRemediationPossible
	if plan.AutoApplicable {
		plan.ValidationHint = "Verify the assistant reports the fixed version after restart."
	}

	p.mu.Lock()
	p.prune(now)
	p.cache[plan.RemediationID] = plan
	p.mu.Unlock()
	return plan
}

// Get returns a cached plan, or nil when it never existed or has expired.
func (p *Planner) Get(remediationID string) *model.RemediationPlan {
	now := p.clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.cache[remediationID]
	if !ok || plan.Expired(now) {
		delete(p.cache, remediationID)
		return nil
	}
	return plan
}

// prune drops expired entries. Caller holds the lock.
func (p *Planner) prune(now time.Time) {
	for id, plan := range p.cache {
		if plan.Expired(now) {
			delete(p.cache, id)
		}
	}
}

// buildSteps derives ordered remediation actions from the record's patch
// state and attack surface.
func buildSteps(v *model.Vulnerability) []model.RemediationStep {
	var steps []model.RemediationStep

	if v.FixedVersion != "" && v.PatchStatus.Rank() >= model.PatchStatusPatchAvailable.Rank() {
		steps = append(steps, upgradeStep(v))
	} else if v.PatchStatus == model.PatchStatusWontFix {
		steps = append(steps, model.RemediationStep{
			Type:        model.RemediationTypePolicyChange,
			Title:       "Restrict or replace the affected assistant",
			Description: "The vendor will not ship a fix. Disable the affected capability by policy or migrate to an unaffected tool.",
			Complexity:  "high",
		})
	} else {
		steps = append(steps, model.RemediationStep{
			Type:        model.RemediationTypeWorkaround,
			Title:       "Apply interim mitigations",
			Description: "No patch has shipped yet. Limit the assistant's permissions and monitor vendor channels for a fix.",
			Complexity:  "medium",
		})
	}

	if containsVector(v.AttackVectors, "prompt_injection") {
		steps = append(steps, model.RemediationStep{
			Type:        model.RemediationTypeConfiguration,
			Title:       "Harden prompt handling",
			Description: "Disable automatic execution of assistant suggestions and require review of generated commands.",
			Complexity:  "low",
		})
	}
	if v.ExploitInWild {
		steps = append(steps, model.RemediationStep{
			Type:        model.RemediationTypeConfiguration,
			Title:       "Audit recent assistant activity",
			Description: "Active exploitation has been reported. Review assistant logs and generated code merged since the disclosure date.",
			Complexity:  "medium",
		})
	}
	return steps
}

// upgradeStep describes the dependency update, with the jump size estimated
// from the fixed version when it parses as semver.
func upgradeStep(v *model.Vulnerability) model.RemediationStep {
	complexity := "low"
	description := fmt.Sprintf("Update %s to version %s or later.", toolLabel(v), v.FixedVersion)
	if fixed, err := semver.NewVersion(strings.TrimPrefix(v.FixedVersion, "v")); err == nil {
		if fixed.Major() > 0 && fixed.Minor() == 0 && fixed.Patch() == 0 {
			// A .0.0 fix release usually means the fix rode a major version.
			complexity = "medium"
			description += " This is a major version jump; review the vendor changelog for breaking changes."
		}
	}
	return model.RemediationStep{
		Type:        model.RemediationTypeUpdateDependency,
		Title:       "Upgrade to the fixed version",
		Description: description,
		Complexity:  complexity,
	}
}

func toolLabel(v *model.Vulnerability) string {
	if len(v.AffectedTools) > 0 {
		return v.AffectedTools[0]
	}
	return "the affected assistant"
}

func containsVector(vectors []string, want string) bool {
	for _, v := range vectors {
		if v == want {
			return true
		}
	}
	return false
}
