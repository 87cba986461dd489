package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/rickdeaconx/kirinvulndb/model"
)

func testVuln(discovery time.Time) *model.Vulnerability {
	return &model.Vulnerability{
		VulnerabilityID: "kirin-test",
		Severity:        model.SeverityHigh,
		ConfidenceScore: 0.7,
		DiscoveryDate:   discovery,
		PatchStatus:     model.PatchStatusUnpatched,
		Provenance:      map[string]string{"rss-cursor": "guid-1"},
	}
}

func TestRescoreCorroborationBonus(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-time.Hour))
	v.ConfidenceScore = 0.85
	v.Provenance["nvd"] = "CVE-2025-54132"
	v.Provenance["github"] = "GHSA-xxxx"

	s.Rescore(v)
	assert.InDelta(t, 0.95, v.ConfidenceScore, 1e-9)
}

func TestRescoreCapsAtMax(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-time.Hour))
	v.ConfidenceScore = 0.9
	v.Provenance["nvd"] = "a"
	v.Provenance["github"] = "b"
	v.Provenance["osv"] = "c"

	s.Rescore(v)
	assert.Equal(t, 0.99, v.ConfidenceScore)
}

func TestRescoreStaleSingleSourceDecays(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-10 * 24 * time.Hour))
	s.Rescore(v)
	assert.InDelta(t, 0.6, v.ConfidenceScore, 1e-9)
}

func TestRescoreExploitedRecordNeverDecays(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-10 * 24 * time.Hour))
	v.ExploitInWild = true
	s.Rescore(v)
	assert.InDelta(t, 0.7, v.ConfidenceScore, 1e-9)
}

func TestRescoreFloor(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-10 * 24 * time.Hour))
	v.ConfidenceScore = 0.15
	s.Rescore(v)
	assert.Equal(t, 0.1, v.ConfidenceScore)
}

func TestRescoreAutoRemediation(t *testing.T) {
	tests := []struct {
		name        string
		patchStatus model.PatchStatus
		vectors     []string
		kirin       bool
		want        bool
	}{
		{"automatable vector with kirin coverage", model.PatchStatusPatchAvailable, []string{"rce"}, true, true},
		{"unpatched is still automatable", model.PatchStatusUnpatched, []string{"prompt_injection"}, true, true},
		{"wont fix", model.PatchStatusWontFix, []string{"rce"}, true, false},
		{"no automatable vector", model.PatchStatusPatchAvailable, []string{"xss"}, true, false},
		{"no kirin remediation", model.PatchStatusPatchAvailable, []string{"rce"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
			s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

			v := testVuln(now.Add(-time.Hour))
			v.PatchStatus = tt.patchStatus
			v.AttackVectors = tt.vectors
			v.KirinRemediationAvailable = tt.kirin
			s.Rescore(v)

			assert.Equal(t, tt.want, v.AutoRemediationPossible)
			assert.Equal(t, tt.kirin, v.KirinRemediationAvailable)
		})
	}
}

func TestRescoreNeverGrantsKirinRemediation(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
	s := New(7*24*time.Hour, clocktesting.NewFakeClock(now))

	v := testVuln(now.Add(-time.Hour))
	v.PatchStatus = model.PatchStatusPatchAvailable
	v.FixedVersion = "1.4.2"
	v.AttackVectors = []string{"rce"}
	s.Rescore(v)

	assert.False(t, v.KirinRemediationAvailable)
	assert.False(t, v.AutoRemediationPossible)
}
