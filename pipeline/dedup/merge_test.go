package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickdeaconx/kirinvulndb/model"
)

func floatPtr(f float64) *float64 { return &f }

func baseDraft(source string) model.Draft {
	return model.Draft{
		Source:          source,
		SourceRef:       source + "-ref",
		CVEID:           "CVE-2025-54132",
		Title:           "Cursor MCP auto-start allows remote code execution",
		Description:     "A crafted workspace can auto-start MCP servers.",
		Severity:        model.SeverityMedium,
		CVSSScore:       floatPtr(4.0),
		ConfidenceScore: 0.7,
		AffectedTools:   []string{"cursor"},
		PatchStatus:     model.PatchStatusUnpatched,
		References:      []string{"https://example.com/" + source},
		DiscoveryDate:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMergeSeverityNeverDowngrades(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	high := baseDraft("nvd")
	high.Severity = model.SeverityCritical
	high.CVSSScore = floatPtr(9.8)

	low := baseDraft("rss-cursor")
	low.Severity = model.SeverityLow
	low.CVSSScore = floatPtr(3.1)

	v := model.NewVulnerability(high, now)
	ch := Merge(v, low, now.Add(time.Hour))

	assert.False(t, ch.SeverityUpgraded)
	assert.Equal(t, model.SeverityCritical, v.Severity)
	require.NotNil(t, v.CVSSScore)
	assert.Equal(t, 9.8, *v.CVSSScore)
}

func TestMergeSeverityUpgrade(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	v := model.NewVulnerability(baseDraft("rss-cursor"), now)

	upgraded := baseDraft("nvd")
	upgraded.Severity = model.SeverityCritical
	upgraded.CVSSScore = floatPtr(9.8)
	upgraded.CVSSVector = "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"

	ch := Merge(v, upgraded, now.Add(time.Hour))

	assert.True(t, ch.SeverityUpgraded)
	assert.True(t, ch.NewSource)
	assert.Equal(t, model.SeverityCritical, v.Severity)
	assert.Equal(t, 9.8, *v.CVSSScore)
	assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", v.CVSSVector)
}

func TestMergeCommutative(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	a := baseDraft("nvd")
	a.Severity = model.SeverityHigh
	a.CVSSScore = floatPtr(8.8)
	a.POCAvailable = true

	b := baseDraft("github")
	b.Severity = model.SeverityMedium
	b.PatchStatus = model.PatchStatusPatchAvailable
	b.FixedVersion = "1.4.2"

	ab := model.NewVulnerability(a, now)
	Merge(ab, b, now)
	ba := model.NewVulnerability(b, now)
	Merge(ba, a, now)

	assert.Equal(t, ab.Severity, ba.Severity)
	assert.Equal(t, *ab.CVSSScore, *ba.CVSSScore)
	assert.Equal(t, ab.PatchStatus, ba.PatchStatus)
	assert.Equal(t, ab.FixedVersion, ba.FixedVersion)
	assert.Equal(t, ab.POCAvailable, ba.POCAvailable)
	assert.ElementsMatch(t, ab.AffectedTools, ba.AffectedTools)
	assert.ElementsMatch(t, ab.References, ba.References)
	assert.Equal(t, ab.SourceCount(), ba.SourceCount())
}

func TestMergeIdempotent(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	d := baseDraft("nvd")
	v := model.NewVulnerability(d, now)

	ch := Merge(v, d, now.Add(time.Hour))
	assert.False(t, ch.Material, "re-merging the same draft must be a no-op")
	assert.Equal(t, now, v.UpdatedAt)
	assert.Equal(t, 1, v.SourceCount())
}

func TestMergePatchStatusMonotonic(t *testing.T) {
	tests := []struct {
		name     string
		current  model.PatchStatus
		incoming model.PatchStatus
		want     model.PatchStatus
	}{
		{"advance to patch_available", model.PatchStatusUnpatched, model.PatchStatusPatchAvailable, model.PatchStatusPatchAvailable},
		{"advance to patched", model.PatchStatusPatchAvailable, model.PatchStatusPatched, model.PatchStatusPatched},
		{"never regress", model.PatchStatusPatched, model.PatchStatusUnpatched, model.PatchStatusPatched},
		{"wont_fix is reachable", model.PatchStatusPatchAvailable, model.PatchStatusWontFix, model.PatchStatusWontFix},
		{"wont_fix is terminal", model.PatchStatusWontFix, model.PatchStatusPatched, model.PatchStatusWontFix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
			d := baseDraft("nvd")
			d.PatchStatus = tt.current
			v := model.NewVulnerability(d, now)

			update := baseDraft("github")
			update.PatchStatus = tt.incoming
			Merge(v, update, now.Add(time.Hour))

			assert.Equal(t, tt.want, v.PatchStatus)
		})
	}
}

func TestMergeStickyBooleans(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	d := baseDraft("nvd")
	d.POCAvailable = true
	d.ExploitInWild = true
	v := model.NewVulnerability(d, now)

	retraction := baseDraft("github")
	retraction.POCAvailable = false
	retraction.ExploitInWild = false
	Merge(v, retraction, now.Add(time.Hour))

	assert.True(t, v.POCAvailable)
	assert.True(t, v.ExploitInWild)
}

func TestMergeDiscoveryDateMovesEarlier(t *testing.T) {
	now := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)

	late := baseDraft("nvd")
	late.DiscoveryDate = time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	v := model.NewVulnerability(late, now)

	early := baseDraft("github")
	early.DiscoveryDate = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	Merge(v, early, now)

	assert.Equal(t, early.DiscoveryDate, v.DiscoveryDate)

	// A later sighting never pushes the date forward.
	later := baseDraft("osv")
	later.DiscoveryDate = time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC)
	Merge(v, later, now)
	assert.Equal(t, early.DiscoveryDate, v.DiscoveryDate)
}

func TestMergeAccumulatesProvenance(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	v := model.NewVulnerability(baseDraft("nvd"), now)
	Merge(v, baseDraft("github"), now)
	Merge(v, baseDraft("osv"), now)

	assert.Equal(t, 3, v.SourceCount())
	assert.Equal(t, "nvd-ref", v.Provenance["nvd"])
	assert.Equal(t, "github-ref", v.Provenance["github"])
}

func TestMergeRecordFoldsLoserIntoWinner(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	winner := model.NewVulnerability(baseDraft("nvd"), now)

	loserDraft := baseDraft("github")
	loserDraft.Severity = model.SeverityHigh
	loserDraft.CVSSScore = floatPtr(8.1)
	loserDraft.ExploitInWild = true
	loser := model.NewVulnerability(loserDraft, now)

	ch := MergeRecord(winner, loser, now.Add(time.Minute))

	assert.True(t, ch.SeverityUpgraded)
	assert.True(t, ch.ExploitObserved)
	assert.Equal(t, model.SeverityHigh, winner.Severity)
	assert.Equal(t, 2, winner.SourceCount())
}
