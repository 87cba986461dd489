// Package score refines the confidence and remediation fields of a canonical
// record after each merge.
package score

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/rickdeaconx/kirinvulndb/model"
)

const (
	// corroborationBonus is added per independent source beyond the first.
	corroborationBonus = 0.05
	// staleDecay is subtracted from single-source records older than the
	// stale threshold that no source has confirmed.
	staleDecay = 0.1

	maxConfidence = 0.99
	minConfidence = 0.1
)

// automatableVectors are the attack classes the remediation service has
// scripted actions for.
var automatableVectors = map[string]bool{
	"rce":              true,
	"injection":        true,
	"prompt_injection": true,
}

// Scorer recomputes derived risk fields. The clock is injected so tests can
// pin time.
type Scorer struct {
	staleAfter time.Duration
	clock      clock.Clock
}

func New(staleAfter time.Duration, c clock.Clock) *Scorer {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Scorer{staleAfter: staleAfter, clock: c}
}

// Rescore updates confidence and remediation flags in place. It is
// deterministic for a fixed clock, so the pipeline can safely rescore on
// every merge.
func (s *Scorer) Rescore(v *model.Vulnerability) {
	now := s.clock.Now()

	conf := v.ConfidenceScore

	// Corroboration: every additional source raises trust. Merging already
	// gates which reports count as the same vulnerability.
	if extra := v.SourceCount() - 1; extra > 0 {
		conf += float64(extra) * corroborationBonus
	}

	// Exploited or PoC-backed records keep their confidence; a stale claim
	// nobody corroborated loses some.
	if v.SourceCount() == 1 && !v.ExploitInWild && !v.POCAvailable &&
		now.Sub(v.DiscoveryDate) > s.staleAfter {
		conf -= staleDecay
	}

	if conf > maxConfidence {
		conf = maxConfidence
	}
	if conf < minConfidence {
		conf = minConfidence
	}
	v.ConfidenceScore = conf

	// Remediation can only be automated when the vendor has not declined to
	// fix, the attack class has a scripted playbook, and Kirin has a
	// remediation registered for this record.
	v.AutoRemediationPossible = v.PatchStatus != model.PatchStatusWontFix &&
		hasAutomatableVector(v.AttackVectors) &&
		v.KirinRemediationAvailable
}

func hasAutomatableVector(vectors []string) bool {
	for _, vec := range vectors {
		if automatableVectors[vec] {
			return true
		}
	}
	return false
}
