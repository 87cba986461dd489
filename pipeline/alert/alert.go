// Package alert derives alerts from merge outcomes and enforces the
// per-vulnerability rate limit.
package alert

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/pipeline/dedup"
)

// Engine turns merge outcomes into alerts. At most maxPerWindow alerts are
// emitted per vulnerability per rolling window; alerts beyond that are
// created suppressed so the audit trail stays complete.
type Engine struct {
	store               store.Store
	window              time.Duration
	maxPerWindow        int
	corroborationWindow time.Duration
	clock               clock.Clock
}

func New(s store.Store, window time.Duration, maxPerWindow int, corroborationWindow time.Duration, c clock.Clock) *Engine {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Engine{
		store:               s,
		window:              window,
		maxPerWindow:        maxPerWindow,
		corroborationWindow: corroborationWindow,
		clock:               c,
	}
}

// Evaluate returns the alerts a resolution warrants, already rate-limited.
// A brand new vulnerability yields exactly one new_vulnerability alert; later
// merges alert only on the changes they introduced.
func (e *Engine) Evaluate(ctx context.Context, res dedup.Resolution) ([]*model.Alert, error) {
	now := e.clock.Now()
	v := res.Vuln

	var alerts []*model.Alert
	if res.Outcome == dedup.OutcomeNew {
		alerts = append(alerts, model.NewAlert(
			v.VulnerabilityID,
			e.classifyNew(v),
			priorityFor(v.Severity),
			fmt.Sprintf("New vulnerability affecting %s: %s", toolList(v), v.Title),
			now,
		))
	} else {
		alerts = append(alerts, e.changeAlerts(v, res.Changes, now)...)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	recent, err := e.store.CountRecentAlerts(ctx, v.VulnerabilityID, now.Add(-e.window))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent alerts for %s: %w", v.VulnerabilityID, err)
	}
	for i, a := range alerts {
		if recent+i >= e.maxPerWindow {
			a.Suppress(now)
		}
	}
	return alerts, nil
}

// classifyNew upgrades the alert type when a record arrives already
// exploited or unpatched under active attack.
func (e *Engine) classifyNew(v *model.Vulnerability) model.AlertType {
	if v.ExploitInWild && v.PatchStatus == model.PatchStatusUnpatched {
		return model.AlertTypeZeroDay
	}
	return model.AlertTypeNewVulnerability
}

func (e *Engine) changeAlerts(v *model.Vulnerability, ch dedup.Changes, now time.Time) []*model.Alert {
	var alerts []*model.Alert
	if ch.SeverityUpgraded {
		alerts = append(alerts, model.NewAlert(
			v.VulnerabilityID,
			model.AlertTypeSeverityUpgrade,
			priorityFor(v.Severity),
			fmt.Sprintf("Severity raised to %s: %s", v.Severity, v.Title),
			now,
		))
	}
	if ch.ExploitObserved || ch.POCObserved {
		alertType := model.AlertTypeExploitAvailable
		// Independent corroboration of active exploitation shortly after
		// disclosure means the exploit is circulating, not a one-off.
		if ch.ExploitObserved && v.SourceCount() >= 2 &&
			now.Sub(v.DiscoveryDate) <= e.corroborationWindow {
			alertType = model.AlertTypeMassExploitation
		}
		alerts = append(alerts, model.NewAlert(
			v.VulnerabilityID,
			alertType,
			model.AlertPriorityCritical,
			fmt.Sprintf("Exploitation activity reported: %s", v.Title),
			now,
		))
	}
	if ch.PatchAvailable {
		alerts = append(alerts, model.NewAlert(
			v.VulnerabilityID,
			model.AlertTypePatchAvailable,
			model.AlertPriorityMedium,
			fmt.Sprintf("Patch available for %s: %s", toolList(v), v.Title),
			now,
		))
	}
	return alerts
}

// priorityFor maps severity onto dispatch priority.
func priorityFor(s model.Severity) model.AlertPriority {
	switch s {
	case model.SeverityCritical:
		return model.AlertPriorityCritical
	case model.SeverityHigh:
		return model.AlertPriorityHigh
	case model.SeverityMedium:
		return model.AlertPriorityMedium
	default:
		return model.AlertPriorityLow
	}
}

func toolList(v *model.Vulnerability) string {
	if len(v.AffectedTools) == 0 {
		return "AI coding assistants"
	}
	list := v.AffectedTools[0]
	for _, t := range v.AffectedTools[1:] {
		list += ", " + t
	}
	return list
}
