package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	alertevents "github.com/rickdeaconx/kirinvulndb/events/modules/alerts"
	vulnevents "github.com/rickdeaconx/kirinvulndb/events/modules/vulnerabilities"
	"github.com/rickdeaconx/kirinvulndb/internal/cache"
	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// Dispatcher fans a persisted change out to Kafka, the WebSocket hub, and
// Slack, drops the read-side cache, and marks alerts sent. Fan-out is best
// effort: the store already holds the truth, so a failed leg is logged and
// skipped.
type Dispatcher struct {
	vulns     *vulnevents.VulnerabilityProducer
	alerts    *alertevents.AlertProducer
	hub       *Hub
	slack     *SlackNotifier
	store     store.Store
	readCache *cache.Cache
	logger    *zap.SugaredLogger
}

func NewDispatcher(
	vulns *vulnevents.VulnerabilityProducer,
	alerts *alertevents.AlertProducer,
	hub *Hub,
	slack *SlackNotifier,
	s store.Store,
	readCache *cache.Cache,
	logger *zap.SugaredLogger,
) *Dispatcher {
	return &Dispatcher{
		vulns:     vulns,
		alerts:    alerts,
		hub:       hub,
		slack:     slack,
		store:     s,
		readCache: readCache,
		logger:    logger,
	}
}

// Dispatch publishes one persisted change and its alerts.
func (d *Dispatcher) Dispatch(ctx context.Context, vuln *model.Vulnerability, alerts []*model.Alert) {
	// The store changed, so cached read snapshots are stale.
	d.readCache.Invalidate("")

	eventType := vulnevents.EventTypeUpdated
	if vuln.CreatedAt.Equal(vuln.UpdatedAt) {
		eventType = vulnevents.EventTypeCreated
	}
	if d.vulns != nil {
		if err := d.vulns.PublishChange(ctx, eventType, *vuln); err != nil {
			d.logger.Warnf("failed to publish %s for %s: %v", eventType, vuln.VulnerabilityID, err)
		}
	}
	if d.hub != nil {
		d.hub.BroadcastVulnerability(vuln)
	}

	now := time.Now().UTC()
	for _, a := range alerts {
		if d.alerts != nil {
			if err := d.alerts.PublishRaised(ctx, *a); err != nil {
				d.logger.Warnf("failed to publish alert %s: %v", a.AlertID, err)
			}
		}
		if d.hub != nil {
			d.hub.BroadcastAlert(a)
		}
		if err := d.slack.Notify(a, vuln); err != nil {
			d.logger.Warnf("failed to notify Slack for alert %s: %v", a.AlertID, err)
		}

		a.MarkSent(now)
		if err := d.store.UpdateAlertStatus(ctx, a.AlertID, model.AlertStatusSent); err != nil {
			d.logger.Warnf("failed to mark alert %s sent: %v", a.AlertID, err)
		}
	}
}
