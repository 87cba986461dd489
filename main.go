// Package main provides the entry point for the kirinvulndb microservice:
// source collection workers, the dedup/alert pipeline, Kafka fan-out, and the
// REST/GraphQL/WebSocket API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/collector/ghsa"
	"github.com/rickdeaconx/kirinvulndb/collector/nvd"
	"github.com/rickdeaconx/kirinvulndb/collector/osv"
	"github.com/rickdeaconx/kirinvulndb/collector/vendorrss"
	"github.com/rickdeaconx/kirinvulndb/database"
	alertevents "github.com/rickdeaconx/kirinvulndb/events/modules/alerts"
	vulnevents "github.com/rickdeaconx/kirinvulndb/events/modules/vulnerabilities"
	"github.com/rickdeaconx/kirinvulndb/internal/api"
	"github.com/rickdeaconx/kirinvulndb/internal/cache"
	"github.com/rickdeaconx/kirinvulndb/internal/config"
	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/notify"
	"github.com/rickdeaconx/kirinvulndb/pipeline"
	"github.com/rickdeaconx/kirinvulndb/pipeline/alert"
	"github.com/rickdeaconx/kirinvulndb/pipeline/dedup"
	"github.com/rickdeaconx/kirinvulndb/pipeline/normalize"
	"github.com/rickdeaconx/kirinvulndb/pipeline/score"
	"github.com/rickdeaconx/kirinvulndb/remediation"
	"github.com/rickdeaconx/kirinvulndb/restapi"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/admin"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/monitoring"
	"github.com/rickdeaconx/kirinvulndb/scheduler"
)

var logger = database.InitLogger().Sugar()

func main() {
	settings := config.Load()

	db := database.InitializeDatabase(database.Config{
		URL:  settings.ArangoURL,
		User: settings.ArangoUser,
		Pass: settings.ArangoPass,
	})
	st := store.NewArangoStore(db)

	toolSpecs, err := config.LoadToolRegistry(settings.ToolRegistryPath)
	if err != nil {
		logger.Fatalf("failed to load tool registry: %v", err)
	}
	if err := seedTools(st, toolSpecs); err != nil {
		logger.Fatalf("failed to seed tool registry: %v", err)
	}
	matcher := collector.NewToolMatcher(toolSpecs)

	collectors := buildCollectors(settings, matcher, logger)

	vulnProducer := vulnevents.NewVulnerabilityProducer(settings.KafkaBrokers, settings.KafkaVulnTopic)
	defer vulnProducer.Close()
	alertProducer := alertevents.NewAlertProducer(settings.KafkaBrokers, settings.KafkaAlertTopic)
	defer alertProducer.Close()

	readCache := cache.New(settings.ReadCacheTTL)
	readStore := store.NewCachedStore(st, readCache)

	hub := notify.NewHub(logger)
	slackNotifier := notify.NewSlackNotifier(settings.SlackToken, settings.SlackChannelID)
	dispatcher := notify.NewDispatcher(vulnProducer, alertProducer, hub, slackNotifier, st, readCache, logger)

	normalizer := normalize.New(matcher, logger)
	resolver := dedup.NewResolver(st, settings.TitleSimilarity, settings.DateWindow, logger)
	scorer := score.New(settings.StaleAfter, nil)
	alertEngine := alert.New(st, settings.AlertWindow, settings.AlertMaxInFlow, settings.CorroborationWindow, nil)
	pipe := pipeline.New(normalizer, resolver, scorer, alertEngine, st, dispatcher, nil, logger)

	sched := scheduler.New(collectors, pipe, st, scheduler.Config{
		CycleBudget: settings.CycleBudget,
		MaxBackoff:  settings.MaxBackoff,
		Jitter:      settings.JitterFraction,
	}, logger)

	planner := remediation.NewPlanner(settings.RemediationTTL, nil)

	sources := make([]monitoring.SourceInfo, 0, len(collectors))
	for _, c := range collectors {
		sources = append(sources, monitoring.SourceInfo{Name: c.Name(), Interval: c.Interval()})
	}

	app, err := api.NewFiberApp(restapi.Dependencies{
		Store:      readStore,
		Hub:        hub,
		Planner:    planner,
		Backfiller: admin.NewBackfiller(collectors, pipe, logger),
		Sources:    sources,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("failed to build API: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("scheduler stopped: %v", err)
		}
	}()

	go func() {
		logger.Infof("listening on :%s", settings.Port)
		if err := app.Listen(":" + settings.Port); err != nil {
			logger.Errorf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warnf("shutdown incomplete: %v", err)
	}
}

// buildCollectors wires one adapter per source class with its configured
// interval.
func buildCollectors(settings *config.Settings, matcher *collector.ToolMatcher, logger *zap.SugaredLogger) []collector.Collector {
	return []collector.Collector{
		nvd.New(settings.NVDBaseURL, settings.CVEInterval, settings.LookbackWindow, matcher, logger,
			nvd.WithAPIKey(settings.NVDAPIKey)),
		ghsa.New(settings.GitHubToken, settings.CVEInterval, settings.LookbackWindow, matcher, logger),
		osv.New(settings.OSVBaseURL, settings.CommunityInterval, nil, logger),
		vendorrss.New(settings.VendorInterval, nil, matcher, logger),
	}
}

// seedTools registers the configured assistants so the read surface lists
// them before their first vulnerability arrives.
func seedTools(st store.Store, specs []config.ToolSpec) error {
	now := time.Now().UTC()
	tools := make([]*model.Tool, 0, len(specs))
	for _, spec := range specs {
		t := model.NewTool(spec.Name, now)
		t.DisplayName = spec.DisplayName
		t.Vendor = spec.Vendor
		t.Category = spec.Category
		t.Keywords = append([]string(nil), spec.Keywords...)
		tools = append(tools, t)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return st.EnsureTools(ctx, tools)
}
