// Package config loads pipeline settings from the environment and an optional
// config file, with defaults that match the hosted deployment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds every tunable of the collection and alerting pipeline.
type Settings struct {
	// Store
	ArangoURL  string
	ArangoUser string
	ArangoPass string

	// Source adapters
	NVDBaseURL  string
	NVDAPIKey   string
	GitHubToken string
	OSVBaseURL  string

	// Collection intervals per source class
	CVEInterval       time.Duration
	VendorInterval    time.Duration
	CommunityInterval time.Duration

	// Scheduler
	JitterFraction float64
	CycleBudget    time.Duration
	MaxBackoff     time.Duration
	LookbackWindow time.Duration

	// Deduplication
	TitleSimilarity float64
	DateWindow      time.Duration

	// Risk scoring
	CorroborationWindow time.Duration
	StaleAfter          time.Duration

	// Alerting
	AlertWindow    time.Duration
	AlertMaxInFlow int

	// Fan-out
	KafkaBrokers    []string
	KafkaVulnTopic  string
	KafkaAlertTopic string
	SlackToken      string
	SlackChannelID  string

	// Remediation
	RemediationTTL time.Duration

	// Read surface
	Port         string
	ReadCacheTTL time.Duration

	// Tool registry seed file (YAML)
	ToolRegistryPath string
}

// Load reads settings from KIRIN_-prefixed environment variables and, when
// present, a kirinvulndb.yaml file in the working directory.
func Load() *Settings {
	v := viper.New()
	v.SetEnvPrefix("KIRIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("kirinvulndb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // config file is optional

	v.SetDefault("arango.url", "http://localhost:8529")
	v.SetDefault("arango.user", "root")
	v.SetDefault("arango.pass", "mypassword")

	v.SetDefault("nvd.base_url", "https://services.nvd.nist.gov/rest/json")
	v.SetDefault("nvd.api_key", "")
	v.SetDefault("github.token", "")
	v.SetDefault("osv.base_url", "https://api.osv.dev/v1")

	v.SetDefault("interval.cve", 300*time.Second)
	v.SetDefault("interval.vendor", 600*time.Second)
	v.SetDefault("interval.community", 3600*time.Second)

	v.SetDefault("scheduler.jitter", 0.1)
	v.SetDefault("scheduler.cycle_budget", 5*time.Minute)
	v.SetDefault("scheduler.max_backoff", 30*time.Minute)
	v.SetDefault("scheduler.lookback", 24*time.Hour)

	v.SetDefault("dedup.title_similarity", 0.6)
	v.SetDefault("dedup.date_window", 14*24*time.Hour)

	v.SetDefault("score.corroboration_window", 72*time.Hour)
	v.SetDefault("score.stale_after", 7*24*time.Hour)

	v.SetDefault("alert.window", 10*time.Minute)
	v.SetDefault("alert.max_in_window", 3)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic.vulnerabilities", "vulnerability-events")
	v.SetDefault("kafka.topic.alerts", "alert-events")
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel_id", "")

	v.SetDefault("remediation.ttl", 30*time.Minute)

	v.SetDefault("port", "8080")
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("tools.registry", "tools.yaml")

	return &Settings{
		ArangoURL:  v.GetString("arango.url"),
		ArangoUser: v.GetString("arango.user"),
		ArangoPass: v.GetString("arango.pass"),

		NVDBaseURL:  v.GetString("nvd.base_url"),
		NVDAPIKey:   v.GetString("nvd.api_key"),
		GitHubToken: v.GetString("github.token"),
		OSVBaseURL:  v.GetString("osv.base_url"),

		CVEInterval:       v.GetDuration("interval.cve"),
		VendorInterval:    v.GetDuration("interval.vendor"),
		CommunityInterval: v.GetDuration("interval.community"),

		JitterFraction: v.GetFloat64("scheduler.jitter"),
		CycleBudget:    v.GetDuration("scheduler.cycle_budget"),
		MaxBackoff:     v.GetDuration("scheduler.max_backoff"),
		LookbackWindow: v.GetDuration("scheduler.lookback"),

		TitleSimilarity: v.GetFloat64("dedup.title_similarity"),
		DateWindow:      v.GetDuration("dedup.date_window"),

		CorroborationWindow: v.GetDuration("score.corroboration_window"),
		StaleAfter:          v.GetDuration("score.stale_after"),

		AlertWindow:    v.GetDuration("alert.window"),
		AlertMaxInFlow: v.GetInt("alert.max_in_window"),

		KafkaBrokers:    strings.Split(v.GetString("kafka.brokers"), ","),
		KafkaVulnTopic:  v.GetString("kafka.topic.vulnerabilities"),
		KafkaAlertTopic: v.GetString("kafka.topic.alerts"),
		SlackToken:      v.GetString("slack.token"),
		SlackChannelID:  v.GetString("slack.channel_id"),

		RemediationTTL: v.GetDuration("remediation.ttl"),

		Port:             v.GetString("port"),
		ReadCacheTTL:     v.GetDuration("cache.ttl"),
		ToolRegistryPath: v.GetString("tools.registry"),
	}
}
