// Package vendorrss collects security announcements from vendor RSS and Atom
// feeds. Feeds carry no structured severity, so entries are kept raw and the
// normalizer estimates severity from wording.
package vendorrss

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- used for stable entry IDs, not security
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// SourcePrefix tags records as e.g. "rss-cursor". The vendor name completes
// the provenance tag.
const SourcePrefix = "rss-"

// securityKeywords gates feed entries: anything not matching is changelog
// noise.
var securityKeywords = []string{
	"security", "vulnerability", "cve", "patch", "fix", "update",
	"advisory", "alert", "exploit", "bug fix",
}

// Feed names one vendor security feed to poll.
type Feed struct {
	Vendor string
	URL    string
}

// DefaultFeeds are the vendor announcement feeds polled out of the box.
var DefaultFeeds = []Feed{
	{Vendor: "cursor", URL: "https://cursor.ai/security.rss"},
	{Vendor: "github", URL: "https://github.blog/security/feed/"},
	{Vendor: "jetbrains", URL: "https://blog.jetbrains.com/security/feed/"},
	{Vendor: "replit", URL: "https://blog.replit.com/feed.xml"},
	{Vendor: "sourcegraph", URL: "https://about.sourcegraph.com/blog/rss.xml"},
}

// Entry is the payload this adapter emits for one feed item.
type Entry struct {
	Vendor      string    `json:"vendor"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Published   time.Time `json:"published"`
}

type RSS struct {
	client   *collector.Client
	matcher  *collector.ToolMatcher
	feeds    []Feed
	parser   *gofeed.Parser
	interval time.Duration
	logger   *zap.SugaredLogger
}

func New(interval time.Duration, feeds []Feed, matcher *collector.ToolMatcher, logger *zap.SugaredLogger) *RSS {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	return &RSS{
		client:   collector.NewClient("vendor-rss", nil, logger),
		matcher:  matcher,
		feeds:    feeds,
		parser:   gofeed.NewParser(),
		interval: interval,
		logger:   logger,
	}
}

func (r *RSS) Name() string            { return "vendor-rss" }
func (r *RSS) Interval() time.Duration { return r.interval }

// Fetch polls every configured feed. A single unreachable feed does not fail
// the cycle; only all feeds failing does.
func (r *RSS) Fetch(ctx context.Context, since *time.Time) ([]model.RawRecord, error) {
	now := time.Now().UTC()

	var records []model.RawRecord
	var lastErr error
	failures := 0
	for _, feed := range r.feeds {
		data, err := r.client.Get(ctx, feed.URL)
		if err != nil {
			r.logger.Warnf("failed to fetch feed %s: %v", feed.URL, err)
			failures++
			lastErr = err
			continue
		}

		parsed, err := r.parser.Parse(bytes.NewReader(data))
		if err != nil {
			r.logger.Warnf("failed to parse feed %s: %v", feed.URL, err)
			continue
		}

		for _, item := range parsed.Items {
			published := now
			if item.PublishedParsed != nil {
				published = item.PublishedParsed.UTC()
			}
			if since != nil && published.Before(*since) {
				continue
			}

			text := item.Title + " " + item.Description
			if !securityRelated(text) || !r.matcher.Relevant(text) {
				continue
			}

			entry := Entry{
				Vendor:      feed.Vendor,
				Title:       item.Title,
				Description: item.Description,
				Link:        item.Link,
				Published:   published,
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			records = append(records, model.RawRecord{
				Source:    SourcePrefix + feed.Vendor,
				SourceRef: entryRef(item),
				Payload:   payload,
				FetchedAt: now,
			})
		}
	}

	if failures == len(r.feeds) && lastErr != nil {
		return nil, lastErr
	}
	r.logger.Infof("vendor feeds returned %d security entries", len(records))
	return records, nil
}

// entryRef derives a stable per-item reference so re-polls of the same feed
// map to the same source record.
func entryRef(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	sum := md5.Sum([]byte(item.Link)) // #nosec G401
	return hex.EncodeToString(sum[:])[:8]
}

func securityRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range securityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
