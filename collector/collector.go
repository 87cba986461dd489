// Package collector defines the source adapter contract and the shared HTTP
// plumbing every adapter fetches through.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// ErrSourceUnavailable marks a network or HTTP failure against an external
// advisory source. The scheduler retries these with backoff; they are never
// fatal for the cycle.
var ErrSourceUnavailable = errors.New("source unavailable")

// Collector is the single capability a source adapter exposes: fetch the raw
// advisories published since a checkpoint. Fetch is finite per call and
// restartable — re-fetching from the same `since` must be safe.
type Collector interface {
	Name() string
	Interval() time.Duration
	Fetch(ctx context.Context, since *time.Time) ([]model.RawRecord, error)
}

// Client is the HTTP client shared by source adapters: a circuit breaker in
// front of a pooled transport, with adapter-specific default headers.
type Client struct {
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	headers map[string]string
	logger  *zap.SugaredLogger
}

// NewClient builds a client for one source. Headers are applied to every
// request (auth tokens, API keys).
func NewClient(name string, headers map[string]string, logger *zap.SugaredLogger) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	cbSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("circuit breaker %s changed state from %v to %v", name, from, to)
		},
	}

	return &Client{
		http:    httpClient,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		headers: headers,
		logger:  logger,
	}
}

// Get fetches a URL through the circuit breaker and returns the response
// body. Any transport error, breaker rejection, or non-2xx status maps to
// ErrSourceUnavailable.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Post sends a JSON body through the circuit breaker.
func (c *Client) Post(ctx context.Context, url string, body io.Reader) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return result.([]byte), nil
}

// GetJSON fetches a URL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	data, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
