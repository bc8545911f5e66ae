// Package bus fetches daily event archives from the upstream event bus.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gyaneshwarpardhi/eventquery/internal/event"
	"github.com/gyaneshwarpardhi/eventquery/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// Client fetches day archives, bearer-authenticated. Archives are
// immutable once published, so fetched days are kept in an LRU snapshot
// cache and never re-fetched while resident.
type Client struct {
	base  string
	token string
	http  *http.Client
	days  *lru.Cache[string, []event.Event]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 60s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the bus at base. cacheDays bounds the day
// snapshot cache; values below 1 are raised to 1.
func New(base, token string, cacheDays int, opts ...Option) *Client {
	if cacheDays < 1 {
		cacheDays = 1
	}
	days, _ := lru.New[string, []event.Event](cacheDays)
	c := &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: defaultTimeout},
		days:  days,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// archiveBody is the wire shape of a day archive.
type archiveBody struct {
	Events []event.Event `json:"events"`
}

// Archive returns the events collected on the given date. A nil slice
// means the bus had no archive body for that day; an error means the
// fetch itself failed and the request must fail hard.
func (c *Client) Archive(ctx context.Context, date string) ([]event.Event, error) {
	if evs, ok := c.days.Get(date); ok {
		return evs, nil
	}

	url := fmt.Sprintf("%s/events/archive/%s", c.base, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		slog.Error("upstream fetch failed", "url", url, "err", err)
		return nil, fmt.Errorf("fetch archive %s: %w", date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		slog.Error("upstream fetch failed", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("fetch archive %s: status %d", date, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch archive %s: %w", date, err)
	}
	var archive archiveBody
	if err := json.Unmarshal(body, &archive); err != nil {
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse archive %s: %w", date, err)
	}

	metrics.UpstreamFetches.WithLabelValues("ok").Inc()
	c.days.Add(date, archive.Events)
	return archive.Events, nil
}
