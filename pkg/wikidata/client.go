// Package wikidata enriches the graph from Wikidata, via SPARQL on the
// query service and the wbsearchentities API.
package wikidata

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ClientConfig holds endpoints and pacing for the Wikidata APIs.
type ClientConfig struct {
	SPARQLURL     string
	SearchURL     string
	UserAgent     string
	MaxRetries    int
	RetrySleep    time.Duration
	PolitePause   time.Duration
	SearchSleep   time.Duration
	SearchLimit   int
	QueryTimeout  time.Duration
	SearchTimeout time.Duration
}

// DefaultClientConfig returns the endpoints and pacing used when no
// configuration is supplied.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SPARQLURL:     "https://query.wikidata.org/sparql",
		SearchURL:     "https://www.wikidata.org/w/api.php",
		UserAgent:     "argos-kg/1.0 (graph enrichment)",
		MaxRetries:    4,
		RetrySleep:    6 * time.Second,
		PolitePause:   600 * time.Millisecond,
		SearchSleep:   250 * time.Millisecond,
		SearchLimit:   10,
		QueryTimeout:  120 * time.Second,
		SearchTimeout: 30 * time.Second,
	}
}

// Client talks to the Wikidata query service and search API. Query calls
// run behind a circuit breaker so a down WDQS fails fast instead of
// burning the full retry schedule on every batch.
type Client struct {
	cfg      ClientConfig
	queryHC  *http.Client
	searchHC *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *slog.Logger
}

// NewClient creates a client. Zero-valued config fields fall back to the
// defaults.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.SPARQLURL == "" {
		cfg.SPARQLURL = def.SPARQLURL
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = def.SearchURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetrySleep <= 0 {
		cfg.RetrySleep = def.RetrySleep
	}
	if cfg.PolitePause < 0 {
		cfg.PolitePause = def.PolitePause
	}
	if cfg.SearchSleep < 0 {
		cfg.SearchSleep = def.SearchSleep
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = def.SearchLimit
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "wdqs",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		cfg:      cfg,
		queryHC:  &http.Client{Timeout: cfg.QueryTimeout},
		searchHC: &http.Client{Timeout: cfg.SearchTimeout},
		breaker:  breaker,
		log:      log,
	}
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

// retryableStatus lists the responses the Wikidata services send under
// load. Other 4xx responses mean the request itself is wrong and
// retrying cannot help.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Query runs a SPARQL query against WDQS, retrying transient failures.
// The pause between batches is the caller's job via Pause.
func (c *Client) Query(ctx context.Context, sparql string) ([]map[string]sparqlValue, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return withRetries(ctx, c, "sparql query", func() ([]map[string]sparqlValue, time.Duration, error) {
			return c.queryOnce(ctx, sparql)
		})
	})
	if err != nil {
		return nil, err
	}
	return out.([]map[string]sparqlValue), nil
}

// withRetries runs once up to MaxRetries times. once reports how long to
// wait after a failure: -1 marks the error permanent, 0 retries with the
// attempt-scaled base sleep, and a positive value is the server's own
// Retry-After hint.
func withRetries[T any](ctx context.Context, c *Client, what string, once func() (T, time.Duration, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		out, retryAfter, err := once()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if retryAfter < 0 {
			break
		}
		wait := retryAfter
		if wait == 0 {
			wait = c.cfg.RetrySleep * time.Duration(attempt)
		}
		c.log.Warn("wikidata busy, backing off", "call", what, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, fmt.Errorf("%s failed: %w", what, lastErr)
}

// queryOnce performs one request. retryAfter is -1 for permanent errors,
// 0 for retryable errors with no server hint, and positive when the
// server asked for a specific wait.
func (c *Client) queryOnce(ctx context.Context, sparql string) (bindings []map[string]sparqlValue, retryAfter time.Duration, err error) {
	form := url.Values{}
	form.Set("query", sparql)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SPARQLURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := c.queryHC.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		after := time.Duration(-1)
		if retryableStatus(resp.StatusCode) {
			after = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, after, fmt.Errorf("query service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := io.Reader(resp.Body)
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return nil, 0, fmt.Errorf("failed to decode gzip response: %w", gzErr)
		}
		defer gz.Close()
		reader = gz
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") {
		return nil, -1, fmt.Errorf("query service returned unexpected content type %q", ct)
	}

	var parsed sparqlResponse
	if err := json.NewDecoder(reader).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode sparql response: %w", err)
	}
	return parsed.Results.Bindings, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

// Pause sleeps the polite inter-batch delay, returning early on context
// cancellation.
func (c *Client) Pause(ctx context.Context) error {
	if c.cfg.PolitePause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.PolitePause):
		return nil
	}
}

// SearchResult is one wbsearchentities hit.
type SearchResult struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases"`
	Match   struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"match"`
}

type searchResponse struct {
	Search []SearchResult `json:"search"`
}

// SearchEntities looks up items by label via wbsearchentities, retrying
// transient failures on the same schedule as Query.
func (c *Client) SearchEntities(ctx context.Context, term string) ([]SearchResult, error) {
	return withRetries(ctx, c, "entity search", func() ([]SearchResult, time.Duration, error) {
		return c.searchOnce(ctx, term)
	})
}

func (c *Client) searchOnce(ctx context.Context, term string) ([]SearchResult, time.Duration, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("language", "en")
	params.Set("format", "json")
	params.Set("type", "item")
	params.Set("search", term)
	params.Set("limit", strconv.Itoa(c.cfg.SearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.searchHC.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		after := time.Duration(-1)
		if retryableStatus(resp.StatusCode) {
			after = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, after, fmt.Errorf("entity search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Search, 0, nil
}

// SearchPause sleeps the per-lookup delay for the search API.
func (c *Client) SearchPause(ctx context.Context) error {
	if c.cfg.SearchSleep <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.SearchSleep):
		return nil
	}
}
