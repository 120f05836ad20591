// Package lookup resolves card identifiers to canonical card page URLs through the
// remote card API. Misses seen by Resolve and Lookup are remembered for the
// lifetime of a Client so the same query is never sent twice; Fetch does not
// remember them.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"card-scanner/internal/card"
)

// DefaultBaseURL is the production card API.
const DefaultBaseURL = "https://1dj438lpp7.execute-api.us-east-2.amazonaws.com/api"

// ErrNotFound is returned for every unsuccessful lookup: non-200 status, transport
// failure or undecodable body.
var ErrNotFound = errors.New("card not found")

// ErrUnavailable additionally marks misses caused by the service rather than the
// card: transport failures and 5xx responses. Such errors also match ErrNotFound.
var ErrUnavailable = errors.New("lookup service unavailable")

// maxBodyBytes bounds the response body read.
const maxBodyBytes = 1 << 20

type response struct {
	URL string `json:"url"`
}

// Client issues lookups and remembers failed queries.
type Client struct {
	baseURL    string
	httpc      *http.Client
	logger     *slog.Logger
	onResolved func(id card.Identifier, url string)

	mu       sync.Mutex
	failed   map[string]struct{}
	inFlight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpc = &http.Client{Timeout: d} }
}

// OnResolved registers the callback invoked from the lookup goroutine after a
// successful Resolve.
func OnResolved(fn func(id card.Identifier, url string)) Option {
	return func(cl *Client) { cl.onResolved = fn }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		failed:   make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve starts an asynchronous lookup and returns immediately. It returns false
// without sending anything when the query already failed in this session or is
// currently in flight.
func (c *Client) Resolve(ctx context.Context, id card.Identifier) bool {
	query, err := id.Query(c.baseURL)
	if err != nil {
		c.logger.Warn("lookup: cannot build query", "id", id.String(), "error", err)
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.failed[query]; ok {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.inFlight[query]; ok {
		c.mu.Unlock()
		return false
	}
	c.inFlight[query] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	// The lookup outlives the frame that asked for it.
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inFlight, query)
			c.mu.Unlock()
		}()

		url, err := c.get(ctx, query)
		if err != nil {
			return
		}
		if c.onResolved != nil {
			c.onResolved(id, url)
		}
	}()
	return true
}

// Lookup performs one synchronous lookup. Queries that already failed in this
// session return ErrNotFound without a request.
func (c *Client) Lookup(ctx context.Context, id card.Identifier) (string, error) {
	query, err := id.Query(c.baseURL)
	if err != nil {
		return "", err
	}
	if c.Failed(query) {
		return "", fmt.Errorf("%s: %w (cached)", id, ErrNotFound)
	}
	return c.get(ctx, query)
}

// Fetch performs one synchronous lookup without consulting or updating the failed
// set. Long-running services use it so that an outage or a card added to the
// catalog later is not remembered as a miss.
func (c *Client) Fetch(ctx context.Context, id card.Identifier) (string, error) {
	query, err := id.Query(c.baseURL)
	if err != nil {
		return "", err
	}
	start := time.Now()
	url, status, err := c.fetch(ctx, query)
	if err != nil {
		c.logger.Debug("lookup: miss", "query", query, "status", status,
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", err
	}
	return url, nil
}

// get sends the request and records the query as failed on any miss.
func (c *Client) get(ctx context.Context, query string) (string, error) {
	start := time.Now()
	url, status, err := c.fetch(ctx, query)
	if err != nil {
		c.markFailed(query)
		c.logger.Debug("lookup: miss", "query", query, "status", status,
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", err
	}
	c.logger.Info("lookup: resolved", "query", query, "url", url,
		"duration_ms", time.Since(start).Milliseconds())
	return url, nil
}

func (c *Client) fetch(ctx context.Context, query string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: build request: %v", ErrNotFound, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w: %v", ErrNotFound, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", resp.StatusCode, fmt.Errorf("%w: %w: status %d", ErrNotFound, ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", resp.StatusCode, fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrNotFound, err)
	}
	if body.URL == "" {
		return "", resp.StatusCode, fmt.Errorf("%w: response has no url", ErrNotFound)
	}
	return body.URL, resp.StatusCode, nil
}

func (c *Client) markFailed(query string) {
	c.mu.Lock()
	c.failed[query] = struct{}{}
	c.mu.Unlock()
}

// Failed reports whether query has failed in this session.
func (c *Client) Failed(query string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failed[query]
	return ok
}

// FailedCount returns the number of distinct failed queries.
func (c *Client) FailedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failed)
}

// Wait blocks until every lookup started by Resolve has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close stops accepting new lookups and waits for the ones in flight.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}
