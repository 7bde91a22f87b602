// Package prismic is a small client for the Prismic REST API v2: it resolves
// the master ref, runs search queries and follows the next_page cursors the
// API hands back.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/eringen/spacetraveling/faults"
	"github.com/eringen/spacetraveling/metrics"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultRefTTL     = 5 * time.Second
	maxBodySize       = 8 << 20
)

// Client talks to one Prismic repository.
type Client struct {
	endpoint    string
	accessToken string
	http        *http.Client
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	refTTL      time.Duration
	cb          *gobreaker.CircuitBreaker

	mu         sync.Mutex
	ref        string
	refFetched time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the token sent with every request to a private repository.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every API call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times network errors and 5xx responses are
// retried, and the initial backoff which doubles after each attempt.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithRefTTL sets how long the master ref is reused before it is looked up again.
func WithRefTTL(d time.Duration) Option {
	return func(c *Client) { c.refTTL = d }
}

// NewClient returns a client for the API endpoint, e.g.
// https://my-repo.cdn.prismic.io/api/v2.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		http:       &http.Client{},
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		refTTL:     defaultRefTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "prismic",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// The API answered; a 4xx is the caller's problem, not an outage.
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitState.Set(float64(to))
		},
	})
	return c
}

// Endpoint returns the API endpoint the client was built with.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prismic: %s returned status %d", e.URL, e.Code)
}

// MasterRef returns the current master ref, cached for the ref TTL.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && time.Since(c.refFetched) < c.refTTL {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var api API
	if err := c.get(ctx, "api", c.withToken(c.endpoint), &api); err != nil {
		return "", err
	}
	ref, ok := api.MasterRef()
	if !ok {
		return "", faults.MalformedRecord("prismic.MasterRef", "api response has no master ref")
	}

	c.mu.Lock()
	c.ref = ref
	c.refFetched = time.Now()
	c.mu.Unlock()
	return ref, nil
}

// Query runs a search against the master ref.
func (c *Client) Query(ctx context.Context, preds []Predicate, opts QueryOptions) (*Response, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(c.endpoint + "/documents/search")
	if err != nil {
		return nil, fmt.Errorf("prismic: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("ref", ref)
	if len(preds) > 0 {
		q.Set("q", joinPredicates(preds))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if opts.Lang != "" {
		q.Set("lang", opts.Lang)
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u.RawQuery = q.Encode()

	var resp Response
	if err := c.get(ctx, "query", u.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetByUID returns the document of custom type typ with the given UID.
func (c *Client) GetByUID(ctx context.Context, typ, uid string) (*Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("my."+typ+".uid", uid)}, QueryOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, faults.NotFound("prismic.GetByUID", fmt.Errorf("%s %q", typ, uid))
	}
	return &resp.Results[0], nil
}

// FetchPage GETs a cursor URL (a next_page or prev_page value) verbatim and
// decodes the envelope it returns.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Response, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("prismic: empty page url")
	}
	var resp Response
	if err := c.get(ctx, "page", c.withToken(pageURL), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Each runs a query and follows next_page until the last page or maxPages,
// calling visit with every page in order.
func (c *Client) Each(ctx context.Context, preds []Predicate, opts QueryOptions, maxPages int, visit func(*Response) error) error {
	resp, err := c.Query(ctx, preds, opts)
	if err != nil {
		return err
	}
	for pages := 1; ; pages++ {
		if err := visit(resp); err != nil {
			return err
		}
		next := resp.Next()
		if next == "" {
			return nil
		}
		if maxPages > 0 && pages >= maxPages {
			slog.Warn("Reached max pages limit", "max_pages", maxPages)
			return nil
		}
		if resp, err = c.FetchPage(ctx, next); err != nil {
			return err
		}
	}
}

func (c *Client) withToken(raw string) string {
	if c.accessToken == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("access_token") == "" {
		q.Set("access_token", c.accessToken)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Owns reports whether raw points at this client's repository. Cursors that
// come back from visitors are checked with it before they are fetched.
func (c *Client) Owns(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return false
	}
	return u.Scheme == base.Scheme && u.Host == base.Host && strings.HasPrefix(u.Path, base.Path)
}

// StripToken removes the access token from a cursor before it is handed to
// a browser. FetchPage adds it back.
func StripToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if !q.Has("access_token") {
		return raw
	}
	q.Del("access_token")
	u.RawQuery = q.Encode()
	return u.String()
}

// get fetches rawURL through the circuit breaker and decodes the JSON body
// into out. Every failure comes back as a faults.KindFetchFailed error,
// except a body that is not the expected JSON (KindMalformedRecord).
func (c *Client) get(ctx context.Context, op, rawURL string, out any) error {
	start := time.Now()
	defer func() {
		metrics.CMSRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.cb.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, op, rawURL)
	})
	if err != nil {
		metrics.CMSRequests.WithLabelValues(op, "error").Inc()
		return faults.FetchFailed("prismic."+op, err)
	}
	if err := json.Unmarshal(body.([]byte), out); err != nil {
		metrics.CMSRequests.WithLabelValues(op, "malformed").Inc()
		return faults.MalformedRecord("prismic."+op, "decode response: %v", err)
	}
	metrics.CMSRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, op, rawURL string) ([]byte, error) {
	backoff := c.backoff
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			metrics.CMSRetries.WithLabelValues(op).Inc()
			slog.Info("Retrying request", "op", op, "attempt", i, "max_retries", c.maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Request failed", "op", op, "error", err)
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}

		if resp.StatusCode >= 500 {
			slog.Warn("Server error", "op", op, "status_code", resp.StatusCode)
			lastErr = &StatusError{Code: resp.StatusCode, URL: redact(rawURL)}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, URL: redact(rawURL)}
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// redact drops the access token from URLs that end up in errors and logs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
