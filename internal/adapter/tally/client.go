package tally

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/pscheid92/pagerating/internal/adapter/metrics"
	"github.com/pscheid92/pagerating/internal/domain"
	"github.com/pscheid92/pagerating/internal/platform/correlation"
	"github.com/pscheid92/pagerating/internal/platform/retry"
	"github.com/pscheid92/pagerating/internal/platform/version"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 10

	headerClientID = "X-Client-ID"

	opFetch = "fetch_rating"
	opVote  = "submit_vote"
)

var defaultReadPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   200 * time.Millisecond,
	MaxBackoff:       2 * time.Second,
	RateLimitBackoff: 1 * time.Second,
}

var _ domain.TallyClient = (*Client)(nil)

// HTTPError captures a non-2xx response from the tally service.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tally service returned status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Client talks to the tally service. Copies made with WithClientID share the
// HTTP client and circuit breaker.
type Client struct {
	endpoint   *url.URL
	http       *http.Client
	clientID   string
	timeout    time.Duration
	readPolicy retry.Policy
	breaker    circuitbreaker.CircuitBreaker[any]
	metrics    *metrics.RemoteMetrics
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the deadline applied to each request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithReadPolicy replaces the retry policy used for rating reads.
func WithReadPolicy(p retry.Policy) Option {
	return func(c *Client) { c.readPolicy = p }
}

// WithMetrics records request counts, latency and breaker state.
func WithMetrics(m *metrics.RemoteMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the tally service at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid tally endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid tally endpoint %q: need an absolute http(s) URL", endpoint)
	}

	c := &Client{
		endpoint:   u,
		http:       &http.Client{},
		timeout:    defaultTimeout,
		readPolicy: defaultReadPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.metrics)

	return c, nil
}

// newBreaker opens on a 60% failure rate over at least 5 calls in 10s, waits
// 30s before half-opening, and closes again after 1 success.
func newBreaker(m *metrics.RemoteMetrics) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "tally_client",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitBreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// WithClientID returns a copy that identifies itself to the service as clientID.
func (c *Client) WithClientID(clientID string) *Client {
	clone := *c
	clone.clientID = clientID
	return &clone
}

// Healthy reports ErrRemoteUnavailable while the circuit breaker is open.
func (c *Client) Healthy(context.Context) error {
	if c.breaker.State() == circuitbreaker.OpenState {
		return fmt.Errorf("%w: circuit breaker open", domain.ErrRemoteUnavailable)
	}
	return nil
}

// FetchRating reads the aggregate tally for pageURL.
func (c *Client) FetchRating(ctx context.Context, pageURL string) (domain.Tally, error) {
	p := c.readPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.DebugContext(ctx, "Retrying tally read", "page", pageURL, "attempt", attempt, "backoff", backoff, "error", err)
	}

	return retry.Do(ctx, p, classifyRead, func(ctx context.Context) (domain.Tally, error) {
		var tally domain.Tally
		err := c.call(ctx, opFetch, func(ctx context.Context) error {
			req, err := c.newReadRequest(ctx, pageURL)
			if err != nil {
				return err
			}
			body, err := c.do(req)
			if err != nil {
				return err
			}
			tally, err = decodeRating(body)
			return err
		})
		return tally, err
	})
}

// SubmitVote records one vote for pageURL and maps the service's answer to an outcome.
// Rejections are an outcome, not an error.
func (c *Client) SubmitVote(ctx context.Context, pageURL string, kind domain.VoteKind) (domain.VoteOutcome, error) {
	outcome := domain.VoteFailure
	err := c.call(ctx, opVote, func(ctx context.Context) error {
		req, err := c.newVoteRequest(ctx, pageURL, kind)
		if err != nil {
			return err
		}
		body, err := c.do(req)
		if err != nil {
			return err
		}
		outcome, err = decodeVote(body)
		return err
	})
	if err != nil {
		return domain.VoteFailure, err
	}
	return outcome, nil
}

// call runs one attempt under the breaker and the per-attempt deadline.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !c.breaker.TryAcquirePermit() {
		c.observe(op, "circuit_open", 0)
		return fmt.Errorf("%s: %w: %w", op, domain.ErrRemoteUnavailable, circuitbreaker.ErrOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if countsAsFailure(err) {
		c.breaker.RecordError(err)
	} else {
		c.breaker.RecordSuccess()
	}

	c.observe(op, statusLabel(err), elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) newReadRequest(ctx context.Context, pageURL string) (*http.Request, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("url", pageURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build read request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.decorate(req)
	return req, nil
}

func (c *Client) newVoteRequest(ctx context.Context, pageURL string, kind domain.VoteKind) (*http.Request, error) {
	form := url.Values{}
	form.Set("url", pageURL)
	form.Set("like", kind.Flag())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build vote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	c.decorate(req)
	return req, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", version.UserAgent())
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	correlation.Inject(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (c *Client) observe(op, status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.Requests.WithLabelValues(op, status).Inc()
	if elapsed > 0 {
		c.metrics.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

// countsAsFailure is true for faults that say the service is unhealthy:
// transport errors, timeouts and 5xx. A 4xx or a bad payload means the
// service answered.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, domain.ErrMalformedPayload) || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

func classifyRead(err error) retry.Action {
	switch {
	case errors.Is(err, domain.ErrMalformedPayload),
		errors.Is(err, domain.ErrRemoteUnavailable),
		errors.Is(err, context.Canceled):
		return retry.Stop
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case httpErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	return retry.Retry
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	}
	if errors.Is(err, domain.ErrMalformedPayload) {
		return "malformed"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
