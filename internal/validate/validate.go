package validate

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/siderolabs/go-retry/retry"

	"github.com/refdex-dev/refdex/internal/errors"
)

const (
	// defaultRetryBudget bounds the total time spent retrying one URL.
	defaultRetryBudget = 15 * time.Second

	// defaultAttemptTimeout bounds a single probe.
	defaultAttemptTimeout = 5 * time.Second

	// defaultRetryUnit is the base unit of the exponential backoff.
	defaultRetryUnit = 500 * time.Millisecond

	// defaultCacheTTL is how long a verdict stays fresh.
	defaultCacheTTL = 15 * time.Minute
)

// Checker probes URLs for reachability. Verdicts are cached in-process so
// repeated checks of the same URL within one run do not re-probe.
type Checker struct {
	client         *http.Client
	cache          *cache.Cache
	budget         time.Duration
	attemptTimeout time.Duration
	retryUnit      time.Duration
	cacheTTL       time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithRetryBudget sets the total time allowed for retries of one URL.
func WithRetryBudget(d time.Duration) Option {
	return func(c *Checker) {
		c.budget = d
	}
}

// WithAttemptTimeout sets the timeout for a single probe.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.attemptTimeout = d
	}
}

// WithRetryUnit sets the base unit of the exponential backoff.
func WithRetryUnit(d time.Duration) Option {
	return func(c *Checker) {
		c.retryUnit = d
	}
}

// WithCacheTTL sets how long verdicts are reused without re-probing.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Checker) {
		c.cacheTTL = d
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		budget:         defaultRetryBudget,
		attemptTimeout: defaultAttemptTimeout,
		retryUnit:      defaultRetryUnit,
		cacheTTL:       defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{
		Timeout: c.attemptTimeout,
	}
	c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	return c
}

// Check probes rawURL and returns nil when it is reachable. Malformed URLs
// and definitive server answers (4xx/5xx statuses, DNS failure) surface
// immediately; transient failures (timeout, connection reset) are retried
// with exponential backoff inside the configured budget and surface as a
// network error only once the budget is spent. Check never mutates
// anything beyond its own verdict cache.
func (c *Checker) Check(ctx context.Context, rawURL string) error {
	if err := checkSyntax(rawURL); err != nil {
		return err
	}

	if v, found := c.cache.Get(rawURL); found {
		if v == nil {
			return nil
		}
		return v.(error)
	}

	verdict := c.probe(ctx, rawURL)
	if verdict == nil || !stderrors.Is(verdict, context.Canceled) {
		c.cache.Set(rawURL, verdict, cache.DefaultExpiration)
	}
	return verdict
}

// checkSyntax rejects anything that is not an absolute http(s) URL.
func checkSyntax(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("E040").WithDetailf("%q could not be parsed: %v", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("E040").WithDetailf("%q is not an absolute http or https URL", rawURL)
	}
	if u.Host == "" {
		return errors.New("E040").WithDetailf("%q has no host", rawURL)
	}
	return nil
}

// probe runs the reachability check under the retry budget.
func (c *Checker) probe(ctx context.Context, rawURL string) error {
	err := retry.Exponential(c.budget, retry.WithUnits(c.retryUnit)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			return c.probeOnce(ctx, rawURL)
		})
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	// Definitive verdicts pass through; anything left is the transient
	// path that never cleared within the budget.
	if errors.HasCode(err, "E040") || errors.HasCode(err, "E041") {
		return err
	}
	return errors.New("E042").
		WithDetailf("%s did not answer within the retry budget", rawURL).
		Wrap(err)
}

// probeOnce issues one HEAD probe, falling back to a ranged GET for
// servers that reject HEAD.
func (c *Checker) probeOnce(ctx context.Context, rawURL string) error {
	status, err := c.head(ctx, rawURL)
	if err != nil {
		return classify(err)
	}

	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = c.rangeGet(ctx, rawURL)
		if err != nil {
			return classify(err)
		}
	}

	if status >= 200 && status < 300 {
		return nil
	}
	return errors.New("E041").WithDetailf("%s returned status %d", rawURL, status)
}

func (c *Checker) head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Checker) rangeGet(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	// Servers that ignore Range answer 200 with the whole body; drain at
	// most a token amount before closing.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	return resp.StatusCode, nil
}

// classify sorts a transport error into retryable and fatal. Cancellation
// propagates untouched so callers can tell an interrupt from a bad URL.
func classify(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if IsTransient(err) {
		return retry.ExpectedError(err)
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return errors.New("E041").WithDetailf("could not resolve host %q", dnsErr.Name)
	}
	return errors.New("E041").WithDetail(err.Error())
}

// IsTransient reports whether err looks like a transient network failure
// (timeout, connection reset, truncated response) worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if stderrors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
