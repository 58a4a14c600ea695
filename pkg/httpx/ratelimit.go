package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultClientLimit is what outgoing API traffic gets unless configured
// otherwise: 10 requests per second with a burst of 10.
var DefaultClientLimit = RateLimitConfig{
	RequestsPerWindow: 10,
	Window:            time.Second,
	Burst:             10,
}

// Limit converts the window form into a per-second token rate. A zero or
// negative config means unlimited.
func (c RateLimitConfig) Limit() rate.Limit {
	if c.RequestsPerWindow <= 0 || c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// KeyExtractor groups outgoing requests into buckets for rate limiting.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor buckets by target host, so the token endpoint and the API
// never starve each other.
func HostKeyExtractor(r *http.Request) string {
	return strings.ToLower(r.URL.Host)
}

// RateLimitTransport is an http.RoundTripper that blocks until the bucket for
// the request's key has a token, or the request context gives up.
type RateLimitTransport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	config   RateLimitConfig
	key      KeyExtractor
	limiters sync.Map // map[string]*rate.Limiter
}

// NewRateLimitTransport wraps base with a per-key token bucket. A nil key
// extractor buckets per host.
func NewRateLimitTransport(base http.RoundTripper, config RateLimitConfig, key KeyExtractor) *RateLimitTransport {
	if key == nil {
		key = HostKeyExtractor
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimitTransport{Base: base, config: config, key: key}
}

func (t *RateLimitTransport) limiter(key string) *rate.Limiter {
	if l, ok := t.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	actual, _ := t.limiters.LoadOrStore(key, rate.NewLimiter(t.config.Limit(), t.config.Burst))
	return actual.(*rate.Limiter)
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := t.limiter(t.key(req)).Wait(ctx); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, waitError(ctx, err)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// waitError keeps context errors matchable with errors.Is. rate.Limiter
// refuses early when the deadline can't be met and says so in plain text.
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("httpx: rate limit wait: %w", ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("httpx: rate limit wait: %w (%v)", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("httpx: rate limit wait: %w", err)
}
