package credential

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/metricsx"
)

const (
	// DefaultRefreshMargin is how long before expiry a cached token stops
	// being handed out.
	DefaultRefreshMargin = 60 * time.Second

	// DefaultExchangeTimeout bounds one round trip to the token endpoint.
	DefaultExchangeTimeout = 30 * time.Second
)

// Option configures a Provider.
type Option func(*Provider)

// WithTokenURL overrides the token endpoint. It is also the assertion's aud.
func WithTokenURL(tokenURL string) Option {
	return func(p *Provider) { p.tokenURL = tokenURL }
}

// WithHTTPClient sets the client used for exchanges.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithRefreshMargin sets how long before expiry a token is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(p *Provider) { p.margin = d }
}

// WithAssertionLifetime sets exp - iat of signed assertions, capped at one
// hour.
func WithAssertionLifetime(d time.Duration) Option {
	return func(p *Provider) { p.lifetime = d }
}

// WithClock swaps the time source used for assertions and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger. Tokens are only ever logged by fingerprint.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records exchanges on c.
func WithMetrics(c *metricsx.Collector) Option {
	return func(p *Provider) { p.metrics = c }
}

// WithExchangeTimeout bounds each exchange independently of the callers
// waiting on it.
func WithExchangeTimeout(d time.Duration) Option {
	return func(p *Provider) { p.exchangeTimeout = d }
}
