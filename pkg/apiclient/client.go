// Package apiclient issues authorized JSON calls against a REST API. Every
// call fetches a bearer token from a TokenProvider, so token refresh is
// invisible to callers.
//
// Errors are typed: token problems come back exactly as the TokenProvider
// returned them (a *credential.AuthError for the real provider), network
// problems as *TransportError, non-2xx answers as *ProtocolError and
// undecodable bodies as *DecodeError. The client never retries.
package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/delegate/pkg/credential"
	"github.com/aussiebroadwan/delegate/pkg/metricsx"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
)

const (
	DefaultUserAgent        = "delegate-apiclient/1.0"
	DefaultMaxResponseBytes = 10 << 20
)

// TokenProvider supplies bearer tokens. *credential.Provider implements it.
type TokenProvider interface {
	Token(ctx context.Context) (credential.Token, error)
}

// Client is safe for concurrent use; calls are independent of each other.
type Client struct {
	baseURL          string
	tokens           TokenProvider
	httpClient       *http.Client
	userAgent        string
	logger           *slog.Logger
	metrics          *metricsx.Collector
	maxResponseBytes int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its transport is where rate limiting
// and request logging are layered.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metricsx.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		tokens:           tokens,
		httpClient:       &http.Client{},
		userAgent:        DefaultUserAgent,
		logger:           slogx.Discard(),
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// url builds the full request URL.
func (c *Client) url(r Request) string {
	path := r.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := c.baseURL + path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}
