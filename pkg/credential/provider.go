// Package credential turns a service account key into short-lived bearer
// tokens using the RFC 7523 JWT-bearer grant with domain-wide delegation.
//
// A Provider is safe for concurrent use. It caches the current token, hands
// it out until it is within the refresh margin of expiry, and collapses
// concurrent refreshes into a single exchange. A rejected exchange poisons
// the Provider: every later call fails with the same *AuthError without
// touching the network.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/cryptox"
	"github.com/aussiebroadwan/delegate/pkg/jwtx"
	"github.com/aussiebroadwan/delegate/pkg/metricsx"
	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

const flightKey = "token"

// Provider issues tokens for one ServiceIdentity.
type Provider struct {
	identity ServiceIdentity
	signer   jwtx.Signer

	tokenURL        string
	httpClient      *http.Client
	margin          time.Duration
	lifetime        time.Duration
	exchangeTimeout time.Duration
	now             func() time.Time
	logger          *slog.Logger
	metrics         *metricsx.Collector

	flight   singleflight.Group
	fetching atomic.Int32

	mu     sync.RWMutex
	token  *Token
	poison *AuthError
}

// NewProvider validates identity, parses its key and returns a Provider with
// an empty cache. No network I/O happens until the first Token call.
func NewProvider(identity ServiceIdentity, opts ...Option) (*Provider, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}
	identity = identity.clone()

	key, err := cryptox.LoadRSAPrivateKey(identity.PrivateKey, identity.KeyPassword)
	if err != nil {
		return nil, keyInvalid("parse private key", err)
	}
	signer, err := jwtx.NewSignerRS256FromKey(identity.KeyID, key)
	if err != nil {
		return nil, keyInvalid("build signer", err)
	}

	p := &Provider{
		identity:        identity,
		signer:          signer,
		tokenURL:        oauth2x.GoogleTokenURL,
		httpClient:      &http.Client{},
		margin:          DefaultRefreshMargin,
		lifetime:        jwtx.DefaultAssertionTTL,
		exchangeTimeout: DefaultExchangeTimeout,
		now:             time.Now,
		logger:          slogx.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}

	u, err := url.Parse(p.tokenURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("credential: invalid token URL %q", p.tokenURL)
	}
	if p.margin < 0 {
		return nil, fmt.Errorf("credential: negative refresh margin %s", p.margin)
	}
	if p.exchangeTimeout <= 0 {
		p.exchangeTimeout = DefaultExchangeTimeout
	}

	p.logger = p.logger.With(
		"account", identity.AccountID,
		"subject", identity.Subject,
	)

	return p, nil
}

// Token returns a cached token with at least the refresh margin left, or
// exchanges a fresh assertion for one. Concurrent callers share a single
// exchange. Cancelling ctx abandons the wait but not the exchange itself,
// so other waiters still get its result.
func (p *Provider) Token(ctx context.Context) (Token, error) {
	if tok, ok, err := p.cached(); ok {
		if err != nil {
			p.metrics.RecordExchange(metricsx.ResultPoisoned, 0)
		}
		return tok, err
	}

	if err := ctx.Err(); err != nil {
		return Token{}, networkFailure("waiting for token", 0, err)
	}

	ch := p.flight.DoChan(flightKey, func() (any, error) {
		return p.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, networkFailure("waiting for token", 0, ctx.Err())
	}
}

// State reports the provider's position in its refresh cycle.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.poison != nil:
		return StatePoisoned
	case p.fetching.Load() > 0:
		return StateFetching
	case p.token != nil && p.token.remaining(p.now()) >= p.margin:
		return StateValid
	default:
		return StateNoToken
	}
}

// cached reports the token or poison error to return without an exchange.
func (p *Provider) cached() (Token, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.poison != nil {
		return Token{}, true, p.poison
	}
	if p.token != nil && p.token.remaining(p.now()) >= p.margin {
		return *p.token, true, nil
	}
	return Token{}, false, nil
}

// refresh runs inside the single flight.
func (p *Provider) refresh(ctx context.Context) (Token, error) {
	p.fetching.Add(1)
	defer p.fetching.Add(-1)

	// A flight that finished between our cache miss and DoChan has already
	// stored a token.
	if tok, ok, err := p.cached(); ok {
		return tok, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.exchangeTimeout)
	defer cancel()

	start := time.Now()
	tok, err := p.exchange(ctx)
	elapsed := time.Since(start)

	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) && authErr.Reason == ReasonExchangeRejected {
			p.mu.Lock()
			p.poison = authErr
			p.token = nil
			p.mu.Unlock()

			p.metrics.RecordExchange(metricsx.ResultRejected, elapsed)
			p.logger.Error("token exchange rejected, provider poisoned", "err", err)
			return Token{}, authErr
		}

		p.metrics.RecordExchange(metricsx.ResultNetwork, elapsed)
		p.logger.Warn("token exchange failed", "err", err)
		return Token{}, err
	}

	p.mu.Lock()
	p.token = &tok
	p.mu.Unlock()

	p.metrics.RecordExchange(metricsx.ResultSuccess, elapsed)
	p.metrics.RecordTokenExpiry(tok.ExpiresAt)
	p.logger.Info("token refreshed", "token", tok, "duration_ms", elapsed.Milliseconds())

	return tok, nil
}
