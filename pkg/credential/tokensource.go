package credential

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts p for golang.org/x/oauth2 consumers such as
// oauth2.NewClient. ctx bounds every Token call made through it.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, p: p}
}

type tokenSource struct {
	ctx context.Context
	p   *Provider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.p.Token(s.ctx)
	if err != nil {
		return nil, err
	}

	// Report the refresh point as expiry so oauth2's own reuse logic never
	// outlives our margin.
	return &oauth2.Token{
		AccessToken: tok.Value,
		TokenType:   tok.Type,
		Expiry:      tok.ExpiresAt.Add(-s.p.margin),
	}, nil
}
