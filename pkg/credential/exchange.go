package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/delegate/pkg/jwtx"
	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
)

// maxTokenResponseBytes caps how much of a token endpoint reply is read.
const maxTokenResponseBytes = 1 << 20

// exchange signs a fresh assertion and trades it for an access token.
func (p *Provider) exchange(ctx context.Context) (Token, error) {
	now := p.now()
	claims := jwtx.NewAssertionClaims(
		p.identity.AccountID,
		p.identity.Subject,
		p.tokenURL,
		p.identity.Scopes,
		p.lifetime,
		now,
	)

	assertion, err := p.signer.Sign(claims)
	if err != nil {
		return Token{}, keyInvalid("sign assertion", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.tokenURL,
		strings.NewReader(oauth2x.JWTBearerForm(assertion).Encode()),
	)
	if err != nil {
		return Token{}, networkFailure("build token request", 0, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Token{}, networkFailure("token endpoint unreachable", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return Token{}, networkFailure("read token response", resp.StatusCode, err)
	}

	switch status := resp.StatusCode; {
	case status >= 500, status == http.StatusTooManyRequests:
		oerr := oauth2x.ParseError(status, body)
		return Token{}, networkFailure(oerr.Code, status, oerr)
	case status < 200 || status > 299:
		oerr := oauth2x.ParseError(status, body)
		desc := oerr.Code
		if oerr.Description != "" {
			desc += ": " + oerr.Description
		}
		return Token{}, rejected(desc, status, oerr)
	}

	var tr oauth2x.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, networkFailure("malformed token response", resp.StatusCode, err)
	}
	if tr.AccessToken == "" {
		return Token{}, networkFailure("token response without access_token", resp.StatusCode, nil)
	}

	tok := Token{
		Value:     tr.AccessToken,
		Type:      tr.TokenType,
		ExpiresAt: now.Add(tr.Lifetime()),
	}
	if tok.Type == "" || strings.EqualFold(tok.Type, "bearer") {
		tok.Type = "Bearer"
	}

	if left := tok.remaining(p.now()); left <= p.margin {
		return Token{}, rejected(
			fmt.Sprintf("token lifetime %s does not exceed refresh margin %s", left, p.margin),
			resp.StatusCode,
			nil,
		)
	}

	return tok, nil
}
