package idptest_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/internal/idptest"
	"github.com/aussiebroadwan/delegate/pkg/jwtx"
	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
	"github.com/stretchr/testify/require"
)

const testEmail = "svc@project.iam.gserviceaccount.com"

func exchange(t *testing.T, srv *idptest.Server, acct idptest.Account, sub string, scopes ...string) *http.Response {
	t.Helper()

	signer, err := jwtx.NewSignerRS256FromKey(acct.KeyID, acct.Key)
	require.NoError(t, err)

	claims := jwtx.NewAssertionClaims(acct.Email, sub, srv.TokenURL(), scopes, time.Hour, time.Now())
	assertion, err := signer.Sign(claims)
	require.NoError(t, err)

	resp, err := srv.Client().Post(
		srv.TokenURL(),
		"application/x-www-form-urlencoded",
		strings.NewReader(oauth2x.JWTBearerForm(assertion).Encode()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestIssuesTokenForValidAssertion(t *testing.T) {
	t.Parallel()

	srv := idptest.New(t)
	acct := srv.NewAccount(t, testEmail, "kid-1")

	resp := exchange(t, srv, acct, "user@example.com", "scope.a", "scope.b")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var tok oauth2x.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, 3600, tok.ExpiresIn)

	grant, ok := srv.Lookup(tok.AccessToken)
	require.True(t, ok)
	require.Equal(t, testEmail, grant.Account)
	require.Equal(t, "user@example.com", grant.Subject)
	require.Equal(t, []string{"scope.a", "scope.b"}, grant.Scopes)

	claims, ok := srv.LastAssertion()
	require.True(t, ok)
	require.Equal(t, srv.TokenURL(), claims.Audience)
	require.Equal(t, 1, srv.Exchanges())
}

func TestRefusesUndelegatedScope(t *testing.T) {
	t.Parallel()

	srv := idptest.New(t)
	acct := srv.NewAccount(t, testEmail, "")
	srv.RestrictScopes(testEmail, "scope.a")

	resp := exchange(t, srv, acct, "user@example.com", "scope.a", "scope.b")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body oauth2x.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, oauth2x.ErrorCodeUnauthorizedClient, body.Error)
}

func TestRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	srv := idptest.New(t)
	other := idptest.New(t)
	acct := other.NewAccount(t, testEmail, "kid-1")

	resp := exchange(t, srv, acct, "", "scope.a")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScriptedFailures(t *testing.T) {
	t.Parallel()

	srv := idptest.New(t)
	acct := srv.NewAccount(t, testEmail, "kid-1")

	srv.Fail(http.StatusServiceUnavailable, "upstream down")
	resp := exchange(t, srv, acct, "", "scope.a")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv.Reset()
	srv.Reject(oauth2x.ErrInvalidGrant)
	resp = exchange(t, srv, acct, "", "scope.a")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	srv.Reset()
	resp = exchange(t, srv, acct, "", "scope.a")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, srv.Exchanges())
}

func TestLookupHonoursClock(t *testing.T) {
	t.Parallel()

	clock := idptest.NewClock(time.Now())
	srv := idptest.New(t, idptest.WithClock(clock.Now))
	acct := srv.NewAccount(t, testEmail, "kid-1")
	srv.SetLifetime(2 * time.Minute)

	resp := exchange(t, srv, acct, "", "scope.a")
	var tok oauth2x.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	require.Equal(t, 120, tok.ExpiresIn)

	req, err := http.NewRequest(http.MethodGet, "http://api.invalid", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	_, ok := srv.Authorize(req)
	require.True(t, ok)

	clock.Advance(3 * time.Minute)
	_, ok = srv.Lookup(tok.AccessToken)
	require.False(t, ok)
}
