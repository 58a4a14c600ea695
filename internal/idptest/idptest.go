// Package idptest runs an in-process OAuth2 token endpoint that speaks the
// JWT-bearer grant the way Google's does: it verifies the signed assertion,
// checks delegation grants and hands out opaque bearer tokens. Tests script
// it to reject, fail, stall or issue short-lived tokens.
package idptest

import (
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/cryptox"
	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/aussiebroadwan/delegate/pkg/jwtx"
	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// TokenPath is where the token endpoint is mounted.
const TokenPath = "/token"

// DefaultLifetime is the expires_in handed out unless SetLifetime says
// otherwise.
const DefaultLifetime = time.Hour

// Server is a scriptable token endpoint. All methods are safe for concurrent
// use.
type Server struct {
	srv      *httptest.Server
	keys     *jwtx.KeySet
	verifier *jwtx.RS256Verifier
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	accounts  map[string]*account
	issued    map[string]Grant
	exchanges int
	last      *jwtx.AssertionClaims

	lifetime time.Duration
	delay    time.Duration
	reject   *oauth2x.OAuth2Error
	failure  *rawResponse
	gate     chan struct{}
}

// Grant describes one issued access token.
type Grant struct {
	Account   string
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

type account struct {
	// nil means every scope may be delegated.
	scopes map[string]bool
}

type rawResponse struct {
	status int
	body   string
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the time source for assertion checks and token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger routes the server's request logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New starts a Server and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		keys:     jwtx.NewKeySet(),
		now:      time.Now,
		accounts: make(map[string]*account),
		issued:   make(map[string]Grant),
		lifetime: DefaultLifetime,
		logger:   slogx.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.Handle(TokenPath, http.HandlerFunc(s.serveToken))

	s.srv = httptest.NewServer(slogx.HTTPMiddleware(s.logger)(mux))
	t.Cleanup(s.srv.Close)

	s.verifier = jwtx.NewVerifierRS256(s.keys, s.TokenURL()).WithClock(s.now)
	return s
}

// TokenURL is the full URL of the token endpoint; assertions must carry it
// as their audience.
func (s *Server) TokenURL() string {
	return s.srv.URL + TokenPath
}

// Client returns an HTTP client that talks to the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Account is a service account known to the server.
type Account struct {
	Email  string
	KeyID  string
	KeyPEM []byte
	Key    *rsa.PrivateKey
}

// NewAccount generates a key pair for email, trusts its public half under
// keyID and allows it to delegate any scope. keyID may be empty for
// assertions signed without a kid header.
func (s *Server) NewAccount(t testing.TB, email, keyID string) Account {
	t.Helper()

	keyPEM, err := cryptox.GenerateRSAKeyPKCS8(2048)
	require.NoError(t, err)

	key, err := cryptox.ParseRSAPrivateKeyPEM(keyPEM)
	require.NoError(t, err)

	s.Trust(email, keyID, &key.PublicKey)

	return Account{Email: email, KeyID: keyID, KeyPEM: keyPEM, Key: key}
}

// Trust registers pub for email under keyID.
func (s *Server) Trust(email, keyID string, pub *rsa.PublicKey) {
	s.keys.Add(keyID, pub)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; !ok {
		s.accounts[email] = &account{}
	}
}

// RestrictScopes limits what email may be delegated. Assertions asking for
// anything else are answered with unauthorized_client, as Google does for a
// scope missing from the domain-wide delegation grant.
func (s *Server) RestrictScopes(email string, scopes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := make(map[string]bool, len(scopes))
	for _, sc := range scopes {
		allowed[sc] = true
	}
	s.accounts[email] = &account{scopes: allowed}
}

// SetLifetime changes expires_in for subsequently issued tokens.
func (s *Server) SetLifetime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = d
}

// SetDelay stalls every exchange by d before answering.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Reject answers every exchange with e until Reset.
func (s *Server) Reject(e *oauth2x.OAuth2Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = e
}

// Fail answers every exchange with the given status and raw body until Reset.
func (s *Server) Fail(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = &rawResponse{status: status, body: body}
}

// Hold parks exchanges until the returned release func is called.
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})

	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Reset clears Reject, Fail and SetDelay.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = nil
	s.failure = nil
	s.delay = 0
}

// Exchanges reports how many token requests reached the endpoint.
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// LastAssertion returns the claims of the most recent verified assertion.
func (s *Server) LastAssertion() (jwtx.AssertionClaims, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return jwtx.AssertionClaims{}, false
	}
	return *s.last, true
}

// Lookup reports the grant behind an access token if it was issued here and
// has not expired. API fakes use it to authorize bearer tokens.
func (s *Server) Lookup(accessToken string) (Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.issued[accessToken]
	if !ok || !s.now().Before(g.ExpiresAt) {
		return Grant{}, false
	}
	return g, true
}

// Authorize extracts the bearer token from r and looks it up.
func (s *Server) Authorize(r *http.Request) (Grant, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return Grant{}, false
	}
	return s.Lookup(token)
}

func (s *Server) serveToken(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	s.mu.Lock()
	s.exchanges++
	delay, gate := s.delay, s.gate
	reject, failure := s.reject, s.failure
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if r.Method != http.MethodPost {
		oauth2x.ErrMethodNotAllowed.WriteError(w)
		return
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauth2x.ErrInvalidContentType.WriteError(w)
		return
	}

	switch {
	case failure != nil:
		w.WriteHeader(failure.status)
		_, _ = w.Write([]byte(failure.body))
		return
	case reject != nil:
		reject.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauth2x.ErrInvalidRequest.WriteError(w)
		return
	}
	if r.PostForm.Get("grant_type") != oauth2x.GrantTypeJWTBearer {
		oauth2x.ErrUnsupportedGrantType.WriteError(w)
		return
	}

	claims, err := s.verifier.Verify(r.PostForm.Get("assertion"), "")
	if err != nil {
		log.Warn("assertion rejected", "err", err)
		oauth2x.ErrInvalidGrant.WriteError(w)
		return
	}

	resp, oerr := s.issue(claims)
	if oerr != nil {
		log.Warn("delegation refused", "iss", claims.Issuer, "sub", claims.Subject, "err", oerr)
		oerr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) issue(claims *jwtx.AssertionClaims) (oauth2x.TokenResponse, *oauth2x.OAuth2Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = claims

	acct, ok := s.accounts[claims.Issuer]
	if !ok {
		return oauth2x.TokenResponse{}, oauth2x.ErrInvalidGrant
	}

	scopes := claims.Scopes()
	if len(scopes) == 0 {
		return oauth2x.TokenResponse{}, oauth2x.ErrInvalidScope
	}
	if acct.scopes != nil {
		for _, sc := range scopes {
			if !acct.scopes[sc] {
				return oauth2x.TokenResponse{}, oauth2x.ErrUnauthorizedClient
			}
		}
	}

	token := cryptox.MustGenerateToken(cryptox.AccessTokenSize)
	s.issued[token] = Grant{
		Account:   claims.Issuer,
		Subject:   claims.Subject,
		Scopes:    scopes,
		ExpiresAt: s.now().Add(s.lifetime),
	}

	return oauth2x.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.lifetime / time.Second),
	}, nil
}

// ServiceAccountJSON renders a in the Google JSON key file layout.
func (a Account) ServiceAccountJSON(t testing.TB, tokenURL string) []byte {
	t.Helper()

	b, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "delegate-test",
		"private_key_id": a.KeyID,
		"private_key":    string(a.KeyPEM),
		"client_email":   a.Email,
		"client_id":      "100000000000000000000",
		"token_uri":      tokenURL,
	})
	require.NoError(t, err)
	return b
}
