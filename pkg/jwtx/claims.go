package jwtx

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAssertionTTL is the longest lifetime Google accepts for a
// JWT-bearer assertion.
const DefaultAssertionTTL = time.Hour

// AssertionClaims is the claim set of an RFC 7523 JWT-bearer assertion as
// service account token endpoints expect it. aud is a plain string here
// rather than jwt.ClaimStrings because some endpoints reject the array form.
type AssertionClaims struct {
	Issuer    string           `json:"iss"`
	Subject   string           `json:"sub,omitempty"`
	Audience  string           `json:"aud"`
	Scope     string           `json:"scope,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

var _ jwt.Claims = AssertionClaims{}

// NewAssertionClaims builds the claims for one exchange. subject is the
// impersonated user and may be empty.
func NewAssertionClaims(
	issuer, subject, audience string,
	scopes []string,
	ttl time.Duration,
	now time.Time,
) AssertionClaims {
	if ttl <= 0 || ttl > DefaultAssertionTTL {
		ttl = DefaultAssertionTTL
	}

	return AssertionClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  audience,
		Scope:     strings.Join(scopes, " "),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// Scopes splits the space-delimited scope claim.
func (c AssertionClaims) Scopes() []string {
	return strings.Fields(c.Scope)
}

func (c AssertionClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c AssertionClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c AssertionClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c AssertionClaims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c AssertionClaims) GetSubject() (string, error)                  { return c.Subject, nil }

func (c AssertionClaims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}
