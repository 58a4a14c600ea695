package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIssuer   = errors.New("jwtx: issuer mismatch")
	ErrAudience = errors.New("jwtx: audience mismatch")
	ErrExpired  = errors.New("jwtx: token expired")
	ErrTTL      = errors.New("jwtx: assertion lifetime too long")
)

// RS256Verifier validates JWT-bearer assertions signed using RS256. This is
// the token endpoint's side of the exchange; clients never need it.
type RS256Verifier struct {
	keys     *KeySet
	audience string
	now      func() time.Time
}

// NewVerifierRS256 creates a verifier that requires aud == audience.
func NewVerifierRS256(keys *KeySet, audience string) *RS256Verifier {
	return &RS256Verifier{keys: keys, audience: audience, now: time.Now}
}

// WithClock swaps the time source used for exp checks.
func (v *RS256Verifier) WithClock(now func() time.Time) *RS256Verifier {
	v.now = now
	return v
}

// Verify checks signature, audience, expiry and lifetime and returns the
// parsed claims. issuer may be empty to accept any service account.
func (v *RS256Verifier) Verify(tokenStr, issuer string) (*AssertionClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)

	claims := &AssertionClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unknown kid %q: %w", kid, err)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if issuer != "" && claims.Issuer != issuer {
		return nil, ErrIssuer
	}
	if claims.Audience != v.audience {
		return nil, ErrAudience
	}
	if claims.IssuedAt != nil && claims.ExpiresAt.Sub(claims.IssuedAt.Time) > DefaultAssertionTTL {
		return nil, ErrTTL
	}

	return claims, nil
}
