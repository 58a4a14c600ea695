// Package oauth2x holds the wire shapes of an OAuth2 token endpoint speaking
// the RFC 7523 JWT-bearer grant.
package oauth2x

import (
	"net/url"
	"time"
)

// GrantTypeJWTBearer is the grant_type value for RFC 7523 assertions.
const GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// GoogleTokenURL is Google's OAuth2 token endpoint and the default audience
// of service account assertions.
const GoogleTokenURL = "https://oauth2.googleapis.com/token"

// ErrorResponse is the RFC 6749 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the successful token endpoint body. JWT-bearer grants
// never return a refresh token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Lifetime converts expires_in to a duration.
func (r TokenResponse) Lifetime() time.Duration {
	return time.Duration(r.ExpiresIn) * time.Second
}

// JWTBearerForm builds the form body posted to the token endpoint.
func JWTBearerForm(assertion string) url.Values {
	return url.Values{
		"grant_type": {GrantTypeJWTBearer},
		"assertion":  {assertion},
	}
}
