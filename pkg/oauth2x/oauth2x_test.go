package oauth2x_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorRoundTrip(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	oauth2x.ErrUnauthorizedClient.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	got := oauth2x.ParseError(rec.Code, rec.Body.Bytes())
	require.Equal(t, oauth2x.ErrorCodeUnauthorizedClient, got.Code)
	require.Equal(t, oauth2x.ErrUnauthorizedClient.Description, got.Description)
	require.Equal(t, http.StatusUnauthorized, got.StatusCode)
}

func TestParseErrorFallback(t *testing.T) {
	t.Parallel()

	got := oauth2x.ParseError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	require.Equal(t, oauth2x.ErrorCodeServerError, got.Code)
	require.Contains(t, got.Description, "502")
	require.Contains(t, got.Error(), "HTTP 502")
}

func TestJWTBearerForm(t *testing.T) {
	t.Parallel()

	form := oauth2x.JWTBearerForm("a.b.c")
	require.Equal(t, oauth2x.GrantTypeJWTBearer, form.Get("grant_type"))
	require.Equal(t, "a.b.c", form.Get("assertion"))
	require.Equal(t,
		"assertion=a.b.c&grant_type=urn%3Aietf%3Aparams%3Aoauth%3Agrant-type%3Ajwt-bearer",
		form.Encode(),
	)
}

func TestTokenResponseLifetime(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Hour, oauth2x.TokenResponse{ExpiresIn: 3600}.Lifetime())
}
