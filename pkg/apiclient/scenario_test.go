package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/internal/idptest"
	"github.com/aussiebroadwan/delegate/pkg/apiclient"
	"github.com/aussiebroadwan/delegate/pkg/credential"
	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type whoami struct {
	Account string   `json:"account"`
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes"`
}

// newProtectedAPI serves GET /whoami to holders of tokens issued by idp.
func newProtectedAPI(t *testing.T, idp *idptest.Server, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		grant, ok := idp.Authorize(r)
		if !ok {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": 401, "message": "Invalid Credentials", "status": "UNAUTHENTICATED"},
			})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, whoami{
			Account: grant.Account,
			Subject: grant.Subject,
			Scopes:  grant.Scopes,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDelegatedCallScenario(t *testing.T) {
	t.Parallel()

	clock := idptest.NewClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	idp := idptest.New(t, idptest.WithClock(clock.Now))
	acct := idp.NewAccount(t, "svc@x.iam", "")

	provider, err := credential.NewProvider(credential.ServiceIdentity{
		AccountID:  acct.Email,
		PrivateKey: acct.KeyPEM,
		Scopes:     []string{"read"},
		Subject:    "alice@domain.com",
	},
		credential.WithTokenURL(idp.TokenURL()),
		credential.WithHTTPClient(idp.Client()),
		credential.WithClock(clock.Now),
	)
	require.NoError(t, err)

	var apiHits atomic.Int32
	api := newProtectedAPI(t, idp, &apiHits)
	client := apiclient.New(api.URL, provider)
	ctx := context.Background()

	call := func() *whoami {
		t.Helper()
		got, err := apiclient.Do[whoami](ctx, client, apiclient.Request{Path: "/whoami"})
		require.NoError(t, err)
		return got
	}

	// First call: one exchange, one API request.
	got := call()
	require.Equal(t, whoami{Account: "svc@x.iam", Subject: "alice@domain.com", Scopes: []string{"read"}}, *got)
	require.Equal(t, 1, idp.Exchanges())
	require.Equal(t, int32(1), apiHits.Load())

	// One second later the cached token is reused.
	clock.Advance(time.Second)
	call()
	require.Equal(t, 1, idp.Exchanges())
	require.Equal(t, int32(2), apiHits.Load())

	// Past the margin window a single new exchange happens.
	clock.Advance(idptest.DefaultLifetime - credential.DefaultRefreshMargin)
	call()
	require.Equal(t, 2, idp.Exchanges())
	require.Equal(t, int32(3), apiHits.Load())
	require.Equal(t, credential.StateValid, provider.State())
}

func TestDelegatedCallRejectedExchange(t *testing.T) {
	t.Parallel()

	idp := idptest.New(t)
	acct := idp.NewAccount(t, "svc@x.iam", "k1")
	idp.RestrictScopes(acct.Email, "something-else")

	provider, err := credential.NewProvider(credential.ServiceIdentity{
		AccountID:  acct.Email,
		PrivateKey: acct.KeyPEM,
		KeyID:      acct.KeyID,
		Scopes:     []string{"read"},
		Subject:    "alice@domain.com",
	},
		credential.WithTokenURL(idp.TokenURL()),
		credential.WithHTTPClient(idp.Client()),
	)
	require.NoError(t, err)

	var apiHits atomic.Int32
	client := apiclient.New(newProtectedAPI(t, idp, &apiHits).URL, provider)

	for range 2 {
		err := client.Call(context.Background(), apiclient.Request{Path: "/whoami"}, nil)

		var authErr *credential.AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, credential.ReasonExchangeRejected, authErr.Reason)
	}
	require.Equal(t, 1, idp.Exchanges())
	require.Zero(t, apiHits.Load())
}
