package httpx_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func okTransport(calls *atomic.Int32) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
}

func TestRateLimitConfigLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, rate.Limit(5), httpx.RateLimitConfig{RequestsPerWindow: 300, Window: time.Minute}.Limit())
	require.Equal(t, rate.Inf, httpx.RateLimitConfig{}.Limit())
}

func TestRateLimitTransport(t *testing.T) {
	t.Parallel()

	t.Run("allows the burst straight through", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		tr := httpx.NewRateLimitTransport(okTransport(&calls), httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             3,
		}, nil)

		for range 3 {
			_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil))
			require.NoError(t, err)
		}
		require.EqualValues(t, 3, calls.Load())
	})

	t.Run("gives up with a deadline error once exhausted", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		tr := httpx.NewRateLimitTransport(okTransport(&calls), httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		}, nil)

		_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		body := &trackingBody{Reader: strings.NewReader("{}")}
		req := httptest.NewRequest(http.MethodPost, "https://api.example.com/", body).WithContext(ctx)
		_, err = tr.RoundTrip(req)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.True(t, body.closed)
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("buckets are per host", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		tr := httpx.NewRateLimitTransport(okTransport(&calls), httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		}, nil)

		_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://oauth2.example.com/token", nil))
		require.NoError(t, err)
		_, err = tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil))
		require.NoError(t, err)
		require.EqualValues(t, 2, calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		tr := httpx.NewRateLimitTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("should not be called")
		}), httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil).WithContext(ctx))
		require.ErrorIs(t, err, context.Canceled)
	})
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestResponseHelpers(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"id": "a1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"id":"a1"}`, rec.Body.String())

	require.True(t, httpx.IsJSONContentType("application/json; charset=UTF-8"))
	require.True(t, httpx.IsJSONContentType("application/problem+json"))
	require.False(t, httpx.IsJSONContentType("text/html"))
}
