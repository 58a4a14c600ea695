package slogx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/delegate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{
		Service: "domainpost",
		Version: "test",
		Env:     "prod",
		Level:   "info",
		Format:  "json",
		Output:  &buf,
	})

	logger.Debug("hidden")
	logger.Info("visible", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "visible", entry["msg"])
	require.Equal(t, "domainpost", entry["service"])
	require.Equal(t, "v", entry["k"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("whatever"))
}

func TestHTTPMiddlewareAttachesLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set(slogx.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	require.Contains(t, out, `"msg":"inside"`)
	require.Contains(t, out, `"req_id":"req-123"`)
	require.Contains(t, out, `"status":418`)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransportLogsWithoutHeaders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tr := slogx.NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusCreated, Body: http.NoBody, Request: r}, nil
	}), logger)

	req := httptest.NewRequest(http.MethodPost, "https://api.example.com/people/me/activities", nil)
	req.Header.Set("Authorization", "Bearer super-secret")
	req.Header.Set(slogx.RequestIDHeader, "abc")

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := buf.String()
	require.Contains(t, out, `"path":"/people/me/activities"`)
	require.Contains(t, out, `"req_id":"abc"`)
	require.Contains(t, out, `"status":201`)
	require.NotContains(t, out, "super-secret")
}

func TestTransportLogsFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	boom := errors.New("connection reset")

	tr := slogx.NewTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), logger)

	_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/x", nil))
	require.ErrorIs(t, err, boom)
	require.Contains(t, buf.String(), "http_client_request_failed")
}
