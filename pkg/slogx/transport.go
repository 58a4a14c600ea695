package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outgoing request once it
// completes. Headers are never logged since they carry bearer tokens.
type Transport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Logger is used when the request context carries no logger.
	Logger *slog.Logger
}

// NewTransport wraps base with request logging.
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	logger := t.Logger
	if l, ok := req.Context().Value(ctxKey{}).(*slog.Logger); ok {
		logger = l
	}
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)

	attrs := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if id := req.Header.Get(RequestIDHeader); id != "" {
		attrs = append(attrs, "req_id", id)
	}

	if err != nil {
		logger.Warn("http_client_request_failed", append(attrs, "error", err)...)
		return nil, err
	}

	logger.Debug("http_client_request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
