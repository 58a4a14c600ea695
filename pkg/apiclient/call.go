package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/idx"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
)

// Request describes one API call.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is appended to the client's base URL.
	Path  string
	Query url.Values

	// Body is encoded as JSON when non-nil.
	Body any
}

// Call performs r and decodes a 2xx body into out. out may be nil, and a
// 204 or empty body leaves it untouched.
func (c *Client) Call(ctx context.Context, r Request, out any) error {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.url(r)

	reqID := idx.New().String()
	log := c.logger.With("req_id", reqID, "method", method, "path", r.Path)

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		log.Warn("api call aborted, no token", "err", err)
		return err
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(slogx.WithContext(ctx, log), method, target, body)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Authorization", tok.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(slogx.RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	done := c.metrics.StartRequest(method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		done(0)
		terr := newTransportError(method, target, err)
		log.Warn("api call failed", "kind", terr.Kind, "err", err)
		return terr
	}
	defer resp.Body.Close()
	done(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return newTransportError(method, target, err)
	}
	if int64(len(raw)) > c.maxResponseBytes {
		return &DecodeError{
			Status:  resp.StatusCode,
			RawBody: raw[:c.maxResponseBytes],
			Err:     fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.maxResponseBytes),
		}
	}

	log.Debug("api call completed",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || isEmptyBody(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Status: resp.StatusCode, RawBody: raw, Err: err}
	}
	return nil
}

// isEmptyBody treats a blank body and a literal JSON null alike.
func isEmptyBody(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Do is Call with the result type as a type parameter.
func Do[T any](ctx context.Context, c *Client, r Request) (*T, error) {
	var out T
	if err := c.Call(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
