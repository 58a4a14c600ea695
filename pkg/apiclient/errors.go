package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aussiebroadwan/delegate/pkg/httpx"
)

// ErrResponseTooLarge is wrapped by a DecodeError when a body exceeds the
// client's response limit.
var ErrResponseTooLarge = errors.New("apiclient: response body too large")

// TransportKind classifies a TransportError.
type TransportKind string

const (
	TransportTimeout          TransportKind = "timeout"
	TransportConnectionFailed TransportKind = "connection_failed"
	TransportCanceled         TransportKind = "canceled"
)

// TransportError means no usable HTTP response arrived.
type TransportError struct {
	Kind   TransportKind
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool { return e.Kind == TransportTimeout }

func newTransportError(method, url string, err error) *TransportError {
	kind := TransportConnectionFailed

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = TransportTimeout
	case errors.Is(err, context.Canceled):
		kind = TransportCanceled
	}

	return &TransportError{Kind: kind, Method: method, URL: url, Err: err}
}

// ErrorDetail is one entry of the errors array in a Google API error.
type ErrorDetail struct {
	Domain       string `json:"domain"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
	Location     string `json:"location,omitempty"`
	LocationType string `json:"locationType,omitempty"`
}

// ProtocolError is a non-2xx response. When the body carried an error
// envelope its fields are filled in; otherwise only Status, Message and
// RawBody are set.
type ProtocolError struct {
	Status int

	// Code is the symbolic error: the envelope's status ("PERMISSION_DENIED")
	// or the OAuth2 error code ("invalid_token").
	Code    string
	Message string

	// Reason and Domain come from the first entry of Details.
	Reason  string
	Domain  string
	Details []ErrorDetail

	RawBody []byte
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("apiclient: HTTP %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Reason != "" {
		msg += " (reason " + e.Reason + ")"
	}
	return msg
}

// DecodeError means a body claimed to be JSON but did not decode.
type DecodeError struct {
	Status  int
	RawBody []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("apiclient: decode HTTP %d body: %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// googleError is the {"error": {...}} envelope of Google JSON APIs.
type googleError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
	Errors  []ErrorDetail `json:"errors"`
}

// parseErrorResponse builds the error for a non-2xx answer.
func parseErrorResponse(status int, contentType string, raw []byte) error {
	body := bytes.TrimSpace(raw)
	generic := &ProtocolError{
		Status:  status,
		Message: http.StatusText(status),
		RawBody: raw,
	}

	if len(body) == 0 || !looksLikeJSON(contentType, body) {
		return generic
	}

	var env struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return &DecodeError{Status: status, RawBody: raw, Err: err}
	}

	inner := bytes.TrimSpace(env.Error)
	switch {
	case len(inner) > 0 && inner[0] == '{':
		var g googleError
		if err := json.Unmarshal(inner, &g); err != nil {
			return &DecodeError{Status: status, RawBody: raw, Err: err}
		}
		pe := &ProtocolError{
			Status:  status,
			Code:    g.Status,
			Message: g.Message,
			Details: g.Errors,
			RawBody: raw,
		}
		if len(g.Errors) > 0 {
			pe.Reason = g.Errors[0].Reason
			pe.Domain = g.Errors[0].Domain
		}
		return pe

	case len(inner) > 0 && inner[0] == '"':
		var code string
		if err := json.Unmarshal(inner, &code); err != nil {
			return &DecodeError{Status: status, RawBody: raw, Err: err}
		}
		return &ProtocolError{
			Status:  status,
			Code:    code,
			Message: env.ErrorDescription,
			RawBody: raw,
		}
	}

	return generic
}

// looksLikeJSON trusts the Content-Type when it names JSON and otherwise
// sniffs the first byte.
func looksLikeJSON(contentType string, body []byte) bool {
	if httpx.IsJSONContentType(contentType) {
		return true
	}
	return body[0] == '{' || body[0] == '['
}
