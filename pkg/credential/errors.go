package credential

import (
	"errors"
	"fmt"
)

// Reason classifies an AuthError.
type Reason string

const (
	// ReasonKeyInvalid means the private key could not be parsed or used to
	// sign. Fix the key; retrying will not help.
	ReasonKeyInvalid Reason = "key_invalid"

	// ReasonExchangeRejected means the token endpoint refused the assertion
	// (bad grant, missing delegation, unknown user) or answered with a token
	// too short-lived to be useful. It poisons the Provider.
	ReasonExchangeRejected Reason = "exchange_rejected"

	// ReasonNetworkFailure covers transport errors, 5xx/429 answers and
	// malformed success bodies. The caller may retry.
	ReasonNetworkFailure Reason = "network_failure"
)

var (
	ErrKeyInvalid       = errors.New("credential: key invalid")
	ErrExchangeRejected = errors.New("credential: exchange rejected")
	ErrNetworkFailure   = errors.New("credential: network failure")

	ErrNoAccount = errors.New("credential: service account id is required")
	ErrNoScopes  = errors.New("credential: at least one scope is required")
)

// AuthError is returned by Provider.Token and NewProvider. errors.Is matches
// it against the sentinel of its Reason as well as anything in Err.
type AuthError struct {
	Reason      Reason
	Description string
	// Status is the token endpoint's HTTP status, 0 when none was received.
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	msg := "credential: " + string(e.Reason)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrKeyInvalid:
		return e.Reason == ReasonKeyInvalid
	case ErrExchangeRejected:
		return e.Reason == ReasonExchangeRejected
	case ErrNetworkFailure:
		return e.Reason == ReasonNetworkFailure
	}
	return false
}

// Retryable reports whether a later attempt may succeed.
func (e *AuthError) Retryable() bool {
	return e.Reason == ReasonNetworkFailure
}

func keyInvalid(desc string, err error) *AuthError {
	return &AuthError{Reason: ReasonKeyInvalid, Description: desc, Err: err}
}

func rejected(desc string, status int, err error) *AuthError {
	return &AuthError{Reason: ReasonExchangeRejected, Description: desc, Status: status, Err: err}
}

func networkFailure(desc string, status int, err error) *AuthError {
	return &AuthError{Reason: ReasonNetworkFailure, Description: desc, Status: status, Err: err}
}
