package credential

import (
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/cryptox"
)

// Token is a bearer token issued by the token endpoint. Providers replace
// tokens on refresh and never mutate one they have handed out.
type Token struct {
	Value     string
	Type      string
	ExpiresAt time.Time
}

// remaining is how long t stays usable at now.
func (t Token) remaining(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

// AuthorizationHeader is the value for the Authorization header.
func (t Token) AuthorizationHeader() string {
	typ := t.Type
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

// LogValue keeps the secret out of logs.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("fingerprint", cryptox.FingerprintToken(t.Value)),
		slog.Time("expires_at", t.ExpiresAt),
	)
}

// State is where a Provider sits in its refresh cycle.
type State int

const (
	StateNoToken State = iota
	StateFetching
	StateValid
	StatePoisoned
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateFetching:
		return "fetching"
	case StateValid:
		return "valid"
	case StatePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}
