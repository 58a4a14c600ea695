package credential

import (
	"slices"
	"strings"
)

// ServiceIdentity is everything needed to mint assertions for one service
// account acting as one user.
type ServiceIdentity struct {
	// AccountID is the service account email, used as the assertion issuer.
	AccountID string

	// PrivateKey is PEM (PKCS#1 or PKCS#8) or a PKCS#12 archive.
	PrivateKey []byte

	// KeyPassword unlocks PKCS#12 input. Empty means "notasecret".
	KeyPassword string

	// KeyID goes into the assertion's kid header when set.
	KeyID string

	Scopes []string

	// Subject is the impersonated domain user. Empty means the service
	// account acts as itself.
	Subject string
}

func (id ServiceIdentity) validate() error {
	if strings.TrimSpace(id.AccountID) == "" {
		return ErrNoAccount
	}
	if len(normalizeScopes(id.Scopes)) == 0 {
		return ErrNoScopes
	}
	return nil
}

// clone deep-copies id so later mutation of the caller's slices cannot reach
// the provider.
func (id ServiceIdentity) clone() ServiceIdentity {
	out := id
	out.AccountID = strings.TrimSpace(id.AccountID)
	out.Subject = strings.TrimSpace(id.Subject)
	out.PrivateKey = slices.Clone(id.PrivateKey)
	out.Scopes = normalizeScopes(id.Scopes)
	return out
}

// normalizeScopes trims, drops blanks and removes duplicates, keeping the
// first occurrence order.
func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
