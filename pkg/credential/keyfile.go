package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// KeyFile is the JSON key Google issues for a service account.
type KeyFile struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccountFile reads and parses a JSON key file.
func LoadServiceAccountFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credential: read key file: %w", err)
	}
	return ParseServiceAccountJSON(data)
}

// ParseServiceAccountJSON parses the contents of a JSON key file.
func ParseServiceAccountJSON(data []byte) (*KeyFile, error) {
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, keyInvalid("parse key file", err)
	}
	if kf.Type != "" && kf.Type != "service_account" {
		return nil, keyInvalid(fmt.Sprintf("key file type %q is not service_account", kf.Type), nil)
	}
	if strings.TrimSpace(kf.PrivateKey) == "" {
		return nil, keyInvalid("key file has no private_key", nil)
	}
	if strings.TrimSpace(kf.ClientEmail) == "" {
		return nil, ErrNoAccount
	}
	return &kf, nil
}

// Identity builds the ServiceIdentity for acting as subject with scopes.
func (kf *KeyFile) Identity(subject string, scopes []string) ServiceIdentity {
	return ServiceIdentity{
		AccountID:  kf.ClientEmail,
		PrivateKey: []byte(kf.PrivateKey),
		KeyID:      kf.PrivateKeyID,
		Scopes:     scopes,
		Subject:    subject,
	}
}
