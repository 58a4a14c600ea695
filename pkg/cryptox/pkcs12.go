package cryptox

import (
	"bytes"
	"crypto/rsa"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// DefaultPKCS12Password is the fixed password Google puts on downloaded
// .p12 service account keys.
const DefaultPKCS12Password = "notasecret"

var pemPrefix = []byte("-----BEGIN")

// ParsePKCS12 extracts the RSA private key from a PKCS#12 archive.
func ParsePKCS12(data []byte, password string) (*rsa.PrivateKey, error) {
	priv, _, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode PKCS12: %w", err)
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSA
	}
	return key, nil
}

// LoadRSAPrivateKey accepts either PEM (PKCS1/PKCS8) or a PKCS#12 archive and
// returns the RSA key inside. An empty password falls back to
// DefaultPKCS12Password; it is ignored for PEM input.
func LoadRSAPrivateKey(data []byte, password string) (*rsa.PrivateKey, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}

	if bytes.HasPrefix(trimmed, pemPrefix) {
		return ParseRSAPrivateKeyPEM(trimmed)
	}

	if password == "" {
		password = DefaultPKCS12Password
	}
	return ParsePKCS12(data, password)
}
