package jwtx

import "crypto/rsa"

// Signer is our interface for anything that can sign assertions.
type Signer interface {
	Alg() string
	KID() string
	Sign(AssertionClaims) (string, error)
	Public() any
	Validate() error
}

// NewSignerRS256 creates an RS256 signer from PEM bytes.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newRS256SignerFromPEM(kid, pemKey)
}

// NewSignerRS256FromKey creates an RS256 signer around an already parsed key,
// e.g. one pulled out of a PKCS#12 archive.
func NewSignerRS256FromKey(kid string, key *rsa.PrivateKey) (Signer, error) {
	return newRS256Signer(kid, key)
}
