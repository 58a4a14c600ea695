package jwtx

import (
	"crypto/rsa"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds RSA public keys by kid. Assertions signed without a kid are
// looked up under the empty string.
type KeySet struct {
	mu  sync.RWMutex
	pub map[string]*rsa.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]*rsa.PublicKey)}
}

// AddSigner registers the public half of an RS256 signer.
func (k *KeySet) AddSigner(s Signer) error {
	pub, ok := s.Public().(*rsa.PublicKey)
	if !ok {
		return errors.New("jwtx: signer does not expose an RSA public key")
	}
	k.Add(s.KID(), pub)
	return nil
}

// Add registers pub under kid, replacing any previous key.
func (k *KeySet) Add(kid string, pub *rsa.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[kid] = pub
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}
