package definition

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Signer backed by an HMAC over the payload bytes. Enough for
// deployments where replicas share a secret, hosts with a PKI
// plug their own implementation.
type DefaultSigner struct {
	key []byte
}

func NewDefaultSigner(key []byte) *DefaultSigner {
	return &DefaultSigner{key: key}
}

func (s *DefaultSigner) Sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
