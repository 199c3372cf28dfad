package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrOperatorKeyMismatch signals a rejected operator key.
var ErrOperatorKeyMismatch = errors.New("auth: operator key mismatch")

// OperatorGuard checks the shared operator key used by the admin surface.
// The key is stored as a bcrypt hash so the plaintext never lives in config.
type OperatorGuard struct {
	keyHash []byte
}

func NewOperatorGuard(keyHash string) *OperatorGuard {
	return &OperatorGuard{keyHash: []byte(keyHash)}
}

// Verify compares a presented key against the configured hash.
func (g *OperatorGuard) Verify(key string) error {
	if len(g.keyHash) == 0 || key == "" {
		return ErrOperatorKeyMismatch
	}
	if err := bcrypt.CompareHashAndPassword(g.keyHash, []byte(key)); err != nil {
		return ErrOperatorKeyMismatch
	}
	return nil
}

// HashOperatorKey derives a bcrypt hash for a plaintext operator key.
// Used by deploy tooling and tests to produce config values.
func HashOperatorKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
