package service

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Hasher is the credential verifier. The login orchestrator only ever sees
// this interface, so tests can assert Verify was (or was not) invoked.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, digest string) bool
}

// BcryptHasher hashes with a fixed work factor. bcrypt salts internally
// and CompareHashAndPassword is constant-time over the digest.
type BcryptHasher struct{}

func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{}
}

func (BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (BcryptHasher) Verify(secret string, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
