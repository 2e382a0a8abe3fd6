package auth

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used to stretch the configured secret into the signing key.
const (
	Memory      = 64 * 1024 // 64 MB
	Iterations  = 1
	Parallelism = 2
	KeyLength   = 32
	// MinSecretLength rejects secrets too short to be meaningful.
	MinSecretLength = 16
)

// keySalt is fixed so every process sharing the secret derives the same key.
var keySalt = []byte("hidden-talk/credential/v1")

// DeriveSigningKey turns an operator provided secret into a fixed size HMAC key.
// It runs once at startup.
func DeriveSigningKey(secret string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("credential secret must be at least %d bytes", MinSecretLength)
	}
	return argon2.IDKey([]byte(secret), keySalt, Iterations, Memory, Parallelism, KeyLength), nil
}
