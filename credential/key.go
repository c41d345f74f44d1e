package credential

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the length in bytes of a DerivedKey.
const KeySize = 32

// DefaultIterations is the default PBKDF2 iteration count.
const DefaultIterations = 100000

// DerivedKey is the symmetric key credentials are sealed with.
// It is a value type: copies cannot be used to mutate the original.
type DerivedKey [KeySize]byte

var (
	// ErrEmptySecret is returned when the master secret is empty
	ErrEmptySecret = errors.New("master secret must not be empty")

	// ErrInvalidIterations is returned for a non-positive iteration count
	ErrInvalidIterations = errors.New("kdf iterations must be positive")
)

// DeriveKey stretches the master secret into a DerivedKey with PBKDF2-HMAC-SHA256.
// It is deliberately slow; callers derive once at start-up and share the result.
func DeriveKey(secret, salt []byte, iterations int) (DerivedKey, error) {
	var key DerivedKey
	if len(secret) == 0 {
		return key, ErrEmptySecret
	}
	if iterations < 1 {
		return key, ErrInvalidIterations
	}
	copy(key[:], pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New))
	return key, nil
}
