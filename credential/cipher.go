package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Supported algorithm identifiers.
const (
	// AlgorithmA256GCM is AES-256 in Galois/Counter Mode.
	AlgorithmA256GCM = "A256GCM"
	// AlgorithmXC20P is XChaCha20-Poly1305.
	AlgorithmXC20P = "XC20P"
)

// IsSupportedAlgorithm reports whether id names a known AEAD.
func IsSupportedAlgorithm(id string) bool {
	switch id {
	case AlgorithmA256GCM, AlgorithmXC20P:
		return true
	}
	return false
}

// newAEAD builds the authenticated cipher for the given algorithm.
// The returned AEAD holds no per-message state and is safe for concurrent use.
func newAEAD(algorithm string, key DerivedKey) (cipher.AEAD, error) {
	switch algorithm {
	case AlgorithmA256GCM:
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, fmt.Errorf("create aes cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case AlgorithmXC20P:
		return chacha20poly1305.NewX(key[:])
	default:
		return nil, fmt.Errorf("unsupported credential algorithm: %q", algorithm)
	}
}
