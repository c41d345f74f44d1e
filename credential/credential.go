// Package credential issues and verifies the opaque bearer credentials handed to
// clients after a successful Google login.
//
// A credential is the base64url encoding of nonce || AEAD-seal(TokenPayload JSON).
// The algorithm identifier is bound as additional data, so a credential sealed
// under one algorithm never opens under another. Nothing is stored server-side:
// expiry is the only invalidation mechanism, and rotating the master secret, salt,
// iteration count or algorithm invalidates every outstanding credential.
package credential

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultLifetime is the credential lifetime used when Config.Lifetime is zero.
const DefaultLifetime = 7 * 24 * time.Hour

var (
	// ErrMalformedCredential covers every decode, decrypt and deserialize failure.
	// Callers cannot tell tampering from truncation or a wrong key.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrExpiredCredential is returned when the payload expiry has passed
	ErrExpiredCredential = errors.New("credential expired")
)

// encoding is unpadded base64url; decoding is strict so altered trailing bits are rejected.
var encoding = base64.RawURLEncoding

// TokenPayload is the claims set sealed inside a credential.
// Field order is fixed so serialization is deterministic.
type TokenPayload struct {
	Subject   string  `json:"sub"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Picture   *string `json:"picture"`
	ExpiresAt int64   `json:"exp"`
}

// Expiry returns ExpiresAt as a time.Time
func (p *TokenPayload) Expiry() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

// Config holds the shared settings for an Issuer and a Verifier.
type Config struct {
	Key       DerivedKey
	Algorithm string           // AlgorithmA256GCM when empty
	Lifetime  time.Duration    // DefaultLifetime when zero
	Now       func() time.Time // time.Now when nil
}

// sealer is the immutable state shared by Issuer and Verifier.
type sealer struct {
	aead      cipher.AEAD
	algorithm string
	lifetime  time.Duration
	now       func() time.Time
}

func newSealer(cfg Config) (*sealer, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmA256GCM
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Lifetime < 0 {
		return nil, fmt.Errorf("credential lifetime must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	aead, err := newAEAD(cfg.Algorithm, cfg.Key)
	if err != nil {
		return nil, err
	}
	return &sealer{
		aead:      aead,
		algorithm: cfg.Algorithm,
		lifetime:  cfg.Lifetime,
		now:       cfg.Now,
	}, nil
}

func (s *sealer) additionalData() []byte {
	return []byte(s.algorithm)
}
