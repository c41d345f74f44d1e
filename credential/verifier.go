package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Verifier opens and validates bearer credentials. It is safe for concurrent use.
type Verifier struct {
	*sealer
}

// NewVerifier creates a Verifier from cfg
func NewVerifier(cfg Config) (*Verifier, error) {
	s, err := newSealer(cfg)
	if err != nil {
		return nil, err
	}
	return &Verifier{sealer: s}, nil
}

// Verify decodes, decrypts and deserializes token, then checks expiry.
// Every failure before the expiry check is ErrMalformedCredential; an integrity
// failure never reaches the expiry check.
func (v *Verifier) Verify(token string) (*TokenPayload, error) {
	raw, err := encoding.Strict().DecodeString(token)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize+v.aead.Overhead() {
		return nil, ErrMalformedCredential
	}

	plaintext, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], v.additionalData())
	if err != nil {
		return nil, ErrMalformedCredential
	}

	var payload TokenPayload
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, ErrMalformedCredential
	}
	if payload.Email == "" || payload.Subject == "" {
		return nil, ErrMalformedCredential
	}

	if payload.ExpiresAt < v.now().Unix() {
		return nil, fmt.Errorf("%w: expired at %d", ErrExpiredCredential, payload.ExpiresAt)
	}

	return &payload, nil
}
