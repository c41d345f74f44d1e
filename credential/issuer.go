package credential

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
)

// Claims is the identity an Issuer mints a credential for.
type Claims struct {
	Email   string
	Name    string
	Picture *string
}

// Issuer mints bearer credentials. It is safe for concurrent use.
type Issuer struct {
	*sealer
}

// NewIssuer creates an Issuer from cfg
func NewIssuer(cfg Config) (*Issuer, error) {
	s, err := newSealer(cfg)
	if err != nil {
		return nil, err
	}
	return &Issuer{sealer: s}, nil
}

// Issue seals a payload for claims that expires one lifetime from now.
// It returns the credential together with the payload it encodes.
func (i *Issuer) Issue(claims Claims) (string, *TokenPayload, error) {
	payload := &TokenPayload{
		Subject:   claims.Email,
		Email:     claims.Email,
		Name:      claims.Name,
		Picture:   claims.Picture,
		ExpiresAt: i.now().Add(i.lifetime).Unix(),
	}

	token, err := i.seal(payload)
	if err != nil {
		return "", nil, err
	}
	return token, payload, nil
}

func (i *Issuer) seal(payload *TokenPayload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize payload: %w", err)
	}

	nonceSize := i.aead.NonceSize()
	buf := make([]byte, nonceSize, nonceSize+len(plaintext)+i.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := i.aead.Seal(buf, buf[:nonceSize], plaintext, i.additionalData())
	return encoding.EncodeToString(sealed), nil
}
