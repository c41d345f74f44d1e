// Package identity turns a Google identity assertion into verified claims.
//
// Two strategies exist and exactly one is active per process:
//
//   - CodeExchangeVerifier redeems an authorization code at the token endpoint and
//     reads the id_token it returns. The id_token arrives over a TLS connection
//     authenticated with the client secret, so it is trusted without a second
//     round trip; its audience is still checked.
//   - TokenInfoVerifier sends a raw id_token to Google's tokeninfo endpoint and
//     requires the returned audience to equal the configured client id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jaqubm/budgetme-backend/utils"
)

// DefaultTimeout bounds every call to the identity provider.
const DefaultTimeout = 10 * time.Second

var (
	// ErrInvalidAssertion is returned when the provider rejects the assertion or it is malformed
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrVerificationUnavailable is returned when the provider cannot be reached
	ErrVerificationUnavailable = errors.New("identity verification unavailable")
)

// Claims is the verified identity of a user.
type Claims struct {
	Email   string  `json:"email" validate:"required,email"`
	Name    string  `json:"name" validate:"required"`
	Picture *string `json:"picture"`
}

// Verifier exchanges an identity assertion for verified claims.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Claims, error)
}

// LoginURLBuilder is implemented by verifiers that support a redirect-based consent flow.
type LoginURLBuilder interface {
	AuthCodeURL(state string) string
}

// newClaims validates provider fields and builds Claims.
// A missing name falls back to the email address.
func newClaims(email, name, picture string) (*Claims, error) {
	if name == "" {
		name = email
	}
	claims := &Claims{Email: email, Name: name}
	if picture != "" {
		claims.Picture = &picture
	}
	if err := utils.ValidateStruct(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	return claims, nil
}

func newHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}

func orDefaultTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
