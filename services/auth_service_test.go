package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaqubm/budgetme-backend/credential"
	"github.com/jaqubm/budgetme-backend/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdentityVerifier is a mock implementation of identity.Verifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, assertion string) (*identity.Claims, error) {
	args := m.Called(ctx, assertion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Claims), args.Error(1)
}

// MockRedirectVerifier also builds consent URLs
type MockRedirectVerifier struct {
	MockIdentityVerifier
}

func (m *MockRedirectVerifier) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

// MockIssuer is a mock implementation of CredentialIssuer
type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Issue(claims credential.Claims) (string, *credential.TokenPayload, error) {
	args := m.Called(claims)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*credential.TokenPayload), args.Error(2)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCredentials(t *testing.T, now func() time.Time) (*credential.Issuer, *credential.Verifier) {
	t.Helper()
	key, err := credential.DeriveKey([]byte("test-secret"), []byte("test-salt"), 1000)
	require.NoError(t, err)

	cfg := credential.Config{Key: key, Lifetime: time.Hour, Now: now}
	issuer, err := credential.NewIssuer(cfg)
	require.NoError(t, err)
	verifier, err := credential.NewVerifier(cfg)
	require.NoError(t, err)
	return issuer, verifier
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	picture := "https://example.com/a.png"

	t.Run("valid assertion issues a credential", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		issuer, verifier := newTestCredentials(t, func() time.Time { return testNow })
		svc := NewAuthService(idv, issuer, verifier, logger)

		idv.On("Verify", ctx, "good-code").Return(&identity.Claims{
			Email:   "a@x.com",
			Name:    "Ann",
			Picture: &picture,
		}, nil)

		result, err := svc.Login(ctx, "good-code")
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "bearer", result.TokenType)
		assert.True(t, result.ExpiresAt.Equal(testNow.Add(time.Hour)))
		assert.Equal(t, "a@x.com", result.User.Email)
		assert.Equal(t, "Ann", result.User.Name)
		require.NotNil(t, result.User.Picture)
		assert.Equal(t, picture, *result.User.Picture)

		payload, err := svc.Authenticate(ctx, "Bearer "+result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", payload.Subject)
		idv.AssertExpectations(t)
	})

	t.Run("rejected assertion is invalid_assertion", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		issuer := new(MockIssuer)
		svc := NewAuthService(idv, issuer, nil, logger)

		idv.On("Verify", ctx, "bad").Return(nil, fmt.Errorf("%w: aud mismatch", identity.ErrInvalidAssertion))

		result, err := svc.Login(ctx, "bad")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, ErrInvalidAssertion))
		assert.True(t, errors.Is(err, identity.ErrInvalidAssertion))
		issuer.AssertNotCalled(t, "Issue", mock.Anything)
	})

	t.Run("provider outage is verification_unavailable", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		svc := NewAuthService(idv, new(MockIssuer), nil, logger)

		idv.On("Verify", ctx, "code").Return(nil, fmt.Errorf("%w: timeout", identity.ErrVerificationUnavailable))

		_, err := svc.Login(ctx, "code")
		assert.True(t, IsUnavailableError(err))
	})

	t.Run("unknown verifier error is internal", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		svc := NewAuthService(idv, new(MockIssuer), nil, logger)

		idv.On("Verify", ctx, "code").Return(nil, errors.New("boom"))

		_, err := svc.Login(ctx, "code")
		assert.True(t, IsInternalError(err))
	})

	t.Run("blank assertion never reaches the provider", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		svc := NewAuthService(idv, new(MockIssuer), nil, logger)

		_, err := svc.Login(ctx, "   ")
		assert.True(t, errors.Is(err, ErrInvalidAssertion))
		idv.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("issuance failure is internal", func(t *testing.T) {
		idv := new(MockIdentityVerifier)
		issuer := new(MockIssuer)
		svc := NewAuthService(idv, issuer, nil, logger)

		idv.On("Verify", ctx, "code").Return(&identity.Claims{Email: "a@x.com", Name: "Ann"}, nil)
		issuer.On("Issue", credential.Claims{Email: "a@x.com", Name: "Ann"}).Return("", nil, errors.New("rng failure"))

		_, err := svc.Login(ctx, "code")
		assert.True(t, IsInternalError(err))
		assert.NotContains(t, GetPublicMessage(err), "rng")
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	now := testNow
	clock := func() time.Time { return now }
	issuer, verifier := newTestCredentials(t, clock)
	svc := NewAuthService(new(MockIdentityVerifier), issuer, verifier, logger)

	token, _, err := issuer.Issue(credential.Claims{Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr *DomainError
	}{
		{"bearer scheme", "Bearer " + token, nil},
		{"lowercase scheme", "bearer " + token, nil},
		{"uppercase scheme", "BEARER " + token, nil},
		{"empty header", "", ErrMissingCredential},
		{"scheme only", "Bearer", ErrMissingCredential},
		{"scheme with blank token", "Bearer   ", ErrMissingCredential},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrMissingCredential},
		{"raw token without scheme", token, ErrMissingCredential},
		{"garbage credential", "Bearer not-a-credential", ErrMalformedCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := svc.Authenticate(ctx, tt.header)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "a@x.com", payload.Email)
				return
			}
			assert.Nil(t, payload)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("expired credential", func(t *testing.T) {
		now = testNow.Add(61 * time.Minute)
		defer func() { now = testNow }()

		_, err := svc.Authenticate(ctx, "Bearer "+token)
		assert.True(t, errors.Is(err, ErrExpiredCredential))
		assert.Equal(t, "Session expired, please log in again", GetPublicMessage(err))
	})
}

func TestAuthService_LoginURL(t *testing.T) {
	logger := zap.NewNop()

	t.Run("redirect strategy builds the consent url", func(t *testing.T) {
		idv := new(MockRedirectVerifier)
		idv.On("AuthCodeURL", "state-1").Return("https://accounts.example.com/auth?state=state-1")
		svc := NewAuthService(idv, nil, nil, logger)

		assert.True(t, svc.SupportsRedirectLogin())
		url, err := svc.LoginURL("state-1")
		require.NoError(t, err)
		assert.Equal(t, "https://accounts.example.com/auth?state=state-1", url)
	})

	t.Run("empty state is rejected", func(t *testing.T) {
		svc := NewAuthService(new(MockRedirectVerifier), nil, nil, logger)

		_, err := svc.LoginURL("")
		assert.True(t, IsValidationError(err))
	})

	t.Run("token strategy has no consent flow", func(t *testing.T) {
		svc := NewAuthService(new(MockIdentityVerifier), nil, nil, logger)

		assert.False(t, svc.SupportsRedirectLogin())
		_, err := svc.LoginURL("state-1")
		assert.True(t, IsNotSupportedError(err))
	})
}

func TestAuthService_Logout(t *testing.T) {
	svc := NewAuthService(new(MockIdentityVerifier), nil, nil, zap.NewNop())
	assert.Equal(t, "Logged out successfully", svc.Logout())
}

func TestParseBearer(t *testing.T) {
	token, ok := parseBearer("  Bearer abc  ")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = parseBearer("Token abc")
	assert.False(t, ok)
}
