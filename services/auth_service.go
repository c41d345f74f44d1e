package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jaqubm/budgetme-backend/credential"
	"github.com/jaqubm/budgetme-backend/identity"
	"go.uber.org/zap"
)

// TokenTypeBearer is the token_type returned with every issued credential
const TokenTypeBearer = "bearer"

// UserInfo is the public view of an authenticated user
type UserInfo struct {
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Picture *string `json:"picture"`
}

// LoginResult is returned after a successful login
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

// CredentialIssuer mints bearer credentials
type CredentialIssuer interface {
	Issue(claims credential.Claims) (string, *credential.TokenPayload, error)
}

// CredentialVerifier opens bearer credentials
type CredentialVerifier interface {
	Verify(token string) (*credential.TokenPayload, error)
}

// AuthService ties identity verification to credential issuance.
// It holds no mutable state and is safe for concurrent use.
type AuthService struct {
	identity identity.Verifier
	issuer   CredentialIssuer
	verifier CredentialVerifier
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(idVerifier identity.Verifier, issuer CredentialIssuer, verifier CredentialVerifier, logger *zap.Logger) *AuthService {
	return &AuthService{
		identity: idVerifier,
		issuer:   issuer,
		verifier: verifier,
		logger:   logger,
	}
}

// SupportsRedirectLogin reports whether the active identity strategy has a consent flow
func (s *AuthService) SupportsRedirectLogin() bool {
	_, ok := s.identity.(identity.LoginURLBuilder)
	return ok
}

// LoginURL returns the provider consent URL carrying state
func (s *AuthService) LoginURL(state string) (string, error) {
	builder, ok := s.identity.(identity.LoginURLBuilder)
	if !ok {
		return "", ErrLoginFlowNotSupported
	}
	if state == "" {
		return "", NewDomainError(ErrorTypeValidation, "state is required", nil)
	}
	return builder.AuthCodeURL(state), nil
}

// Login verifies an identity assertion and issues a bearer credential for it
func (s *AuthService) Login(ctx context.Context, assertion string) (*LoginResult, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, wrapAs(ErrInvalidAssertion, errors.New("empty assertion"))
	}

	claims, err := s.identity.Verify(ctx, assertion)
	if err != nil {
		s.logger.Warn("identity verification failed", zap.Error(err))
		return nil, translateIdentityError(err)
	}

	token, payload, err := s.issuer.Issue(credential.Claims{
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	})
	if err != nil {
		s.logger.Error("failed to issue credential", zap.Error(err))
		return nil, WrapInternal("failed to issue credential", err)
	}

	s.logger.Info("credential issued",
		zap.String("email", payload.Email),
		zap.Time("expires_at", payload.Expiry()),
	)

	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   payload.Expiry(),
		User:        userInfoFrom(payload),
	}, nil
}

// Authenticate verifies the credential carried in an Authorization header value
func (s *AuthService) Authenticate(ctx context.Context, header string) (*credential.TokenPayload, error) {
	token, ok := parseBearer(header)
	if !ok {
		return nil, ErrMissingCredential
	}

	payload, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("credential rejected", zap.Error(err))
		return nil, translateCredentialError(err)
	}
	return payload, nil
}

// Logout acknowledges a logout. Credentials are stateless and stay valid until expiry.
func (s *AuthService) Logout() string {
	return "Logged out successfully"
}

// UserInfoFromPayload returns the public user view of a verified payload
func UserInfoFromPayload(payload *credential.TokenPayload) UserInfo {
	return userInfoFrom(payload)
}

func userInfoFrom(payload *credential.TokenPayload) UserInfo {
	return UserInfo{
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.Picture,
	}
}

// parseBearer extracts the credential from "Bearer <credential>".
// The scheme is matched case-insensitively.
func parseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func translateIdentityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrVerificationUnavailable):
		return wrapAs(ErrVerificationUnavailable, err)
	case errors.Is(err, identity.ErrInvalidAssertion):
		return wrapAs(ErrInvalidAssertion, err)
	default:
		return WrapInternal("identity verification failed", err)
	}
}

func translateCredentialError(err error) error {
	switch {
	case errors.Is(err, credential.ErrExpiredCredential):
		return wrapAs(ErrExpiredCredential, err)
	case errors.Is(err, credential.ErrMalformedCredential):
		return wrapAs(ErrMalformedCredential, err)
	default:
		return WrapInternal("credential verification failed", err)
	}
}
