package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultScopes are requested during the consent flow
var DefaultScopes = []string{"openid", "email", "profile"}

// CodeExchangeConfig holds configuration for CodeExchangeVerifier
type CodeExchangeConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Endpoint     oauth2.Endpoint // endpoints.Google when zero
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// idTokenClaims are the id_token fields read after a code exchange
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// CodeExchangeVerifier redeems OAuth2 authorization codes for identity claims
type CodeExchangeVerifier struct {
	conf       *oauth2.Config
	timeout    time.Duration
	httpClient *http.Client
	parser     *jwt.Parser
}

// NewCodeExchangeVerifier creates a new CodeExchangeVerifier
func NewCodeExchangeVerifier(cfg CodeExchangeConfig) *CodeExchangeVerifier {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	cfg.Timeout = orDefaultTimeout(cfg.Timeout)

	return &CodeExchangeVerifier{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
		},
		timeout:    cfg.Timeout,
		httpClient: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
		parser:     jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// AuthCodeURL returns the consent page URL carrying state
func (v *CodeExchangeVerifier) AuthCodeURL(state string) string {
	return v.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Verify exchanges code at the token endpoint and reads the returned id_token
func (v *CodeExchangeVerifier) Verify(ctx context.Context, code string) (*Claims, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrInvalidAssertion)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)

	tok, err := v.conf.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", ErrInvalidAssertion)
	}

	claims := &idTokenClaims{}
	if _, _, err := v.parser.ParseUnverified(rawIDToken, claims); err != nil {
		return nil, fmt.Errorf("%w: parse id_token: %v", ErrInvalidAssertion, err)
	}

	if !containsAudience(claims.Audience, v.conf.ClientID) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidAssertion)
	}

	return newClaims(claims.Email, claims.Name, claims.Picture)
}

// classifyExchangeError maps a 4xx from the token endpoint to ErrInvalidAssertion.
// Anything else is ErrVerificationUnavailable.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return fmt.Errorf("%w: token endpoint status %d", ErrInvalidAssertion, status)
		}
		return fmt.Errorf("%w: token endpoint status %d", ErrVerificationUnavailable, status)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", ErrVerificationUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
}

func containsAudience(audiences jwt.ClaimStrings, clientID string) bool {
	for _, aud := range audiences {
		if aud == clientID {
			return true
		}
	}
	return false
}
