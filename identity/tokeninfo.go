package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// GoogleTokenInfoURL is Google's id_token introspection endpoint.
const GoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

const maxTokenInfoBody = 1 << 20

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// TokenInfoConfig holds configuration for TokenInfoVerifier
type TokenInfoConfig struct {
	ClientID   string
	Endpoint   string // GoogleTokenInfoURL when empty
	Timeout    time.Duration
	HTTPClient *http.Client
}

// tokenInfoResponse is the subset of the tokeninfo body that is used.
// Google encodes every value as a string.
type tokenInfoResponse struct {
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// TokenInfoVerifier verifies raw Google id_tokens through the tokeninfo endpoint
type TokenInfoVerifier struct {
	clientID   string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewTokenInfoVerifier creates a new TokenInfoVerifier
func NewTokenInfoVerifier(cfg TokenInfoConfig) *TokenInfoVerifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = GoogleTokenInfoURL
	}
	cfg.Timeout = orDefaultTimeout(cfg.Timeout)
	return &TokenInfoVerifier{
		clientID:   cfg.ClientID,
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		httpClient: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}
}

// Verify introspects idToken and returns its claims when the audience matches
func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (*Claims, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrInvalidAssertion)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	reqURL := v.endpoint + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrVerificationUnavailable, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: tokeninfo status %d", ErrVerificationUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: tokeninfo status %d", ErrInvalidAssertion, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenInfoBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read tokeninfo: %v", ErrVerificationUnavailable, err)
	}

	var info tokenInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: decode tokeninfo: %v", ErrInvalidAssertion, err)
	}

	if v.clientID == "" || info.Audience == "" || info.Audience != v.clientID {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
	}
	if info.Issuer != "" && !googleIssuers[info.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAssertion, info.Issuer)
	}
	if info.EmailVerified == "false" {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidAssertion)
	}

	return newClaims(info.Email, info.Name, info.Picture)
}
