package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signIDToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	// Signature is not checked after a code exchange; any key will do
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func testIDTokenClaims(aud string) *idTokenClaims {
	verified := true
	return &idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "1234567890",
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "ann@example.com",
		EmailVerified: &verified,
		Name:          "Ann",
		Picture:       "https://example.com/ann.png",
	}
}

// tokenEndpoint serves the OAuth2 token endpoint; idToken is omitted when empty
func tokenEndpoint(t *testing.T, status int, idToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, testClientID, r.PostForm.Get("client_id"))
		assert.Equal(t, "test-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "http://localhost:8000/auth/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]interface{}{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3599,
		}
		if idToken != "" {
			body["id_token"] = idToken
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExchanger(tokenURL string, timeout time.Duration) *CodeExchangeVerifier {
	return NewCodeExchangeVerifier(CodeExchangeConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:8000/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/o/oauth2/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Timeout: timeout,
	})
}

func TestCodeExchangeVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("returns claims from the id_token", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusOK, signIDToken(t, testIDTokenClaims(testClientID)))
		v := newTestExchanger(srv.URL, 0)

		claims, err := v.Verify(ctx, "auth-code")
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", claims.Email)
		assert.Equal(t, "Ann", claims.Name)
		require.NotNil(t, claims.Picture)
		assert.Equal(t, "https://example.com/ann.png", *claims.Picture)
	})

	t.Run("audience mismatch is invalid", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusOK, signIDToken(t, testIDTokenClaims("other-client")))
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
	})

	t.Run("unverified email is invalid", func(t *testing.T) {
		claims := testIDTokenClaims(testClientID)
		unverified := false
		claims.EmailVerified = &unverified
		srv := tokenEndpoint(t, http.StatusOK, signIDToken(t, claims))
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
	})

	t.Run("missing id_token is invalid", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusOK, "")
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
	})

	t.Run("garbage id_token is invalid", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusOK, "not.a.jwt")
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
	})

	t.Run("rejected code is invalid", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusBadRequest, "")
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
		assert.NotContains(t, err.Error(), "invalid_grant")
	})

	t.Run("token endpoint 5xx is unavailable", func(t *testing.T) {
		srv := tokenEndpoint(t, http.StatusBadGateway, "")
		v := newTestExchanger(srv.URL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrVerificationUnavailable)
	})

	t.Run("unreachable token endpoint is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		tokenURL := srv.URL
		srv.Close()
		v := newTestExchanger(tokenURL, 0)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrVerificationUnavailable)
	})

	t.Run("slow token endpoint times out as unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		v := newTestExchanger(srv.URL, 50*time.Millisecond)

		_, err := v.Verify(ctx, "auth-code")
		assert.ErrorIs(t, err, ErrVerificationUnavailable)
	})

	t.Run("empty code is invalid", func(t *testing.T) {
		v := newTestExchanger("http://127.0.0.1:1", 0)

		_, err := v.Verify(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidAssertion)
	})
}

func TestCodeExchangeVerifier_AuthCodeURL(t *testing.T) {
	v := NewCodeExchangeVerifier(CodeExchangeConfig{
		ClientID:    testClientID,
		RedirectURI: "http://localhost:8000/auth/callback",
	})

	loc, err := url.Parse(v.AuthCodeURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", loc.Host)
	q := loc.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestClassifyExchangeError(t *testing.T) {
	assert.ErrorIs(t, classifyExchangeError(context.DeadlineExceeded), ErrVerificationUnavailable)
	assert.ErrorIs(t, classifyExchangeError(&oauth2.RetrieveError{Response: &http.Response{StatusCode: 401}}), ErrInvalidAssertion)
	assert.ErrorIs(t, classifyExchangeError(&oauth2.RetrieveError{Response: &http.Response{StatusCode: 503}}), ErrVerificationUnavailable)
	assert.ErrorIs(t, classifyExchangeError(assert.AnError), ErrVerificationUnavailable)
}
