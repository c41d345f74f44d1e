// Package auth manages the short-lived state cookie that binds an authorization
// code callback to the browser that started the login.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// StateCookieName is the cookie name for OAuth state (CSRF)
	StateCookieName = "oauth_state"
	// StateTTL bounds how long a login may take between redirect and callback
	StateTTL = 10 * time.Minute

	stateBytes = 24
)

var (
	// ErrMissingState is returned when the callback carries no state or no cookie
	ErrMissingState = errors.New("missing oauth state")
	// ErrStateMismatch is returned when the callback state differs from the cookie
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// StateManager issues and checks state cookies.
type StateManager struct {
	secure bool
}

// NewStateManager creates a StateManager. Cookies are marked Secure when the
// redirect URI is served over https.
func NewStateManager(redirectURI string) *StateManager {
	return &StateManager{secure: strings.HasPrefix(strings.ToLower(redirectURI), "https://")}
}

// NewState generates a fresh random state value
func (m *StateManager) NewState() (string, error) {
	state, err := generateSecureState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return state, nil
}

// SetCookie stores state in the state cookie on w for StateTTL
func (m *StateManager) SetCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, m.cookie(state, int(StateTTL.Seconds())))
}

// Verify checks the state query value against the cookie and clears the cookie.
// The cookie is cleared even when verification fails so a state is single-use.
func (m *StateManager) Verify(w http.ResponseWriter, r *http.Request, state string) error {
	http.SetCookie(w, m.cookie("", -1))

	if state == "" {
		return ErrMissingState
	}
	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" {
		return ErrMissingState
	}
	if subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

func (m *StateManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		// Lax so the cookie survives the top-level redirect back from Google
		SameSite: http.SameSiteLaxMode,
	}
}

func generateSecureState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
