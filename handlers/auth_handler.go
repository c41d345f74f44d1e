package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jaqubm/budgetme-backend/auth"
	"github.com/jaqubm/budgetme-backend/middleware"
	"github.com/jaqubm/budgetme-backend/services"
	"github.com/jaqubm/budgetme-backend/utils"
	"go.uber.org/zap"
)

// LoginService is the part of services.AuthService the auth endpoints use
type LoginService interface {
	LoginURL(state string) (string, error)
	Login(ctx context.Context, assertion string) (*services.LoginResult, error)
	Logout() string
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Token string `json:"token" validate:"required,max=8192"`
}

// AuthHandler handles Google login and session endpoints
type AuthHandler struct {
	service LoginService
	state   *auth.StateManager
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginService, state *auth.StateManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		state:   state,
		logger:  logger,
	}
}

// HandleLogin handles GET /auth/login.
// Sets the state cookie and redirects to the Google consent screen.
// No cookie is set when the consent URL cannot be built.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.state.NewState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	url, err := h.service.LoginURL(state)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.state.SetCookie(w, state)
	http.Redirect(w, r, url, http.StatusFound)
}

// HandleCallback handles GET /auth/callback
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if err := h.state.Verify(w, r, query.Get("state")); err != nil {
		h.logger.Warn("oauth state rejected", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Info("login cancelled at provider", zap.String("error", providerErr))
		HandleServiceError(w, services.ErrInvalidAssertion, h.logger)
		return
	}

	code := query.Get("code")
	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}

	result, err := h.service.Login(r.Context(), code)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleVerify handles POST /auth/verify with a raw Google ID token
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), req.Token)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleMe handles GET /auth/me. Must run behind RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	payload := middleware.GetPayloadFromContext(r.Context())
	if payload == nil {
		HandleServiceError(w, services.WrapInternal("payload missing from context", errors.New("route not protected")), h.logger)
		return
	}
	_ = utils.WriteOK(w, services.UserInfoFromPayload(payload))
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteMessage(w, h.service.Logout())
}
