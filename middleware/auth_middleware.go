package middleware

import (
	"context"
	"net/http"

	"github.com/jaqubm/budgetme-backend/credential"
	"github.com/jaqubm/budgetme-backend/services"
	"github.com/jaqubm/budgetme-backend/utils"
	"go.uber.org/zap"
)

// Authenticator verifies the value of an Authorization header
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*credential.TokenPayload, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer credential.
// Credentials are only read from the Authorization header.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		payload, err := m.authenticator.Authenticate(ctx, r.Header.Get("Authorization"))
		if err != nil {
			if services.IsUnauthorizedError(err) {
				m.logger.Warn("authentication failed",
					zap.String("request_id", requestID),
					zap.String("reason", string(services.GetErrorType(err))))
				_ = utils.WriteUnauthorized(w, services.GetPublicMessage(err))
				return
			}
			m.logger.Error("authentication error",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		ctx = WithPayload(ctx, payload)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", payload.Subject))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
