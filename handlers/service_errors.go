package handlers

import (
	"net/http"

	"github.com/jaqubm/budgetme-backend/services"
	"github.com/jaqubm/budgetme-backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Only the public message of a domain error reaches the client; the wrapped cause is logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := services.GetPublicMessage(err)
	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsUnauthorizedError(err):
		logger.Warn("request unauthorized",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsUnavailableError(err):
		logger.Error("identity provider unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsNotSupportedError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
