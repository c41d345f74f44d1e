package middleware

import (
	"context"

	"github.com/jaqubm/budgetme-backend/credential"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// PayloadKey is the context key for the verified credential payload
	PayloadKey contextKey = "credential_payload"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetPayloadFromContext retrieves the verified credential payload from context
func GetPayloadFromContext(ctx context.Context) *credential.TokenPayload {
	if val := ctx.Value(PayloadKey); val != nil {
		if payload, ok := val.(*credential.TokenPayload); ok {
			return payload
		}
	}
	return nil
}

// WithPayload adds a verified credential payload to the context
func WithPayload(ctx context.Context, payload *credential.TokenPayload) context.Context {
	return context.WithValue(ctx, PayloadKey, payload)
}
