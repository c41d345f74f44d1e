package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation              ErrorType = "validation"
	ErrorTypeInvalidAssertion        ErrorType = "invalid_assertion"
	ErrorTypeVerificationUnavailable ErrorType = "verification_unavailable"
	ErrorTypeMalformedCredential     ErrorType = "malformed_credential"
	ErrorTypeExpiredCredential       ErrorType = "expired_credential"
	ErrorTypeMissingCredential       ErrorType = "missing_credential"
	ErrorTypeNotSupported            ErrorType = "not_supported"
	ErrorTypeInternal                ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Message is safe to show to clients; Err is kept for logs only.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. Compare with errors.Is; never mutate them.

var (
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)

	// Identity provider errors
	ErrInvalidAssertion        = NewDomainError(ErrorTypeInvalidAssertion, "identity assertion rejected", nil)
	ErrVerificationUnavailable = NewDomainError(ErrorTypeVerificationUnavailable, "identity provider unavailable, try again later", nil)

	// Bearer credential errors
	ErrMalformedCredential = NewDomainError(ErrorTypeMalformedCredential, "invalid credential", nil)
	ErrExpiredCredential   = NewDomainError(ErrorTypeExpiredCredential, "Session expired, please log in again", nil)
	ErrMissingCredential   = NewDomainError(ErrorTypeMissingCredential, "missing or invalid authorization header", nil)

	ErrLoginFlowNotSupported = NewDomainError(ErrorTypeNotSupported, "login flow not enabled", nil)

	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// wrapAs copies the type and public message of sentinel and attaches err as the cause
func wrapAs(sentinel *DomainError, err error) *DomainError {
	return NewDomainError(sentinel.Type, sentinel.Message, err)
}

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error should be answered with 401:
// a rejected assertion or a missing, malformed or expired credential
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeInvalidAssertion) ||
		isType(err, ErrorTypeMalformedCredential) ||
		isType(err, ErrorTypeExpiredCredential) ||
		isType(err, ErrorTypeMissingCredential)
}

// IsUnavailableError checks if an error is an identity provider outage
func IsUnavailableError(err error) bool {
	return isType(err, ErrorTypeVerificationUnavailable)
}

// IsNotSupportedError checks if an error is a not supported error
func IsNotSupportedError(err error) bool {
	return isType(err, ErrorTypeNotSupported)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetPublicMessage returns the client-safe message of a domain error
func GetPublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
