package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeAuthRequired       ErrorType = "auth_required"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeSessionInvalid     ErrorType = "session_invalid"
	ErrorTypeStorageUnavailable ErrorType = "storage_unavailable"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeInternal           ErrorType = "internal"
)

// Detail keys shared between services and handlers
const (
	DetailResetSeconds = "reset_seconds"
	DetailReason       = "reason"
	DetailFields       = "fields"
	DetailOperation    = "operation"
)

// DomainError represents a structured error with additional context
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

// Is matches any DomainError of the same type
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

// Sentinels for errors.Is comparisons. Never attach details to these; use
// the constructors below to get a fresh value.
var (
	ErrAuthRequired       = NewDomainError(ErrorTypeAuthRequired, "authentication required", nil)
	ErrForbidden          = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrValidationFailed   = NewDomainError(ErrorTypeValidation, "validation failed", nil)
	ErrRateLimited        = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
	ErrSessionInvalid     = NewDomainError(ErrorTypeSessionInvalid, "session invalid", nil)
	ErrStorageUnavailable = NewDomainError(ErrorTypeStorageUnavailable, "storage unavailable", nil)
	ErrInternal           = NewDomainError(ErrorTypeInternal, "internal server error", nil)

	ErrSignalNotFound  = NewDomainError(ErrorTypeNotFound, "signal not found", nil)
	ErrTagNotFound     = NewDomainError(ErrorTypeNotFound, "tag not found", nil)
	ErrSessionNotFound = NewDomainError(ErrorTypeNotFound, "session not found", nil)
	ErrAuditNotFound   = NewDomainError(ErrorTypeNotFound, "audit log not found", nil)

	ErrDuplicateTag = NewDomainError(ErrorTypeConflict, "tag already exists", nil)
)

// NewRateLimitedError returns a RateLimited error carrying the seconds until
// the window resets
func NewRateLimitedError(operation string, resetSeconds int) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil).
		WithDetail(DetailOperation, operation).
		WithDetail(DetailResetSeconds, resetSeconds)
}

// NewSessionInvalidError returns a SessionInvalid error. The reason is kept
// for logs and audit, handlers do not echo it.
func NewSessionInvalidError(reason string) *DomainError {
	return NewDomainError(ErrorTypeSessionInvalid, "session invalid", nil).
		WithDetail(DetailReason, reason)
}

// NewStorageUnavailableError wraps a backend failure
func NewStorageUnavailableError(op string, err error) *DomainError {
	return NewDomainError(ErrorTypeStorageUnavailable, op+": storage unavailable", err)
}

// NewValidationFailedError returns a ValidationFailed error with per-field
// messages that are safe to show the caller
func NewValidationFailedError(message string, fields map[string]string) *DomainError {
	if message == "" {
		message = "validation failed"
	}
	e := NewDomainError(ErrorTypeValidation, message, nil)
	if len(fields) > 0 {
		e.WithDetail(DetailFields, fields)
	}
	return e
}

// NewForbiddenError returns a Forbidden error with a generic message
func NewForbiddenError() *DomainError {
	return NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
}

// NewAuthRequiredError returns an AuthRequired error with a generic message
func NewAuthRequiredError() *DomainError {
	return NewDomainError(ErrorTypeAuthRequired, "authentication required", nil)
}

// Error type checking helper functions

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsAuthRequiredError checks if an error is an auth required error
func IsAuthRequiredError(err error) bool { return isType(err, ErrorTypeAuthRequired) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool { return isType(err, ErrorTypeRateLimit) }

// IsSessionInvalidError checks if an error is a session invalid error
func IsSessionInvalidError(err error) bool { return isType(err, ErrorTypeSessionInvalid) }

// IsStorageUnavailableError checks if an error is a storage unavailable error
func IsStorageUnavailableError(err error) bool { return isType(err, ErrorTypeStorageUnavailable) }

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool { return isType(err, ErrorTypeConflict) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
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

// GetResetSeconds returns the reset_seconds detail of a rate limit error
func GetResetSeconds(err error) int {
	if v, ok := GetErrorDetails(err)[DetailResetSeconds].(int); ok {
		return v
	}
	return 0
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
