package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authentication & Authorization
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrMissingToken      = errors.New("missing authentication token")
	ErrMissingTenant     = errors.New("token has no tenant claim")
	ErrForbidden         = errors.New("action forbidden")
	ErrUnauthenticated   = errors.New("connection is not authenticated")
	ErrStaffOnly         = errors.New("operation requires a staff role")
	ErrTicketNotInTenant = errors.New("ticket does not belong to this tenant")

	// Ticket validation
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrInvalidStatus           = errors.New("invalid ticket status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTicketIDRequired        = errors.New("ticket ID is required")

	// Presence
	ErrSubjectIDRequired = errors.New("subject ID is required")
	ErrActivityStore     = errors.New("activity store unavailable")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrInternal    = errors.New("internal server error")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError wraps errors with the context needed to build a structured
// failure acknowledgement for a socket client.
type AppError struct {
	Err     error  // The underlying error
	Message string // User-friendly message
	Code    string // Machine-readable error code
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases

func NewUnauthenticatedError() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "Conexão não autenticada",
		Code:    "UNAUTHENTICATED",
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
		Code:    "FORBIDDEN",
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    "NOT_FOUND",
	}
}

func NewInvalidTransition(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidStatusTransition,
		Message: message,
		Code:    "INVALID_TRANSITION",
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrInternal, err),
		Message: "Erro inesperado, tente novamente",
		Code:    "INTERNAL_ERROR",
	}
}
