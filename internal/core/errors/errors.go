package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Authentication & Authorization
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("action forbidden")
	ErrInvalidAPIKey = errors.New("invalid api key")

	// Real-time
	ErrUserIDRequired        = errors.New("userId is required")
	ErrAlreadyAuthenticated  = errors.New("connection already authenticated")
	ErrConnectionNotFound    = errors.New("connection not found")
	ErrSocketAlreadyStarted  = errors.New("socket server already initialized")
	ErrTicketIDRequired      = errors.New("ticket ID is required")
	ErrUnknownEventKind      = errors.New("unknown event kind")
	ErrInvalidEventPayload   = errors.New("invalid event payload")
	ErrInvalidSubscribeValue = errors.New("ticket ID must be a string or number")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
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
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
