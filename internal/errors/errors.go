// Package errors provides application error types for the leadbot service.
// It includes domain-specific error codes, error classification, and HTTP
// status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

// Error codes for different error categories.
const (
	// Validation errors
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeMissingField  Code = "MISSING_FIELD"
	CodeInvalidStatus Code = "INVALID_STATUS"

	// Authorization errors
	CodeForbidden        Code = "FORBIDDEN"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Resource errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// External service errors
	CodeExternalService Code = "EXTERNAL_SERVICE_ERROR"
	CodeProviderError   Code = "PROVIDER_ERROR"
	CodeTelegramError   Code = "TELEGRAM_ERROR"
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeTimeout         Code = "TIMEOUT"

	// Internal errors
	CodeInternal Code = "INTERNAL_ERROR"
	CodeDatabase Code = "DATABASE_ERROR"
	CodeConfig   Code = "CONFIG_ERROR"
)

// Kind classifies an error for handling decisions.
type Kind int

const (
	// KindUnknown is an unknown error kind.
	KindUnknown Kind = iota
	// KindUser indicates a user-caused error (bad input, missing permission).
	KindUser
	// KindSystem indicates a system error (database down, config broken).
	KindSystem
	// KindTransient indicates a temporary error that may succeed later.
	KindTransient
)

// Error is the base application error type.
type Error struct {
	// Code is the machine-readable error code.
	Code Code `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Kind classifies the error for handling decisions.
	Kind Kind `json:"-"`
	// Op is the operation being performed (e.g., "LeadRepository.Create").
	Op string `json:"-"`
	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidInput, CodeMissingField, CodeInvalidStatus:
		return http.StatusBadRequest
	case CodeForbidden, CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternalService, CodeProviderError, CodeTelegramError, CodeCircuitOpen:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsUserError returns true if the error was caused by user action.
func (e *Error) IsUserError() bool {
	return e.Kind == KindUser
}

// ErrorResponse represents the JSON response for API errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error details in API responses.
type ErrorDetail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ToResponse converts an Error to an API response.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
		},
	}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, op string, code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
		Op:      op,
		Err:     err,
	}
}

// kindForCode returns the default Kind for a given Code.
func kindForCode(code Code) Kind {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeMissingField, CodeInvalidStatus,
		CodeForbidden, CodePermissionDenied, CodeNotFound, CodeAlreadyExists:
		return KindUser
	case CodeExternalService, CodeProviderError, CodeTelegramError,
		CodeCircuitOpen, CodeTimeout:
		return KindTransient
	default:
		return KindSystem
	}
}

// Sentinel errors for common cases.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = New(CodeNotFound, "resource not found")

	// ErrPermissionDenied indicates the caller lacks the admin capability.
	ErrPermissionDenied = New(CodePermissionDenied, "permission denied")

	// ErrCircuitOpen indicates a provider circuit breaker is open.
	ErrCircuitOpen = New(CodeCircuitOpen, "service temporarily unavailable")
)

// Specialized error constructors.

// NotFound creates a not found error for a specific resource.
func NotFound(resource string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Kind:    KindUser,
	}
}

// ValidationFailed creates a validation error with details.
func ValidationFailed(message string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Kind:    KindUser,
	}
}

// MissingField creates a missing field validation error.
func MissingField(field string) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Kind:    KindUser,
	}
}

// DatabaseError creates a database error with the underlying cause.
func DatabaseError(op string, err error) *Error {
	return &Error{
		Code:    CodeDatabase,
		Message: "database operation failed",
		Kind:    KindSystem,
		Op:      op,
		Err:     err,
	}
}

// ExternalServiceError creates an external service error.
func ExternalServiceError(service string, err error) *Error {
	return &Error{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Kind:    KindTransient,
		Err:     err,
	}
}

// ProviderError creates an AI provider error.
func ProviderError(provider string, err error) *Error {
	return &Error{
		Code:    CodeProviderError,
		Message: fmt.Sprintf("AI provider %s error", provider),
		Kind:    KindTransient,
		Err:     err,
	}
}

// TelegramError creates a Telegram API error.
func TelegramError(op string, err error) *Error {
	return &Error{
		Code:    CodeTelegramError,
		Message: "telegram API call failed",
		Kind:    KindTransient,
		Op:      op,
		Err:     err,
	}
}

// InternalError creates a generic internal error.
func InternalError(message string, err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: message,
		Kind:    KindSystem,
		Err:     err,
	}
}

// Helper functions.

// GetCode extracts the error code from an error, returning CodeInternal for
// non-app errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status from an error, returning 500 for
// non-app errors.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeNotFound
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case CodeValidation, CodeInvalidInput, CodeMissingField, CodeInvalidStatus:
			return true
		}
	}
	return false
}

// IsUserError checks if an error was caused by user action.
func IsUserError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsUserError()
	}
	return false
}
