// Package errors provides the unified error taxonomy for uniai.
// Every failure the library surfaces is an *AppError carrying a
// machine-readable code, a retryable flag, and the provider that
// produced it, so callers handle faults uniformly regardless of vendor.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified uniai error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status code reported by the provider, or a
	// recommended status for locally raised errors.
	HTTPStatus int `json:"-"`
	// Provider identifies the backend that produced the error. Empty for
	// errors raised before a provider was involved.
	Provider string `json:"provider,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Provider)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithProvider tags the error with the producing backend and returns the receiver.
func (e *AppError) WithProvider(provider string) *AppError {
	e.Provider = provider
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Taxonomy Constructors ---

// Configuration creates an AppError for invalid or missing configuration.
// Raised synchronously at construction or switch time, before any network call.
func Configuration(message string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a configuration error for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: fmt.Sprintf("missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Authentication creates an AppError for credentials the provider rejected.
func Authentication(provider string, statusCode int) *AppError {
	return &AppError{
		Code: ErrCodeAuthentication, Message: "The provider rejected the API credentials.",
		HTTPStatus: statusCode, Retryable: false, Provider: provider,
	}
}

// RateLimited creates an AppError for provider throttling.
func RateLimited(provider string) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true, Provider: provider,
	}
}

// API creates an AppError for any other provider-reported failure.
// Server-side conditions (5xx) are retryable, client-side (4xx) are not.
func API(provider string, statusCode int, message string) *AppError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &AppError{
		Code: ErrCodeAPI, Message: message,
		HTTPStatus: statusCode, Retryable: statusCode >= 500, Provider: provider,
	}
}

// Timeout creates an AppError for a round trip that exceeded the deadline
// or failed at the connection level.
func Timeout(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long or the connection failed.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Provider: provider,
		Cause: cause,
	}
}

// Internal creates an AppError for an unexpected library failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeAPI, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
