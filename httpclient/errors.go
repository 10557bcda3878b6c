package httpclient

import (
	"errors"
	"fmt"
)

// ErrorCode classifies transport-level failures.
type ErrorCode int

const (
	// ErrCodeUnknown is an unclassified error.
	ErrCodeUnknown ErrorCode = iota
	// ErrCodeTimeout indicates the request exceeded its deadline.
	ErrCodeTimeout
	// ErrCodeConnection indicates a network-level failure (DNS, refused, reset).
	ErrCodeConnection
	// ErrCodeAuth indicates an authentication or authorization failure (401, 403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource does not exist (404).
	ErrCodeNotFound
	// ErrCodeRateLimit indicates the server is throttling requests (429).
	ErrCodeRateLimit
	// ErrCodeValidation indicates the request was rejected as malformed (other 4xx).
	ErrCodeValidation
	// ErrCodeServer indicates a server-side failure (5xx).
	ErrCodeServer
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a typed transport error carrying the HTTP status and response body
// when one was received.
type Error struct {
	// StatusCode is the HTTP status code (0 if no response was received).
	StatusCode int
	// Code classifies the failure.
	Code ErrorCode
	// Message is a human-readable description.
	Message string
	// Retryable indicates whether retrying the request may succeed.
	Retryable bool
	// Body is the raw response body, if any.
	Body []byte
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("httpclient: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates an error for a request that exceeded its deadline.
func NewTimeoutError(err error) *Error {
	return &Error{
		Code:      ErrCodeTimeout,
		Message:   "request timed out",
		Retryable: true,
		Err:       err,
	}
}

// NewConnectionError creates an error for a network-level failure.
func NewConnectionError(err error) *Error {
	return &Error{
		Code:      ErrCodeConnection,
		Message:   "connection failed",
		Retryable: true,
		Err:       err,
	}
}

// ClassifyStatusCode maps an HTTP status code to a typed error. Returns nil
// for success codes.
func ClassifyStatusCode(statusCode int, body []byte) *Error {
	if statusCode < 400 {
		return nil
	}

	e := &Error{
		StatusCode: statusCode,
		Body:       body,
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		e.Code = ErrCodeAuth
		e.Message = "authentication failed"
	case statusCode == 404:
		e.Code = ErrCodeNotFound
		e.Message = "resource not found"
	case statusCode == 429:
		e.Code = ErrCodeRateLimit
		e.Message = "rate limit exceeded"
		e.Retryable = true
	case statusCode >= 500:
		e.Code = ErrCodeServer
		e.Message = fmt.Sprintf("server error (%d)", statusCode)
		e.Retryable = true
	default:
		e.Code = ErrCodeValidation
		e.Message = fmt.Sprintf("request rejected (%d)", statusCode)
	}

	return e
}

// IsTimeout reports whether err is a transport timeout error.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsConnection reports whether err is a connection error.
func IsConnection(err error) bool {
	return hasCode(err, ErrCodeConnection)
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	return hasCode(err, ErrCodeAuth)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRateLimit reports whether err is a rate-limit error.
func IsRateLimit(err error) bool {
	return hasCode(err, ErrCodeRateLimit)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsServer reports whether err is a server error.
func IsServer(err error) bool {
	return hasCode(err, ErrCodeServer)
}

// IsRetryable reports whether err is a transport error worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
