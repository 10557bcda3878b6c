package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors (never retryable, raised before any network call)
const (
	// ErrCodeConfiguration indicates invalid or missing configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
)

// Provider errors
const (
	// ErrCodeAuthentication indicates the provider rejected the credentials.
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	// ErrCodeRateLimited indicates the provider is throttling the client.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeAPI indicates any other provider-reported failure.
	ErrCodeAPI ErrorCode = "API_ERROR"
)

// Transport errors
const (
	// ErrCodeTimeout indicates the round trip timed out or the connection failed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConfiguration:  false,
	ErrCodeAuthentication: false,
	ErrCodeRateLimited:    true,
	ErrCodeAPI:            false,
	ErrCodeTimeout:        true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
// API errors are retryable only case by case (5xx yes, 4xx no), so the code
// alone reports false; constructors set Retryable from the HTTP status.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
