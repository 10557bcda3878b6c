// Package middleware holds the Gin middleware used by the gateway:
// panic recovery, request ids, structured request logging, CORS, body
// size limits, per-key rate limiting, bearer-JWT auth and tracing.
package middleware

import "github.com/gin-gonic/gin"

// claimsKey is where Auth stores validated JWT claims on the context.
const claimsKey = "auth_claims"

// RequestIDKey is where RequestID stores the request id on the context.
const RequestIDKey = "request_id"

// GetRequestID returns the request id injected by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
