package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/uniai/logger"
)

// RequestLogger logs every completed request with method, path, status and
// latency. Health and info probes are skipped to keep logs quiet.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProbePath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": latency.Milliseconds(),
			"client":      c.ClientIP(),
		}
		if id := GetRequestID(c); id != "" {
			fields["request_id"] = id
		}
		if latency > 500*time.Millisecond {
			fields["slow"] = true
		}

		logByStatus(log, fields, c.Writer.Status())
	}
}

func isProbePath(path string) bool {
	switch path {
	case "/health", "/info", "/metrics":
		return true
	}
	return false
}

// logByStatus picks the log level from the response status: 5xx is an
// error, 4xx a warning, everything else debug.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	logErr := logger.Error
	logWarn := logger.Warn
	logDebug := logger.Debug
	if log != nil {
		logErr = log.Error
		logWarn = log.Warn
		logDebug = log.Debug
	}

	switch {
	case status >= 500:
		logErr("request completed", fields)
	case status >= 400:
		logWarn("request completed", fields)
	default:
		logDebug("request completed", fields)
	}
}
