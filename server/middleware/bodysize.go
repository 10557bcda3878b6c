package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/uniai/util"
)

const defaultMaxBodySize = 1 << 20 // 1MB; chat payloads are small

// BodySizeLimit caps the request body at the given size string ("1MB",
// "512KB"). Oversized bodies fail the handler's read with a 413.
func BodySizeLimit(maxSize string) gin.HandlerFunc {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, size)
		c.Next()
	}
}
