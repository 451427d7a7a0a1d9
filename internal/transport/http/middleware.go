package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimitMiddleware caps request bodies at limit bytes.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = stdhttp.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
