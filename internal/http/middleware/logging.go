// README: Request logging middleware on the service logger.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/logger"
)

// Logging writes one structured line per request. Handler errors attached
// with c.Error are included.
func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
			log.Infow("http request failed", fields)
			return
		}
		log.Debugw("http request", fields)
	}
}
