package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"confession-bot-backend/internal/common/logger"
)

// Logger writes one structured line per request. Paths in skip are served
// silently (probes hit them every few seconds).
func Logger(skip ...string) gin.HandlerFunc {
	silent := make(map[string]bool, len(skip))
	for _, p := range skip {
		silent[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		if silent[c.Request.URL.Path] {
			return
		}
		event := logger.Info()
		if c.Writer.Status() >= 500 {
			event = logger.Error()
		}
		event.
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("Request processed")
	}
}
