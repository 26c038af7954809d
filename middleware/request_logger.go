package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"caratdash/api/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		started := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(started),
		}
		if c.Writer.Status() >= 500 {
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request served", fields...)
	}
}
