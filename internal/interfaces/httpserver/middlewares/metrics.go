package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rehearsal-api/internal/infrastructure/metrics"
)

// Metrics records HTTP request metrics after each request completes.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		metrics.RecordRequest(c.Request.Method, path, status, duration)
	}
}
