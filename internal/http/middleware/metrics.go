package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wastelink/internal/metrics"
)

// Metrics records request count and latency per method.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordRequest(c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
