package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"news-stream-service/metrics"
)

const serviceName = "news-stream-service"

// Prometheus records request counts and latencies for every route. The path
// label uses the route template (e.g. /api/v1/subscriptions/:user_id) so
// per-user paths and unmatched requests do not blow up label cardinality.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HttpRequestsTotal.WithLabelValues(
			c.Request.Method, path, status, serviceName).Inc()
		metrics.HttpRequestDuration.WithLabelValues(
			c.Request.Method, path, serviceName).Observe(time.Since(start).Seconds())
	}
}
