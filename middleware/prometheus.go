package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"visitor-registry/monitoring"
)

// PrometheusMetrics records request counts and latencies per route template.
// Requests that matched no route share the "unmatched" label.
func PrometheusMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		monitoring.RequestsInFlight.Inc()
		start := time.Now()

		c.Next()

		monitoring.RequestsInFlight.Dec()
		monitoring.RequestsTotal.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
		monitoring.RequestDuration.
			WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}
