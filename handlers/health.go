package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports "ok" when every probe answers and "degraded" with 503 otherwise.
// Nil probes (disabled infrastructure) are reported as "disabled".
func Health(version string, probes map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		details := gin.H{}
		for name, p := range probes {
			switch {
			case p == nil:
				details[name] = "disabled"
			case p.Ping(ctx) != nil:
				details[name] = "unavailable"
				status = http.StatusServiceUnavailable
			default:
				details[name] = "available"
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "version": version, "details": details})
	}
}
