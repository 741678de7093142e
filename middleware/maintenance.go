package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaintenanceGate answers 503 while busy reports true, except under exemptPrefix.
func MaintenanceGate(busy func() bool, exemptPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if busy() && !strings.HasPrefix(c.Request.URL.Path, exemptPrefix) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "update in progress"})
			return
		}
		c.Next()
	}
}
