package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/utils"
)

// ErrorHandler logs and reports every error a handler attached with c.Error.
// When the handler wrote nothing, the client gets a generic 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		status := c.Writer.Status()
		if !c.Writer.Written() {
			status = http.StatusInternalServerError
			c.JSON(status, gin.H{"error": "internal server error"})
		}

		actor := Actor(c)
		for _, ginErr := range c.Errors {
			logger.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Int("status", status),
				zap.String("actor", actor),
				zap.Error(ginErr.Err),
			)
			utils.CaptureError(c.Request.Context(), ginErr.Err, actor, map[string]interface{}{
				"endpoint": c.Request.URL.Path,
				"method":   c.Request.Method,
				"status":   status,
			})
		}
	}
}
