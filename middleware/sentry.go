package middleware

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

var filteredHeaders = []string{"Authorization", "Cookie", "X-Update-Token"}

// SentryMiddleware runs each request on its own clone of the global hub and
// traces it as a transaction. It is a no-op when Sentry is not initialized.
func SentryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		parent := sentry.CurrentHub()
		if parent == nil || parent.Client() == nil {
			c.Next()
			return
		}

		hub := parent.Clone()
		route := routeOf(c)
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetContext("request", map[string]interface{}{
				"method":  c.Request.Method,
				"url":     c.Request.URL.String(),
				"headers": redactHeaders(c.Request.Header),
			})
			scope.SetTag("http.method", c.Request.Method)
			scope.SetTag("http.route", route)
			if id := c.Param("id"); id != "" {
				scope.SetTag("visit_id", id)
			}
		})

		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		tx := sentry.StartTransaction(ctx, c.Request.Method+" "+route,
			sentry.ContinueFromRequest(c.Request),
			sentry.WithOpName("http.server"),
		)
		c.Request = c.Request.WithContext(tx.Context())

		c.Next()

		tx.Status = sentry.HTTPtoSpanStatus(c.Writer.Status())
		tx.Finish()
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

func redactHeaders(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
		for _, name := range filteredHeaders {
			if strings.EqualFold(k, name) {
				out[k] = "[FILTERED]"
				break
			}
		}
	}
	return out
}
