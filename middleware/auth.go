package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"visitor-registry/models"
)

const (
	userKey = "user"

	// ActorHeader names the operator when no user is authenticated.
	ActorHeader = "X-Usuario"
)

type UserLookup interface {
	GetUserByToken(ctx context.Context, key string) (*models.User, error)
}

// TokenFromHeader extracts the key of "Token <key>" or "Bearer <key>".
func TokenFromHeader(header string) string {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(key)
}

// Authenticate resolves the request's token to a user. Requests without a token
// pass through anonymously; an unknown token is rejected with 401.
func Authenticate(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := TokenFromHeader(c.GetHeader("Authorization"))
		if key == "" {
			c.Next()
			return
		}

		user, err := users.GetUserByToken(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireUser rejects anonymous requests when required is true.
func RequireUser(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required && CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// Actor names who performed the request: the authenticated user, else the
// X-Usuario header.
func Actor(c *gin.Context) string {
	if user := CurrentUser(c); user != nil {
		return user.DisplayName()
	}
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}
