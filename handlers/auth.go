package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/middleware"
	"visitor-registry/models"
)

type AuthHandler struct {
	users  models.UserRepository
	logger *zap.Logger
}

func NewAuthHandler(users models.UserRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	ID       uint   `json:"id"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Username and password required"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		internalError(c, err)
		return
	}
	if user == nil || !user.CheckPassword(req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Credenciales inválidas"})
		return
	}

	h.issue(c, user)
}

// Logout revokes every token of the current user.
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.users.RevokeTokens(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("failed to revoke tokens", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Current(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"username": user.DisplayName(), "id": user.ID})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
		return
	}

	user := &models.User{Username: strings.TrimSpace(req.Username), FullName: strings.TrimSpace(req.FullName)}
	if err := user.SetPassword(req.Password); err != nil {
		internalError(c, err)
		return
	}
	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, models.ErrUsernameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username already exists"})
			return
		}
		internalError(c, err)
		return
	}

	h.logger.Info("user registered", zap.String("username", user.Username), zap.Uint("user_id", user.ID))
	h.issue(c, user)
}

func (h *AuthHandler) issue(c *gin.Context, user *models.User) {
	token, err := h.users.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token.Key, Username: user.DisplayName(), ID: user.ID})
}
