package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/updater"
)

const UpdateTokenHeader = "X-UPDATE-TOKEN"

type UpdateHandler struct {
	updater *updater.Updater
	logger  *zap.Logger
}

func NewUpdateHandler(u *updater.Updater, logger *zap.Logger) *UpdateHandler {
	return &UpdateHandler{updater: u, logger: logger}
}

func (h *UpdateHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.updater.Version()})
}

// Run starts an update. The installer is the multipart file "installer", or is
// downloaded from the form field "url" or the configured URL.
func (h *UpdateHandler) Run(c *gin.Context) {
	token := c.GetHeader(UpdateTokenHeader)
	if token == "" {
		token = c.PostForm("token")
	}
	if err := h.updater.Authorize(token, c.RemoteIP()); err != nil {
		h.logger.Warn("rejected update request", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	req := updater.Request{InstallerURL: c.PostForm("url")}
	if fh, err := c.FormFile("installer"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable installer upload"})
			return
		}
		defer f.Close()
		req.Installer = f
	}

	// The update outlives a dropped client connection.
	res, err := h.updater.Run(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		if errors.Is(err, updater.ErrInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
