package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visitor-registry/models"
)

type OptionsHandler struct {
	repo models.VisitRepository
}

func NewOptionsHandler(repo models.VisitRepository) *OptionsHandler {
	return &OptionsHandler{repo: repo}
}

func (h *OptionsHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, models.Pairs(models.Categories))
}

func (h *OptionsHandler) Institutions(c *gin.Context) {
	c.JSON(http.StatusOK, models.Pairs(models.Institutions))
}

func (h *OptionsHandler) Regions(c *gin.Context) {
	regions, err := h.repo.Regions(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	c.JSON(http.StatusOK, regions)
}
