package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/models"
)

// searchFields are the indexed document fields matched by a free-text query.
var searchFields = []string{"nombre^2", "cedula^3", "telefono", "municipio", "parroquia"}

// SearchVisits looks visits up in the search index and loads them from the store
// in relevance order. Without an index, or when the index fails, it falls back
// to the store's text filter.
func (h *VisitHandler) SearchVisits(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit, _, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.search != nil {
		visits, err := h.searchIndexed(ctx, q, limit)
		if err == nil {
			h.writeSearchResults(c, visits, int64(len(visits)), "elasticsearch")
			return
		}
		h.logger.Warn("search index unavailable, falling back to database", zap.String("query", q), zap.Error(err))
	}

	visits, total, err := h.repo.ListVisits(ctx, models.VisitFilter{Search: q}, limit, 0)
	if err != nil {
		internalError(c, err)
		return
	}
	h.writeSearchResults(c, visits, total, "database")
}

func (h *VisitHandler) searchIndexed(ctx context.Context, q string, limit int) ([]models.Visit, error) {
	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": searchFields,
			},
		},
	}
	hits, err := h.search.Search(ctx, h.searchIndex, query)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(hits))
	for _, hit := range hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return h.repo.GetVisitsByIDs(ctx, ids)
}

func (h *VisitHandler) writeSearchResults(c *gin.Context, visits []models.Visit, total int64, source string) {
	results, err := h.render(c.Request.Context(), visits)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": results, "source": source})
}
