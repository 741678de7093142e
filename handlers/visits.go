package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/middleware"
	"visitor-registry/models"
	"visitor-registry/monitoring"
	"visitor-registry/reports"
	"visitor-registry/utils"
)

type VisitHandler struct {
	repo        models.Repository
	events      *EventPublisher
	cache       *ReportCache
	search      utils.ElasticsearchClient
	searchIndex string
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

func NewVisitHandler(repo models.Repository, events *EventPublisher, cache *ReportCache, loc *time.Location, logger *zap.Logger) *VisitHandler {
	useJSONFieldNames()
	return &VisitHandler{
		repo:   repo,
		events: events,
		cache:  cache,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// WithSearch enables the search index for SearchVisits.
func (h *VisitHandler) WithSearch(es utils.ElasticsearchClient, index string) *VisitHandler {
	h.search = es
	h.searchIndex = index
	return h
}

func (h *VisitHandler) ListVisits(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := models.ParseVisitFilter(c.Request.URL.Query())
	visits, total, err := h.repo.ListVisits(c.Request.Context(), filter, limit, offset)
	if err != nil {
		internalError(c, err)
		return
	}

	results, err := h.render(c.Request.Context(), visits)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": results})
}

func (h *VisitHandler) GetVisit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	visit, err := h.repo.GetVisitByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respond(c, http.StatusOK, visit)
}

func (h *VisitHandler) CreateVisit(c *gin.Context) {
	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	visit := &models.Visit{}
	req.apply(visit)
	if err := h.repo.CreateVisit(c.Request.Context(), visit, middleware.Actor(c)); err != nil {
		h.writeError(c, err)
		return
	}

	monitoring.VisitsCreated.Inc()
	h.afterWrite(c.Request.Context(), models.EventVisitCreated, visit)
	h.respond(c, http.StatusCreated, visit)
}

// UpdateVisit replaces every editable field (PUT).
func (h *VisitHandler) UpdateVisit(c *gin.Context) {
	var req VisitRequest
	h.update(c, &req, func(v *models.Visit) { req.apply(v) })
}

// PatchVisit changes only the fields present in the body (PATCH).
func (h *VisitHandler) PatchVisit(c *gin.Context) {
	var patch VisitPatch
	h.update(c, &patch, func(v *models.Visit) { patch.apply(v) })
}

func (h *VisitHandler) update(c *gin.Context, body interface{}, apply func(*models.Visit)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(body); err != nil {
		validationFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	visit, err := h.repo.GetVisitByID(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	apply(visit)
	if err := h.repo.UpdateVisit(ctx, visit, middleware.Actor(c)); err != nil {
		h.writeError(c, err)
		return
	}

	h.afterWrite(ctx, models.EventVisitUpdated, visit)
	h.respond(c, http.StatusOK, visit)
}

// RegisterExit closes the visit. Closing an already completed visit returns it unchanged.
func (h *VisitHandler) RegisterExit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	visit, changed, err := h.repo.CloseVisit(ctx, id, middleware.Actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if changed {
		monitoring.VisitsClosed.Inc()
		h.afterWrite(ctx, models.EventVisitClosed, visit)
	}
	h.respond(c, http.StatusOK, visit)
}

func (h *VisitHandler) Dashboard(c *gin.Context) {
	visits, err := h.repo.QueryVisits(c.Request.Context(), models.VisitFilter{})
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports.Dashboard(visits, h.now().In(h.loc)))
}

// PersonHistory returns the registry entry of a national ID with all its visits.
func (h *VisitHandler) PersonHistory(c *gin.Context) {
	ctx := c.Request.Context()
	person, err := h.repo.GetPersonByNationalID(ctx, c.Param("cedula"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(c, "person")
			return
		}
		internalError(c, err)
		return
	}

	visits, err := h.repo.ListVisitsByPerson(ctx, person.ID)
	if err != nil {
		internalError(c, err)
		return
	}
	counts := map[uint]int64{person.ID: int64(len(visits))}
	results := make([]VisitResponse, 0, len(visits))
	for i := range visits {
		results = append(results, toVisitResponse(&visits[i], counts, h.loc))
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          person.ID,
		"cedula":      person.NationalID,
		"nombre":      person.Name,
		"telefono":    person.Phone,
		"creado_en":   person.CreatedAt.In(h.loc),
		"visit_count": len(visits),
		"visitas":     results,
	})
}

func (h *VisitHandler) afterWrite(ctx context.Context, event string, visit *models.Visit) {
	h.cache.Invalidate(ctx)
	h.events.Publish(event, visit)
}

func (h *VisitHandler) render(ctx context.Context, visits []models.Visit) ([]VisitResponse, error) {
	counts, err := h.repo.CountVisitsByPerson(ctx, personIDs(visits))
	if err != nil {
		return nil, err
	}
	results := make([]VisitResponse, 0, len(visits))
	for i := range visits {
		results = append(results, toVisitResponse(&visits[i], counts, h.loc))
	}
	return results, nil
}

func (h *VisitHandler) respond(c *gin.Context, status int, visit *models.Visit) {
	results, err := h.render(c.Request.Context(), []models.Visit{*visit})
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(status, results[0])
}

func (h *VisitHandler) writeError(c *gin.Context, err error) {
	switch {
	case models.IsValidationError(err):
		validationFailed(c, err)
	case errors.Is(err, models.ErrNotFound):
		notFound(c, "visit")
	default:
		internalError(c, err)
	}
}
