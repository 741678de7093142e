package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/export"
	"visitor-registry/middleware"
	"visitor-registry/models"
	"visitor-registry/monitoring"
	"visitor-registry/reports"
)

// ReportHandler serves the aggregate reports and their document exports.
// Reports honour the municipio, tipo_visita and referir_a filters.
type ReportHandler struct {
	repo   models.VisitRepository
	cache  *ReportCache
	opts   export.Options
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func NewReportHandler(repo models.VisitRepository, cache *ReportCache, opts export.Options, loc *time.Location, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		repo:   repo,
		cache:  cache,
		opts:   opts,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (h *ReportHandler) Categories(c *gin.Context) {
	period := reports.ParsePeriod(c.DefaultQuery("periodo", string(reports.PeriodMonth)))
	h.serve(c, "tramites", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Categories(visits, period, now)
	})
}

func (h *ReportHandler) Monthly(c *gin.Context) {
	h.serve(c, "visitas-mensuales", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Monthly(visits, now)
	})
}

func (h *ReportHandler) Weekly(c *gin.Context) {
	h.serve(c, "tendencia-semanal", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Weekly(visits, now)
	})
}

func (h *ReportHandler) Summary(c *gin.Context) {
	h.serve(c, "estadisticas", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Summarize(visits, now)
	})
}

func (h *ReportHandler) Daily(c *gin.Context) {
	days := reports.ParseDays(c.DefaultQuery("days", c.Query("dias")))
	h.serve(c, "diario", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Daily(visits, days, now)
	})
}

func (h *ReportHandler) Referrals(c *gin.Context) {
	period := reports.ParsePeriod(c.DefaultQuery("periodo", string(reports.PeriodMonth)))
	h.serve(c, "referidos", func(visits []models.Visit, now time.Time) interface{} {
		return reports.Referrals(visits, period, now)
	})
}

// ReferralSnapshot always covers the whole store; request filters are ignored.
func (h *ReportHandler) ReferralSnapshot(c *gin.Context) {
	now := h.now().In(h.loc)
	name := "snapshot-referidos:" + now.Format("2006-01-02")
	body, key, ok := h.cache.Lookup(c.Request.Context(), name)
	if ok {
		c.Data(http.StatusOK, gin.MIMEJSON, body)
		return
	}

	visits, err := h.repo.QueryVisits(c.Request.Context(), models.VisitFilter{})
	if err != nil {
		internalError(c, err)
		return
	}
	h.writeJSON(c, key, reports.Snapshot(visits, now))
}

func (h *ReportHandler) ExportPDF(c *gin.Context) {
	h.export(c, "pdf", export.ContentTypePDF, export.PDF)
}

func (h *ReportHandler) ExportExcel(c *gin.Context) {
	h.export(c, "xlsx", export.ContentTypeExcel, export.Excel)
}

type renderFunc func(io.Writer, reports.Bundle, export.Options) error

// export renders the whole document into memory first, so a failure never
// leaves a partial download.
func (h *ReportHandler) export(c *gin.Context, ext, contentType string, render renderFunc) {
	now := h.now().In(h.loc)
	period := reports.ParsePeriod(c.DefaultQuery("periodo", string(reports.PeriodMonth)))

	visits, err := h.repo.QueryVisits(c.Request.Context(), models.ParseReportFilter(c.Request.URL.Query()))
	if err != nil {
		monitoring.ExportsTotal.WithLabelValues(ext, "error").Inc()
		internalError(c, err)
		return
	}

	var buf bytes.Buffer
	bundle := reports.Build(visits, period, now, middleware.Actor(c))
	if err := render(&buf, bundle, h.opts); err != nil {
		monitoring.ExportsTotal.WithLabelValues(ext, "error").Inc()
		h.logger.Error("failed to render report",
			zap.String("format", ext),
			zap.String("period", string(period)),
			zap.Error(err),
		)
		internalError(c, fmt.Errorf("render %s report: %w", ext, err))
		return
	}

	monitoring.ExportsTotal.WithLabelValues(ext, "ok").Inc()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(period, now, ext)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// serve answers from the report cache when possible. The cache key carries the
// report name, the query string and the current date.
func (h *ReportHandler) serve(c *gin.Context, name string, build func([]models.Visit, time.Time) interface{}) {
	now := h.now().In(h.loc)
	name = fmt.Sprintf("%s:%s:%s", name, now.Format("2006-01-02"), c.Request.URL.Query().Encode())
	body, key, ok := h.cache.Lookup(c.Request.Context(), name)
	if ok {
		c.Data(http.StatusOK, gin.MIMEJSON, body)
		return
	}

	visits, err := h.repo.QueryVisits(c.Request.Context(), models.ParseReportFilter(c.Request.URL.Query()))
	if err != nil {
		internalError(c, err)
		return
	}
	h.writeJSON(c, key, build(visits, now))
}

func (h *ReportHandler) writeJSON(c *gin.Context, key string, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		internalError(c, err)
		return
	}
	h.cache.Store(c.Request.Context(), key, body)
	c.Data(http.StatusOK, gin.MIMEJSON, body)
}
