package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitor-registry/middleware"
	"visitor-registry/models"
	"visitor-registry/monitoring"
)

// RouterConfig lists the handlers mounted by NewRouter. Update may be nil, in
// which case the update endpoints are not mounted.
type RouterConfig struct {
	Users        models.UserRepository
	Visits       *VisitHandler
	Reports      *ReportHandler
	Auth         *AuthHandler
	Options      *OptionsHandler
	Update       *UpdateHandler
	Health       gin.HandlerFunc
	Busy         func() bool
	AuthRequired bool
	Sentry       bool
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger), middleware.PrometheusMetrics())
	if cfg.Sentry {
		router.Use(middleware.SentryMiddleware())
	}
	router.Use(middleware.ErrorHandler(cfg.Logger))

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	busy := cfg.Busy
	if busy == nil {
		busy = func() bool { return false }
	}

	api := router.Group("/api")
	api.Use(middleware.MaintenanceGate(busy, "/api/update"), middleware.Authenticate(cfg.Users))
	{
		if cfg.Health != nil {
			api.GET("/health", cfg.Health)
		}

		write := middleware.RequireUser(cfg.AuthRequired)
		signedIn := middleware.RequireUser(true)

		visits := api.Group("/visitantes")
		{
			visits.GET("", cfg.Visits.ListVisits)
			visits.POST("", write, cfg.Visits.CreateVisit)
			visits.GET("/:id", cfg.Visits.GetVisit)
			visits.PUT("/:id", write, cfg.Visits.UpdateVisit)
			visits.PATCH("/:id", write, cfg.Visits.PatchVisit)
			visits.POST("/:id/registrar-salida", write, cfg.Visits.RegisterExit)
		}
		api.GET("/busqueda/visitantes", cfg.Visits.SearchVisits)
		api.GET("/personas/:cedula", cfg.Visits.PersonHistory)
		api.GET("/dashboard/estadisticas", cfg.Visits.Dashboard)

		reportRoutes := api.Group("/reportes")
		{
			reportRoutes.GET("/tramites", cfg.Reports.Categories)
			reportRoutes.GET("/visitas-mensuales", cfg.Reports.Monthly)
			reportRoutes.GET("/tendencia-semanal", cfg.Reports.Weekly)
			reportRoutes.GET("/estadisticas", cfg.Reports.Summary)
			reportRoutes.GET("/diario", cfg.Reports.Daily)
			reportRoutes.GET("/referidos", cfg.Reports.Referrals)
			reportRoutes.GET("/exportar/pdf", cfg.Reports.ExportPDF)
			reportRoutes.GET("/exportar/excel", cfg.Reports.ExportExcel)
		}
		api.GET("/estadisticas/referidos", cfg.Reports.ReferralSnapshot)

		options := api.Group("/opciones")
		{
			options.GET("/tipos-visita", cfg.Options.Categories)
			options.GET("/instituciones", cfg.Options.Institutions)
			options.GET("/municipios", cfg.Options.Regions)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/login", cfg.Auth.Login)
			auth.POST("/register", cfg.Auth.Register)
			auth.POST("/logout", signedIn, cfg.Auth.Logout)
			auth.GET("/current", signedIn, cfg.Auth.Current)
		}

		if cfg.Update != nil {
			api.GET("/update/version", cfg.Update.Version)
			api.POST("/update/run", cfg.Update.Run)
		}
	}

	return router
}
