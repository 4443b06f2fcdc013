package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/api/handlers"
	"github.com/toseeq44/automation-fb-sub003/api/middleware"
	"github.com/toseeq44/automation-fb-sub003/internal/app"
	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
)

// Deps bundles everything the HTTP layer serves. Archive may be nil when
// the run archive is disabled; Hub must be the same hub wired into the
// engine's event sink.
type Deps struct {
	Engine  *app.Engine
	Archive *infrastructure.RunArchive
	Tracker domain.DownloadTracker
	Hub     *handlers.EventHub
	LogsDir string
	Version string
	Logger  *zap.Logger
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(deps.Engine, deps.Version)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		runHandler := handlers.NewRunHandler(deps.Engine, deps.Archive, deps.Logger)
		runs := v1.Group("/runs")
		{
			runs.POST("", runHandler.StartRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/active", runHandler.ActiveRun)
			runs.POST("/active/cancel", runHandler.CancelRun)
			runs.GET("/:id", runHandler.GetRun)
			runs.GET("/:id/failures", runHandler.RunFailures)
		}

		v1.POST("/extract", runHandler.Extract)

		sourceHandler := handlers.NewSourceHandler(deps.Tracker)
		v1.GET("/sources", sourceHandler.ListSources)

		logHandler := handlers.NewLogHandler(deps.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}

		v1.GET("/events", deps.Hub.HandleWebSocket)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
