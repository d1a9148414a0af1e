package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/minqi/snaplore/internal/api/handler"
	"github.com/minqi/snaplore/internal/api/middleware"
	"github.com/minqi/snaplore/internal/repository"
	"github.com/minqi/snaplore/internal/service"
)

// RouterDeps carries everything the router wires into handlers.
type RouterDeps struct {
	DB          *gorm.DB
	Index       repository.VectorIndex
	Screenshots *service.ScreenshotService
	Retrieval   *service.RetrievalService
	Enricher    *service.EnrichmentService
	Mode        string
	CORS        middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(deps *RouterDeps) *gin.Engine {
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Index)
	screenshotHandler := handler.NewScreenshotHandler(deps.Screenshots)
	searchHandler := handler.NewSearchHandler(deps.Retrieval)
	adminHandler := handler.NewAdminHandler(deps.Enricher, deps.Screenshots)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireUser())
	{
		// Screenshots
		v1.POST("/screenshots", screenshotHandler.Upload)
		v1.GET("/screenshots", screenshotHandler.List)
		v1.GET("/screenshots/:id", screenshotHandler.Get)
		v1.PATCH("/screenshots/:id", screenshotHandler.Update)
		v1.POST("/screenshots/:id/refresh-url", screenshotHandler.RefreshURL)
		v1.DELETE("/screenshots/:id", screenshotHandler.Delete)

		// Search
		v1.POST("/search", searchHandler.Search)
		v1.GET("/search", searchHandler.SearchGet)
		v1.POST("/answer", searchHandler.Answer)
		v1.GET("/queries", searchHandler.History)

		// Ops
		v1.GET("/stats", adminHandler.Stats)
		v1.POST("/admin/requeue", adminHandler.Requeue)
		v1.GET("/admin/status", adminHandler.Status)
	}

	return r
}
