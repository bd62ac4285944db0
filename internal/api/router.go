package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/internal/app"
	"github.com/charlesng35/mediacache/internal/handlers"
	"github.com/charlesng35/mediacache/internal/middleware"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/internal/proxy"
)

// Dependencies carries the handlers mounted by NewRouter.
type Dependencies struct {
	Config     *app.Config
	Media      *proxy.Handler
	Cache      *handlers.CacheHandler
	Settings   *handlers.SettingsHandler
	Monitoring *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Media == nil {
		return nil, errors.New("media handler must be provided")
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	media := r.Group("/")
	media.Use(middleware.CORS())
	media.OPTIONS("/images/*path", func(*gin.Context) {})
	deps.Media.Register(media)

	api := r.Group("/api")
	api.Use(middleware.AdminToken(cfg.Server.AdminToken))
	registerCacheRoutes(api, deps.Cache)
	registerSettingsRoutes(api, deps.Settings)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, cfg.Monitoring))

	return r, nil
}

func registerCacheRoutes(api *gin.RouterGroup, handler *handlers.CacheHandler) {
	if api == nil || handler == nil {
		return
	}

	group := api.Group("/cache")
	group.GET("/stats", handler.Stats)
	group.GET("/entries", handler.ListEntries)
	group.GET("/entries/*key", handler.GetEntry)
	group.DELETE("/entries/*key", handler.DeleteEntry)
	group.POST("/cleanup", handler.Cleanup)
}

func registerSettingsRoutes(api *gin.RouterGroup, handler *handlers.SettingsHandler) {
	if api == nil || handler == nil {
		return
	}

	api.GET("/settings", handler.Get)
	api.PATCH("/settings", handler.Update)
}
