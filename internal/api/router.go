package api

import (
	"net/http"
	"time"

	"github.com/eduquery/eduquery/internal/api/middleware"
	"github.com/eduquery/eduquery/internal/api/ui"
	"github.com/eduquery/eduquery/internal/config"
	"github.com/eduquery/eduquery/internal/render"
	"github.com/eduquery/eduquery/internal/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
	CookieName   string
	SessionTTL   time.Duration
	Upload       config.UploadConfig
	Page         PageConfig
}

// SetupRouter sets up the Gin router
func SetupRouter(
	store *workspace.Store,
	renderer *render.Renderer,
	cfg RouterConfig,
	logger *zap.Logger,
) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Page and assets
	if err := SetupStaticRoutes(r, renderer, cfg.Page); err != nil {
		return nil, err
	}

	// UI API, one workspace per browser session
	uiHandler := ui.NewHandler(renderer, cfg.Upload, cfg.AllowOrigins, logger)
	uiGroup := r.Group("/api/ui")
	uiGroup.Use(middleware.Session(store, cfg.CookieName, cfg.SessionTTL))
	uiHandler.RegisterRoutes(uiGroup)

	return r, nil
}
