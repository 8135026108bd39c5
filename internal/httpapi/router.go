// Package httpapi exposes the treatment service over REST.
package httpapi

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/miradorstack/water-ai/internal/config"
	"github.com/miradorstack/water-ai/internal/services"
)

// Options configures the router.
type Options struct {
	Logger    *slog.Logger
	Service   *services.TreatmentService
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	Version   string
}

// NewRouter builds the gin engine with every /api/v1 route.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	router.Use(cors.New(corsConfig(opts.HTTP.AllowedOrigins)))

	h := &handlers{logger: logger, service: opts.Service, version: opts.Version}

	v1 := router.Group("/api/v1")
	v1.GET("/health", h.health)
	if opts.RateLimit.Enabled {
		v1.Use(NewRateLimiter(opts.RateLimit.Requests, opts.RateLimit.Window).Middleware())
	}
	v1.POST("/ingest", h.ingest)
	v1.POST("/predict", h.predict)
	v1.POST("/optimize", h.optimize)
	v1.GET("/models", h.listModels)
	v1.POST("/models/reload", h.reloadModels)
	v1.GET("/twin_status", h.twinStatus)
	v1.GET("/sensors/recent", h.recentSensors)
	v1.GET("/predictions/recent", h.recentPredictions)
	v1.POST("/report", h.report)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
