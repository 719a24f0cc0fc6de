// Package http serves the watch-mode status surface: probes, Prometheus
// metrics and the last decomposition summary.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/meshdecomp/internal/interfaces/http/handlers"
	"github.com/turtacn/meshdecomp/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies.
type RouterConfig struct {
	Mode string // gin mode: debug | release | test

	HealthHandler  *handlers.HealthHandler
	SummaryHandler *handlers.SummaryHandler

	Logger           logging.Logger
	LoggingConfig    *middleware.LoggingConfig
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the gin engine.  Nil handlers leave their routes
// unregistered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if cfg.Logger != nil {
		lc := middleware.DefaultLoggingConfig()
		if cfg.LoggingConfig != nil {
			lc = *cfg.LoggingConfig
		}
		r.Use(middleware.RequestLogging(cfg.Logger, lc))
	}

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if h := cfg.SummaryHandler; h != nil {
		api.GET("/summary", h.Get)
		api.GET("/summary/counts", h.Counts)
	}
	return r
}
