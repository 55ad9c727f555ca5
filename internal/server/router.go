package server

import (
	"context"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/abduss/imagehost/internal/notify"
	"github.com/abduss/imagehost/internal/reconcile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type regionResolver interface {
	Region(ctx context.Context) (string, error)
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	Log         *zap.Logger
	DB          pinger
	ObjectStore pinger
	Region      regionResolver
	Images      *image.Service
	Topic       *notify.Topic
	Reconcile   *reconcile.Handler
	Tokens      *auth.Tokens
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(deps.Log))
	router.Use(metrics.Middleware())
	router.MaxMultipartMemory = 8 << 20

	registerHealthRoutes(router, deps)
	registerIndexRoute(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	if deps.Images != nil {
		image.RegisterRoutes(router, deps.Images, deps.Log.Named("image"))
	}
	if deps.Topic != nil {
		notify.RegisterRoutes(router, deps.Topic, deps.Log.Named("notify"))
	}

	if deps.Tokens != nil && deps.Reconcile != nil {
		admin := router.Group("/admin")
		admin.Use(auth.Middleware(deps.Tokens))
		registerAdminRoutes(admin, deps)
	}

	return router
}
