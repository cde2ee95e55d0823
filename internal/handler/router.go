package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/auth"
	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
	"github.com/nicekwell/easyweb3-sentiment/internal/ratelimit"
)

type EngineOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Manager
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	JWT     auth.JWT
	Policy  auth.Policy
	// Swagger mounts the API docs UI at /swagger.
	Swagger bool

	Health    *HealthHandler
	Sentiment *SentimentHandler
	Admin     *AdminHandler
	Meme      *MemeHandler
	Audit     *AuditHandler
}

// NewEngine assembles the HTTP surface. /metrics is mounted only when Metrics is set,
// and /api/v1/admin only when Admin is.
func NewEngine(opts EngineOptions) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(AccessLog(opts.Logger, opts.Metrics))

	if opts.Health != nil {
		opts.Health.Register(engine)
	}
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.Swagger {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := engine.Group("/api/v1")
	if opts.Limiter != nil {
		api.Use(RateLimit(opts.Limiter, opts.Logger))
	}
	if opts.Sentiment != nil {
		opts.Sentiment.Register(api)
	}
	if opts.Meme != nil {
		opts.Meme.Register(api)
	}
	if opts.Audit != nil {
		opts.Audit.Register(api)
	}
	if opts.Admin != nil {
		opts.Admin.Register(api.Group("/admin", RequireAdmin(opts.JWT, opts.Policy)))
	}
	return engine
}
