// Package router 提供 HTTP 路由配置
package router

import (
	"kb-ai-api/internal/config"
	"kb-ai-api/internal/interfaces/http/handler"
	"kb-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health *handler.HealthHandler
	Search *handler.SearchHandler
	Index  *handler.IndexHandler
	Chat   *handler.ChatHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	if r.handlers.Health != nil {
		r.engine.GET("/health", r.handlers.Health.Health)
		r.engine.GET("/ready", r.handlers.Health.Ready)
		r.engine.GET("/live", r.handlers.Health.Live)
	}

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组：组织隔离 + 按组织限流
	v1 := r.engine.Group("/v1")
	v1.Use(middleware.Org(middleware.OrgConfig{}))
	v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             r.cfg.Security.RateLimit.Burst,
	}, r.limiter))

	// 检索
	if r.handlers.Search != nil {
		v1.POST("/search", r.handlers.Search.Search)
		v1.POST("/search/semantic", r.handlers.Search.Semantic)
	}

	// 索引生命周期
	if r.handlers.Index != nil {
		v1.POST("/pages/:pid/reindex", r.handlers.Index.Reindex)
		v1.DELETE("/pages/:pid/index", r.handlers.Index.DeleteIndex)
		v1.GET("/pages/:pid/chunks", r.handlers.Index.ListChunks)
		v1.POST("/index/rebuild", r.handlers.Index.Rebuild)
	}

	// 问答
	if r.handlers.Chat != nil {
		v1.POST("/chat", r.handlers.Chat.Chat)
		v1.POST("/chat/stream", r.handlers.Chat.ChatStream)
	}
}
