package router

import (
	"fmt"

	"github.com/finhr/backend/internal/infrastructure/logger"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/finhr/backend/internal/interfaces/http/handler"
	"github.com/finhr/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// HealthPath is served outside the versioned API and needs no tenant
const HealthPath = "/health"

// EngineConfig holds the cross-cutting settings of the HTTP engine
type EngineConfig struct {
	Logger         *zap.Logger
	MaxBodySize    int64
	TrustedProxies []string
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	Profiling      middleware.ProfilingConfig
	// Metrics is optional; nil records nothing
	Metrics *telemetry.HTTPMetrics
	// RateLimiter is optional; nil disables throttling
	RateLimiter *limiter.Limiter
}

// Handlers are the API handlers mounted by NewEngine
type Handlers struct {
	System    *handler.SystemHandler
	Selection *handler.SelectionHandler
	Catalog   *handler.CatalogHandler
	Document  *handler.DocumentHandler
	Sequence  *handler.SequenceHandler
}

// NewEngine builds the gin engine with the middleware chain and every API
// route, and returns the mounted API routes. The request id is assigned
// before logging and tracing; the tenant is resolved inside the request span.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, []RouteInfo, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r := NewRouter(engine)
	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)
	unscoped := []string{HealthPath, r.BasePath() + HealthPath, r.BasePath() + system.Prefix()}

	tracing := cfg.Tracing
	tracing.SkipPaths = append(tracing.SkipPaths, HealthPath, r.BasePath()+HealthPath)
	profiling := cfg.Profiling
	profiling.SkipPaths = append(profiling.SkipPaths, HealthPath, r.BasePath()+HealthPath)

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(middleware.TracingWithConfig(tracing))
	engine.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		SkipPaths: unscoped,
		Required:  true,
		Logger:    log,
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.HTTPMetrics(cfg.Metrics))
	engine.Use(middleware.Profiling(profiling))
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter, log))
	}

	engine.GET(HealthPath, h.System.Health)

	routes := r.Register(apiGroups(h, system)...).Setup()
	return engine, routes, nil
}

func apiGroups(h Handlers, system *DomainGroup) []*DomainGroup {
	health := NewDomainGroup("health", HealthPath).GET("", h.System.Health)

	catalogs := NewDomainGroup("catalogs", "/catalogs").
		GET("/:kind/visible", h.Selection.Visible).
		PUT("/:kind/rows/:id", h.Catalog.SaveRow).
		DELETE("/:kind/rows/:id", h.Catalog.DeleteRow)

	selections := NewDomainGroup("selections", "/selections").
		POST("/resolve", h.Selection.Resolve)
	selections.Group("sessions", "/sessions").
		POST("", h.Selection.Open).
		GET("/:id", h.Selection.Get).
		DELETE("/:id", h.Selection.Close).
		POST("/:id/catalog", h.Selection.Refresh).
		POST("/:id/select", h.Selection.Select).
		POST("/:id/parent", h.Selection.SetParent).
		POST("/:id/hydration/complete", h.Selection.FinishHydration)

	documents := NewDomainGroup("documents", "/documents").
		GET("", h.Document.List).
		GET("/:id", h.Document.Get).
		GET("/:id/edit", h.Document.Edit).
		POST("/:id/post", h.Document.Post)
	documents.Group("drafts", "/drafts").
		POST("", h.Document.OpenDraft).
		GET("/:id", h.Document.GetDraft).
		DELETE("/:id", h.Document.Discard).
		PATCH("/:id/header", h.Document.PatchHeader).
		POST("/:id/lines", h.Document.AddLine).
		PUT("/:id/lines", h.Document.EditLine).
		DELETE("/:id/lines", h.Document.RemoveLine).
		GET("/:id/evaluation", h.Document.Evaluation).
		POST("/:id/save", h.Document.Save)

	sequences := NewDomainGroup("sequences", "/sequences").
		PUT("/:scope", h.Sequence.Configure).
		GET("/:scope/peek", h.Sequence.Peek).
		POST("/:scope/next", h.Sequence.Next)

	return []*DomainGroup{health, system, catalogs, selections, documents, sequences}
}
