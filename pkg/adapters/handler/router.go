package handler

import (
	"log/slog"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/wadjakorntonsri/trimrr/pkg/adapters/assets"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const (
	linksPath     = "/links"
	linkByIDPath  = "/links/:id"
	linkStatsPath = "/links/:id/stats"
)

type RouterDeps struct {
	Links     ports.LinkService
	Resolver  ports.Resolver
	BaseURL   string
	JWTSecret string
	Auth      *AuthHandler // Optional, nil skips the Google login routes
	AssetDir  string       // Optional, served under /assets/
	Logger    *slog.Logger
}

type EnginePlugin func(*gin.Engine)

// NewEngine creates a bare gin.Engine and applies plugins in order.
func NewEngine(plugins ...EnginePlugin) *gin.Engine {
	r := gin.New()

	for _, p := range plugins {
		p(r)
	}

	return r
}

// RegisterRoutes attaches routes/handlers to an existing engine.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	h := NewHTTPHandler(deps.Links, deps.Resolver, deps.BaseURL, deps.Logger)
	mw := NewMiddleware(deps.JWTSecret)

	r.NoRoute(h.NotFound)

	// Public Routes
	r.GET("/healthz", h.Health)
	r.GET(OpenPath+":identifier", h.Redirect)
	if deps.AssetDir != "" {
		r.StaticFS(assets.URLPrefix, http.Dir(deps.AssetDir))
	}
	if deps.Auth != nil {
		r.GET("/auth/google/login", deps.Auth.Login)
		r.GET("/auth/google/callback", deps.Auth.Callback)
		r.GET("/auth/logout", deps.Auth.Logout)
	}

	// Protected Routes
	api := r.Group("/api/v1", mw.Auth())
	{
		api.POST(linksPath, h.Create)
		api.GET(linksPath, h.List)
		api.GET(linkByIDPath, h.Get)
		api.DELETE(linkByIDPath, h.Delete)
		api.GET(linkStatsPath, h.Stats)
	}
}

func LoggerPlugin(logger *slog.Logger) EnginePlugin {
	return func(r *gin.Engine) {
		r.Use(RequestLogger(logger))
	}
}

func RecoveryPlugin() EnginePlugin {
	return func(r *gin.Engine) {
		r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
			WriteProblem(c, Problem{
				Type:   ProblemTypeInternal,
				Title:  http.StatusText(http.StatusInternalServerError),
				Status: http.StatusInternalServerError,
				Detail: DetailInternalError,
			})
		}))
	}
}

// SentryPlugin reports panics and captured errors. It must come after
// RecoveryPlugin so the repanic is recovered.
func SentryPlugin(timeout time.Duration) EnginePlugin {
	return func(r *gin.Engine) {
		r.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: timeout,
		}))
	}
}

func RequestIDPlugin() EnginePlugin {
	return func(r *gin.Engine) {
		r.Use(RequestID())
	}
}

func TimeoutPlugin(d time.Duration) EnginePlugin {
	return func(r *gin.Engine) {
		if d > 0 {
			r.Use(RequestTimeout(d))
		}
	}
}
