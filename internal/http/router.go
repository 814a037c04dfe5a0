// Package httpapi wires the HTTP transport (Gin) to the story service,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation ids, redacted logging, panic recovery, metrics, CORS,
// security headers, rate limiting, and static serving of generated assets.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP; generation requests are expensive)
//  8. CORS and security headers
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
	"github.com/aryaman108/Vedic-Story-Generator/internal/config"
	"github.com/aryaman108/Vedic-Story-Generator/internal/domain"
	"github.com/aryaman108/Vedic-Story-Generator/internal/http/handlers"
	"github.com/aryaman108/Vedic-Story-Generator/internal/http/middleware"
	"github.com/aryaman108/Vedic-Story-Generator/internal/repo"
	"github.com/aryaman108/Vedic-Story-Generator/internal/services"
)

// storyRepoShim adapts the repository free functions to the
// services.StoryRepo interface expected by StoryService. This keeps services
// decoupled from the concrete repo package while reusing its functions.
type storyRepoShim struct{}

func (storyRepoShim) CreateStory(ctx context.Context, db *gorm.DB, s *domain.Story) error {
	return repo.CreateStory(ctx, db, s)
}

func (storyRepoShim) GetStory(ctx context.Context, db *gorm.DB, id string) (*domain.Story, error) {
	return repo.GetStory(ctx, db, id)
}

func (storyRepoShim) FindStoryByPromptHash(ctx context.Context, db *gorm.DB, hash string) (*domain.Story, error) {
	return repo.FindStoryByPromptHash(ctx, db, hash)
}

func (storyRepoShim) CountStories(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountStories(ctx, db)
}

func (storyRepoShim) ListStoriesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Story, error) {
	return repo.ListStoriesPage(ctx, db, offset, limit)
}

func (storyRepoShim) UpdateStoryStage(ctx context.Context, db *gorm.DB, id, stage string, fields map[string]any) error {
	return repo.UpdateStoryStage(ctx, db, id, stage, fields)
}

func (storyRepoShim) DeleteStory(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteStory(ctx, db, id)
}

func (storyRepoShim) StoriesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.StoriesStats(ctx, db)
}

// Deps carries the generation pipeline dependencies constructed by the
// entrypoint: provider clients, asset layout, and the service logger.
type Deps struct {
	Text   services.TextGenerator
	Images services.SceneIllustrator
	Audio  services.Narrator
	Video  services.VideoComposer
	Assets assets.Resolver
	Log    zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: health and metrics endpoints, the static asset tree, and the
// versioned story API.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; the only body is a short prompt)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Compress JSON responses; media is already compressed, and the
	// Prometheus handler negotiates its own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/assets/.*`, `^/metrics$`})))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Generated media served straight off disk.
	r.Static(assets.PublicPrefix, deps.Assets.Root)

	// Dependency injection: service ← repo/db/pipeline
	svc := services.NewStoryService(db, storyRepoShim{}, deps.Text, deps.Images, deps.Audio, deps.Video, deps.Assets, deps.Log)
	svc.MaxPromptRunes = 2000
	h := handlers.New(svc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/stories", h.GenerateStory)
		api.GET("/stories", h.ListStories)
		api.GET("/stories/:id", h.GetStory)
		api.GET("/stories/:id/download", h.DownloadStory)
		api.DELETE("/stories/:id", h.DeleteStory)
	}
}

// limitBody caps the request body size using http.MaxBytesReader; oversized
// bodies error on the first downstream read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
