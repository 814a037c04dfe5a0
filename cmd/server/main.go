// Command server runs the Vedic story generation API.
//
// Startup order: env + config, logging, tracing, database, asset layout,
// pipeline providers, router, HTTP server. Shutdown drains in-flight
// requests before flushing traces and closing the database; a generation
// request caught mid-pipeline keeps its committed stages and resumes nothing
// on restart, the record simply stays at its last stage.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
	"github.com/aryaman108/Vedic-Story-Generator/internal/config"
	"github.com/aryaman108/Vedic-Story-Generator/internal/generation"
	httpapi "github.com/aryaman108/Vedic-Story-Generator/internal/http"
	"github.com/aryaman108/Vedic-Story-Generator/internal/media"
	"github.com/aryaman108/Vedic-Story-Generator/internal/observability"
	"github.com/aryaman108/Vedic-Story-Generator/internal/repo"
	"github.com/aryaman108/Vedic-Story-Generator/internal/sysutil"
)

// version is stamped into traces; overridden at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("database tracing unavailable")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Asset layout
	paths := assets.NewResolver(cfg.AssetRoot)
	for _, kind := range []string{assets.KindImages, assets.KindAudio, assets.KindVideos, assets.KindStories} {
		if err := paths.EnsureDir(kind); err != nil {
			log.Fatal().Err(err).Str("kind", kind).Msg("asset directory setup failed")
		}
	}

	// Pipeline providers
	oaCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	oaCfg.HTTPClient = &http.Client{Timeout: cfg.OpenAI.Timeout}
	text := generation.NewStoryGenerator(
		openai.NewClientWithConfig(oaCfg),
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxRetries,
		log.With().Str("component", "story_generator").Logger(),
	)
	images := generation.NewImageGenerator(
		&http.Client{Timeout: cfg.Image.Timeout},
		cfg.Image.Endpoint,
		cfg.Image.Width,
		cfg.Image.Height,
		cfg.Image.Workers,
		paths,
		log.With().Str("component", "image_generator").Logger(),
	)
	audio := generation.NewAudioGenerator(
		&http.Client{Timeout: cfg.TTS.Timeout},
		cfg.TTS.Endpoint,
		cfg.TTS.Language,
		cfg.TTS.Slow,
		paths,
		log.With().Str("component", "audio_generator").Logger(),
	)
	video := media.NewComposer(
		media.ExecRunner{},
		cfg.Media.FFmpegPath,
		cfg.Media.FFprobePath,
		paths,
		log.With().Str("component", "composer").Logger(),
	)

	// Router
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{
		Text:   text,
		Images: images,
		Audio:  audio,
		Video:  video,
		Assets: paths,
		Log:    log.With().Str("component", "story_service").Logger(),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Drain long enough for an in-flight generation to commit its stage.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown incomplete")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("trace flush incomplete")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
