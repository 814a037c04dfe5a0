// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, generation
// providers, media tooling, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aryaman108/Vedic-Story-Generator/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "vedic-story-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// OpenAIConfig defines the text-generation provider settings.
type OpenAIConfig struct {
	APIKey     string        // OPENAI_API_KEY (required unless STUB_TEXT)
	Model      string        // OPENAI_MODEL (e.g. "gpt-4o-mini")
	Timeout    time.Duration // OPENAI_TIMEOUT per attempt
	MaxRetries int           // OPENAI_MAX_RETRIES, retry bound for retryable failures
}

// ImageConfig defines the scene-image provider settings.
type ImageConfig struct {
	Endpoint string        // IMAGE_ENDPOINT (prompt is appended path-encoded)
	Timeout  time.Duration // IMAGE_TIMEOUT per request
	Width    int           // IMAGE_WIDTH
	Height   int           // IMAGE_HEIGHT
	Workers  int           // IMAGE_WORKERS, concurrent slot fetches
}

// TTSConfig defines the narration speech provider settings.
type TTSConfig struct {
	Endpoint string        // TTS_ENDPOINT (translate_tts-compatible)
	Language string        // TTS_LANG (e.g. "en")
	Slow     bool          // TTS_SLOW, slower speaking rate
	Timeout  time.Duration // TTS_TIMEOUT
}

// MediaConfig defines video composition tooling settings.
type MediaConfig struct {
	FFmpegPath  string // FFMPEG_PATH binary
	FFprobePath string // FFPROBE_PATH binary
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath    string // SQLite path
	AssetRoot string // directory holding images/audio/videos subdirs

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Generation providers
	OpenAI OpenAIConfig
	Image  ImageConfig
	TTS    TTSConfig
	Media  MediaConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:    getenv("DB_PATH", "app.db"),
		AssetRoot: getenv("ASSET_ROOT", "static"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Generation providers
		OpenAI: OpenAIConfig{
			APIKey:     getenv("OPENAI_API_KEY", ""),
			Model:      getenv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:    getdur("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries: getint("OPENAI_MAX_RETRIES", 3),
		},
		Image: ImageConfig{
			Endpoint: getenv("IMAGE_ENDPOINT", "https://image.pollinations.ai/prompt"),
			Timeout:  getdur("IMAGE_TIMEOUT", 30*time.Second),
			Width:    getint("IMAGE_WIDTH", 1024),
			Height:   getint("IMAGE_HEIGHT", 768),
			Workers:  getint("IMAGE_WORKERS", 2),
		},
		TTS: TTSConfig{
			Endpoint: getenv("TTS_ENDPOINT", "https://translate.google.com/translate_tts"),
			Language: getenv("TTS_LANG", "en"),
			Slow:     getbool("TTS_SLOW", false),
			Timeout:  getdur("TTS_TIMEOUT", 60*time.Second),
		},
		Media: MediaConfig{
			FFmpegPath:  getenv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: getenv("FFPROBE_PATH", "ffprobe"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "vedic-story-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.AssetRoot) == "" {
		return cfg, errors.New("ASSET_ROOT must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		return cfg, errors.New("OPENAI_MODEL must not be empty")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return cfg, errors.New("OPENAI_TIMEOUT must be > 0")
	}
	if cfg.OpenAI.MaxRetries < 1 {
		return cfg, errors.New("OPENAI_MAX_RETRIES must be >= 1")
	}
	if strings.TrimSpace(cfg.Image.Endpoint) == "" {
		return cfg, errors.New("IMAGE_ENDPOINT must not be empty")
	}
	if cfg.Image.Timeout <= 0 {
		return cfg, errors.New("IMAGE_TIMEOUT must be > 0")
	}
	if cfg.Image.Width <= 0 || cfg.Image.Height <= 0 {
		return cfg, errors.New("IMAGE_WIDTH and IMAGE_HEIGHT must be > 0")
	}
	if cfg.Image.Workers < 1 {
		return cfg, errors.New("IMAGE_WORKERS must be >= 1")
	}
	if strings.TrimSpace(cfg.TTS.Endpoint) == "" {
		return cfg, errors.New("TTS_ENDPOINT must not be empty")
	}
	if strings.TrimSpace(cfg.TTS.Language) == "" {
		return cfg, errors.New("TTS_LANG must not be empty")
	}
	if cfg.TTS.Timeout <= 0 {
		return cfg, errors.New("TTS_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Media.FFmpegPath) == "" || strings.TrimSpace(cfg.Media.FFprobePath) == "" {
		return cfg, errors.New("FFMPEG_PATH and FFPROBE_PATH must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
