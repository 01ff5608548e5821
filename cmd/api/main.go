package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/api"
	"github.com/bobarin/sceneforge/internal/config"
	"github.com/bobarin/sceneforge/internal/db"
	"github.com/bobarin/sceneforge/internal/ledger"
	"github.com/bobarin/sceneforge/internal/logging"
	"github.com/bobarin/sceneforge/internal/ratelimit"
	"github.com/bobarin/sceneforge/internal/render"
	"github.com/bobarin/sceneforge/internal/services"
	"github.com/bobarin/sceneforge/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}
	log.Info().Msg("starting sceneforge API")

	// Initialize storage
	stor, err := storage.New(cfg.StaticDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize static storage")
	}
	log.Info().Str("dir", cfg.StaticDir).Msg("initialized static storage")

	sceneLedger := ledger.New(filepath.Join(cfg.StaticDir, "scene_report.json"))

	// Rate-limit store: Redis when configured, otherwise process memory
	var store ratelimit.Store
	if cfg.RedisURL != "" {
		redisStore, err := ratelimit.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
		log.Info().Msg("rate limits stored in redis")
	} else {
		store = ratelimit.NewMemoryStore()
		log.Warn().Msg("no REDIS_URL set, rate limits reset on restart")
	}
	limiter := ratelimit.New(store, cfg.MaxGenerationsPerDay)

	// Assembly history (optional)
	var (
		history  render.HistoryRecorder
		videoLog api.VideoHistory
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = database.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to prepare database schema")
		}
		history, videoLog = database, database
		log.Info().Msg("connected to database, video history enabled")
	}

	// Providers
	var openaiSvc *services.OpenAIService
	if cfg.OpenAIKey != "" {
		openaiSvc = services.NewOpenAIService(cfg.OpenAIKey, services.OpenAIOptions{
			ImageModel:  cfg.OpenAIImageModel,
			ImageSize:   cfg.OpenAIImageSize,
			ScriptModel: cfg.ScriptModel,
			Voice:       cfg.OpenAITTSVoice,
		})
	}

	var images services.ImageGenerator
	switch cfg.ImageProvider {
	case "gemini":
		images = services.NewGeminiService(cfg.GeminiKey, cfg.GeminiImageModel)
	default:
		images = openaiSvc
	}
	log.Info().Str("provider", cfg.ImageProvider).Msg("image provider selected")

	var speech services.TTSService
	switch cfg.TTSProvider {
	case "elevenlabs":
		speech = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	case "cartesia":
		speech = services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaVoiceID)
	case "openai":
		speech = openaiSvc
	default:
		speech = services.NewDeepgramService(cfg.DeepgramKey, cfg.DeepgramModel)
	}
	log.Info().Str("provider", cfg.TTSProvider).Msg("speech provider selected")

	var scripts api.ScriptWriter
	if cfg.ScriptWriterEnabled() {
		scripts = openaiSvc
		log.Info().Str("model", cfg.ScriptModel).Msg("script writer enabled")
	}

	// Rendering
	ffmpegSvc := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath)
	if _, err := os.Stat(cfg.FontPath); err != nil {
		log.Warn().Str("font", cfg.FontPath).Msg("caption font not found, caption overlays will fall back to uncaptioned clips")
	}
	renderer := render.NewRenderer(ffmpegSvc, cfg.FontPath, cfg.CaptionMaxChars)
	assembler := render.NewAssembler(renderer, ffmpegSvc, stor, limiter, render.AssemblerOptions{
		RenderConcurrency:       cfg.RenderConcurrency,
		MaxConcurrentAssemblies: int64(cfg.MaxConcurrentAssemblies),
		ConcatMode:              cfg.ConcatMode,
		History:                 history,
	})

	// Create API handler
	handler := api.NewHandler(api.Deps{
		Images:    images,
		Speech:    speech,
		Scripts:   scripts,
		Assembler: assembler,
		Ledger:    sceneLedger,
		Storage:   stor,
		History:   videoLog,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		ServeStatic:        cfg.ServeStatic,
		Logger:             log.Logger,
	})

	if cfg.BackendAPIKey != "" {
		log.Info().Msg("API key authentication enabled")
	} else {
		log.Warn().Msg("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Assemblies can take minutes; give in-flight requests time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server exited")
}
