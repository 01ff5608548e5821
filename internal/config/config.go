package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	PublicBaseURL      string // Prefix used when building asset URLs returned to clients
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins

	// Logging
	LogLevel  string
	LogFormat string // "console" or "json"

	// Static assets
	StaticDir   string
	ServeStatic bool // Mount /static routes (disable when a CDN fronts the asset dirs)
	FontPath    string

	// Image generation
	ImageProvider    string // "openai" or "gemini"
	OpenAIKey        string
	OpenAIImageModel string
	OpenAIImageSize  string
	GeminiKey        string
	GeminiImageModel string

	// Script writing (optional, uses OpenAI)
	ScriptModel string

	// Speech synthesis
	TTSProvider       string // "deepgram", "elevenlabs", "cartesia" or "openai"
	DeepgramKey       string
	DeepgramModel     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaVoiceID   string
	OpenAITTSVoice    string

	// Quotas and persistence
	MaxGenerationsPerDay int
	RedisURL             string // Optional: durable rate-limit state
	DatabaseURL          string // Optional: assembly history

	// Rendering
	RenderConcurrency       int
	MaxConcurrentAssemblies int
	ConcatMode              string // "reencode" or "auto"
	CaptionMaxChars         int
	FFmpegPath              string
	FFprobePath             string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	staticDir := getEnv("STATIC_DIR", "static")

	cfg := &Config{
		APIPort:                 getEnv("API_PORT", "8000"),
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		BackendAPIKey:           getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:      getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3002"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "console"),
		StaticDir:               staticDir,
		ServeStatic:             getEnvBool("SERVE_STATIC", true),
		FontPath:                getEnv("FONT_PATH", filepath.Join(staticDir, "fonts", "OpenSans-Bold.ttf")),
		ImageProvider:           strings.ToLower(getEnv("IMAGE_PROVIDER", "openai")),
		OpenAIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIImageModel:        getEnv("OPENAI_IMAGE_MODEL", "dall-e-2"),
		OpenAIImageSize:         getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
		GeminiKey:               getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:        getEnv("GEMINI_IMAGE_MODEL", "imagen-3.0-generate-002"),
		ScriptModel:             getEnv("SCRIPT_MODEL", "gpt-4o-mini"),
		TTSProvider:             strings.ToLower(getEnv("TTS_PROVIDER", "deepgram")),
		DeepgramKey:             getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:           getEnv("DEEPGRAM_MODEL", "aura-asteria-en"),
		ElevenLabsKey:           getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:       getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:             getEnv("CARTESIA_API_KEY", ""),
		CartesiaVoiceID:         getEnv("CARTESIA_VOICE_ID", ""),
		OpenAITTSVoice:          getEnv("OPENAI_TTS_VOICE", "alloy"),
		MaxGenerationsPerDay:    getEnvInt("MAX_GENERATIONS_PER_DAY", 2),
		RedisURL:                getEnv("REDIS_URL", ""),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RenderConcurrency:       getEnvInt("RENDER_CONCURRENCY", 1),
		MaxConcurrentAssemblies: getEnvInt("MAX_CONCURRENT_ASSEMBLIES", 1),
		ConcatMode:              strings.ToLower(getEnv("CONCAT_MODE", "reencode")),
		CaptionMaxChars:         getEnvInt("CAPTION_MAX_CHARS", 50),
		FFmpegPath:              getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:             getEnv("FFPROBE_PATH", "ffprobe"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ImageProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when IMAGE_PROVIDER=openai")
		}
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when IMAGE_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("IMAGE_PROVIDER must be openai or gemini, got %q", c.ImageProvider)
	}

	switch c.TTSProvider {
	case "deepgram":
		if c.DeepgramKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when TTS_PROVIDER=deepgram")
		}
	case "elevenlabs":
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case "cartesia":
		if c.CartesiaKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("TTS_PROVIDER must be deepgram, elevenlabs, cartesia or openai, got %q", c.TTSProvider)
	}

	if c.ConcatMode != "reencode" && c.ConcatMode != "auto" {
		return fmt.Errorf("CONCAT_MODE must be reencode or auto, got %q", c.ConcatMode)
	}
	if c.MaxGenerationsPerDay < 1 {
		return fmt.Errorf("MAX_GENERATIONS_PER_DAY must be positive")
	}
	if c.RenderConcurrency < 1 {
		c.RenderConcurrency = 1
	}
	if c.MaxConcurrentAssemblies < 1 {
		c.MaxConcurrentAssemblies = 1
	}
	if c.CaptionMaxChars < 1 {
		c.CaptionMaxChars = 50
	}

	return nil
}

// ScriptWriterEnabled reports whether the script endpoints can call an LLM.
func (c *Config) ScriptWriterEnabled() bool {
	return c.OpenAIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
