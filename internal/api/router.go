package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bobarin/sceneforge/internal/storage"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// ServeStatic mounts the generated images, audio and videos under /static.
	ServeStatic bool

	Logger zerolog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check, public
	r.Get("/health", h.Health)

	if cfg.ServeStatic && h.storage != nil {
		for _, kind := range []storage.Kind{storage.KindImage, storage.KindAudio, storage.KindVideo} {
			prefix := storage.StaticPrefix + "/" + string(kind) + "/"
			r.Handle(prefix+"*", staticFiles(prefix, h.storage.Dir(kind)))
		}
	}

	r.Group(func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		r.Post("/generate-image", h.GenerateImage)
		r.Post("/generate-voice", h.GenerateVoice)
		r.Post("/generate-video", h.GenerateVideo)

		r.Post("/generate-script", h.GenerateScript)
		r.Post("/process-script", h.ProcessScript)

		// Ledger audit
		r.Get("/scenes", h.ListScenes)
		r.Get("/scenes/{id}", h.GetScene)

		// Assembly history
		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{id}", h.GetVideo)
	})

	return r
}

// staticFiles serves files from dir read-only. Directory listings and the
// assembler's scratch area are hidden.
func staticFiles(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		name := strings.TrimPrefix(r.URL.Path, prefix)
		clean := strings.TrimPrefix(path.Clean("/"+name), "/")
		if clean == "" || strings.HasSuffix(name, "/") || clean == "temp" || strings.HasPrefix(clean, "temp/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
