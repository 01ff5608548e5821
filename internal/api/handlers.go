package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/ledger"
	"github.com/bobarin/sceneforge/internal/models"
	"github.com/bobarin/sceneforge/internal/render"
	"github.com/bobarin/sceneforge/internal/script"
	"github.com/bobarin/sceneforge/internal/services"
	"github.com/bobarin/sceneforge/internal/storage"
)

const (
	maxBodyBytes          = 1 << 20
	defaultScriptDuration = 60
)

// VideoAssembler turns a scene list into one video.
type VideoAssembler interface {
	Assemble(ctx context.Context, req render.Request) (*render.Result, error)
}

// ScriptWriter drafts and splits scene-structured scripts.
type ScriptWriter interface {
	GenerateScript(ctx context.Context, topic string, durationSec int) (string, error)
	SplitScript(ctx context.Context, script string) ([]models.ScriptScene, error)
}

// SceneLedger records which assets belong to which scene.
type SceneLedger interface {
	Upsert(ctx context.Context, sceneID, imagePath, audioPath string) (ledger.Entry, error)
	Lookup(ctx context.Context, sceneID string) (ledger.Entry, error)
	List(ctx context.Context) ([]ledger.Entry, error)
}

// VideoHistory lists finished assemblies.
type VideoHistory interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, limit, offset int) ([]models.Video, error)
	CountVideos(ctx context.Context) (int, error)
}

// Deps are the collaborators a Handler needs. Scripts and History are optional.
type Deps struct {
	Images    services.ImageGenerator
	Speech    services.TTSService
	Scripts   ScriptWriter
	Assembler VideoAssembler
	Ledger    SceneLedger
	Storage   *storage.Storage
	History   VideoHistory
}

type Handler struct {
	images    services.ImageGenerator
	speech    services.TTSService
	scripts   ScriptWriter
	assembler VideoAssembler
	ledger    SceneLedger
	storage   *storage.Storage
	history   VideoHistory
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		images:    d.Images,
		speech:    d.Speech,
		scripts:   d.Scripts,
		assembler: d.Assembler,
		ledger:    d.Ledger,
		storage:   d.Storage,
		history:   d.History,
	}
}

// GenerateImage handles POST /generate-image
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateImageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		respondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	result, err := h.images.GenerateImage(r.Context(), prompt)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var asset storage.Asset
	if len(result.Data) > 0 {
		asset, err = h.storage.SaveImage(result.Data, result.Format)
	} else {
		asset, err = h.storage.SaveImageFromURL(r.Context(), result.URL, result.Format)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}

	sceneNumber := script.ExtractSceneNumber(prompt)
	h.recordScene(r.Context(), sceneNumber, asset.StaticPath, "")

	respondJSON(w, http.StatusOK, models.GenerateImageResponse{
		ImageURL:  asset.URL,
		ImagePath: asset.StaticPath,
	})
}

// GenerateVoice handles POST /generate-voice
// The narrated text is whatever follows a "Voiceover" line when one is present.
func (h *Handler) GenerateVoice(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateVoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "Text is required")
		return
	}

	sceneNumber := script.ExtractSceneNumber(req.Text)
	narration := script.ExtractVoiceover(req.Text)

	speech, err := h.speech.GenerateSpeech(r.Context(), narration)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	asset, err := h.storage.SaveAudio(sceneNumber, speech.AudioData)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.recordScene(r.Context(), sceneNumber, "", asset.StaticPath)

	respondJSON(w, http.StatusOK, models.GenerateVoiceResponse{
		AudioURL:    asset.URL,
		AudioPath:   asset.StaticPath,
		SceneNumber: sceneNumber,
	})
}

// GenerateVideo handles POST /generate-video
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateVideoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.assembler.Assemble(r.Context(), render.Request{
		Scenes:      req.Scenes,
		Orientation: req.Orientation,
		Identity:    clientIP(r),
		Recreate:    req.IsRecreate,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.GenerateVideoResponse{
		VideoURL:             result.VideoURL,
		Details:              result.Details,
		RemainingGenerations: result.Remaining,
	})
}

// GenerateScript handles POST /generate-script
func (h *Handler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	if h.scripts == nil {
		respondError(w, http.StatusServiceUnavailable, "Script generation is not configured")
		return
	}

	var req models.GenerateScriptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		respondError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	duration := req.Duration
	if duration <= 0 {
		duration = defaultScriptDuration
	}

	content, err := h.scripts.GenerateScript(r.Context(), topic, duration)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.GenerateScriptResponse{Content: content})
}

// ProcessScript handles POST /process-script
// The LLM split is tried first; the line parser is the fallback.
func (h *Handler) ProcessScript(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessScriptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "Script text is required")
		return
	}

	var scenes []models.ScriptScene
	if h.scripts != nil {
		split, err := h.scripts.SplitScript(r.Context(), req.Text)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Str("component", "api").Msg("script split failed, using line parser")
		} else {
			scenes = split
		}
	}
	if len(scenes) == 0 {
		scenes = script.Parse(req.Text)
	}
	if len(scenes) == 0 {
		respondError(w, http.StatusBadRequest, "No scenes found in script")
		return
	}

	respondJSON(w, http.StatusOK, models.ProcessScriptResponse{Scenes: scenes})
}

// ListScenes handles GET /scenes
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	records := make([]models.SceneRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, sceneRecord(e))
	}
	respondJSON(w, http.StatusOK, models.ListScenesResponse{Scenes: records})
}

// GetScene handles GET /scenes/{id}
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sceneRecord(entry))
}

// ListVideos handles GET /videos
// Query params:
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Video history is not enabled")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.history.CountVideos(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	videos, err := h.history.ListVideos(r.Context(), limit, offset)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Videos: videos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetVideo handles GET /videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Video history is not enabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	video, err := h.history.GetVideo(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// recordScene upserts the ledger. Failures are logged; the asset was still generated.
func (h *Handler) recordScene(ctx context.Context, sceneNumber, imagePath, audioPath string) {
	if _, err := h.ledger.Upsert(ctx, sceneNumber, imagePath, audioPath); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("component", "api").
			Str("scene", sceneNumber).
			Msg("failed to update scene ledger")
	}
}

func sceneRecord(e ledger.Entry) models.SceneRecord {
	return models.SceneRecord{Scene: e.Scene, Image: e.Image, Audio: e.Audio}
}

// clientIP is the rate-limit identity. RealIP has already rewritten
// RemoteAddr from X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps err through the error taxonomy and logs it.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)

	event := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event = event.Err(err).
		Str("component", "api").
		Str("path", r.URL.Path).
		Int("status", status).
		Str("request_id", middleware.GetReqID(r.Context()))

	var toolErr *apperr.ExternalToolError
	if errors.As(err, &toolErr) {
		event = event.Str("command", toolErr.CommandLine()).Str("stderr", toolErr.Stderr)
	}
	var sceneErr *render.SceneError
	if errors.As(err, &sceneErr) {
		event = event.Int("scene", sceneErr.Index).Str("stage", sceneErr.Stage)
	}
	event.Msg("request failed")

	respondError(w, status, err.Error())
}
