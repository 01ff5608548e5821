package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/models"
	"github.com/bobarin/sceneforge/internal/ratelimit"
	"github.com/bobarin/sceneforge/internal/storage"
)

// DefaultSceneDuration is used when a scene's time range is missing or malformed.
const DefaultSceneDuration = 5

// Concatenation modes.
const (
	ConcatReencode = "reencode"
	ConcatAuto     = "auto" // stream copy unless a caption overlay was applied
)

// Stages reported in SceneError.
const (
	StageValidate  = "validate"
	StageResolve   = "resolve"
	StageImageClip = "image-to-clip"
	StageMuxAudio  = "mux-audio"
)

// SceneError ties a failure to the scene and pipeline stage that produced it.
type SceneError struct {
	Index int
	Stage string
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %d %s: %v", e.Index, e.Stage, e.Err)
}

func (e *SceneError) Unwrap() error { return e.Err }

// HistoryRecorder persists finished assemblies.
type HistoryRecorder interface {
	CreateVideo(ctx context.Context, v *models.Video) error
}

// Request is one assembly.
type Request struct {
	Scenes      []models.Scene
	Orientation models.Orientation
	Identity    string // rate-limit key, the client IP at the HTTP boundary
	Recreate    bool
}

// Result describes the finished video.
type Result struct {
	VideoPath string
	FileName  string
	VideoURL  string
	Details   models.VideoDetails
	Remaining int
}

// AssemblerOptions tunes an Assembler.
type AssemblerOptions struct {
	RenderConcurrency       int    // scenes rendered at once, default 1
	MaxConcurrentAssemblies int64  // assemblies running at once, default 1
	ConcatMode              string // ConcatReencode (default) or ConcatAuto
	History                 HistoryRecorder
}

// Assembler renders every scene of a request and joins the clips into one video.
type Assembler struct {
	renderer *Renderer
	tool     MediaTool
	store    *storage.Storage
	limiter  *ratelimit.Limiter
	history  HistoryRecorder

	gate              *semaphore.Weighted
	renderConcurrency int
	concatMode        string
	now               func() time.Time
}

func NewAssembler(renderer *Renderer, tool MediaTool, store *storage.Storage, limiter *ratelimit.Limiter, opts AssemblerOptions) *Assembler {
	if opts.RenderConcurrency < 1 {
		opts.RenderConcurrency = 1
	}
	if opts.MaxConcurrentAssemblies < 1 {
		opts.MaxConcurrentAssemblies = 1
	}
	if opts.ConcatMode != ConcatAuto {
		opts.ConcatMode = ConcatReencode
	}

	return &Assembler{
		renderer:          renderer,
		tool:              tool,
		store:             store,
		limiter:           limiter,
		history:           opts.History,
		gate:              semaphore.NewWeighted(opts.MaxConcurrentAssemblies),
		renderConcurrency: opts.RenderConcurrency,
		concatMode:        opts.ConcatMode,
		now:               time.Now,
	}
}

// Assemble renders req.Scenes in order and concatenates them. Any scene
// failure aborts the run; the scratch directory is removed on every path.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if len(req.Scenes) == 0 {
		return nil, apperr.Validation("No scenes provided")
	}

	orientation := req.Orientation
	if orientation == "" {
		orientation = models.OrientationHorizontal
	}
	width, height, ok := orientation.Dimensions()
	if !ok {
		return nil, apperr.Validation("orientation must be horizontal or vertical, got %q", req.Orientation)
	}

	for i, scene := range req.Scenes {
		if strings.TrimSpace(scene.ImageURL) == "" || strings.TrimSpace(scene.AudioURL) == "" {
			return nil, apperr.Validation("Missing image or audio URL for scene %d", i+1)
		}
	}

	if !req.Recreate {
		allowed, err := a.limiter.Allow(ctx, req.Identity)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &apperr.RateLimitedError{Limit: a.limiter.Max()}
		}
	}

	logger := log.With().
		Str("component", "assembler").
		Str("client", req.Identity).
		Str("orientation", string(orientation)).
		Logger()

	if err := a.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("assembly cancelled while waiting for a slot: %w", err)
	}
	defer a.gate.Release(1)

	runID := uuid.New().String()
	workDir := filepath.Join(a.store.Dir(storage.KindVideo), "temp", runID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove scratch dir")
		}
	}()

	durations := make([]int, len(req.Scenes))
	totalDuration := 0
	hasCaptions := false
	for i, scene := range req.Scenes {
		d, ok := ParseDuration(scene.Time)
		if !ok {
			logger.Warn().
				Int("scene", i+1).
				Str("time", scene.Time).
				Int("default", DefaultSceneDuration).
				Msg("invalid scene time, using default duration")
		}
		durations[i] = d
		totalDuration += d
		if strings.TrimSpace(scene.Voiceover) != "" {
			hasCaptions = true
		}
	}

	logger.Info().
		Str("run", runID).
		Int("scenes", len(req.Scenes)).
		Int("duration", totalDuration).
		Msg("assembly started")

	clips := make([]Clip, len(req.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.renderConcurrency)

	for i, scene := range req.Scenes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			clip, err := a.renderScene(gctx, workDir, i+1, scene, durations[i], orientation)
			if err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str("run", runID).Msg("assembly failed")
		return nil, err
	}

	clipPaths := make([]string, len(clips))
	anyCaptioned := false
	for i, clip := range clips {
		clipPaths[i] = clip.Path
		anyCaptioned = anyCaptioned || clip.Captioned
	}

	fileName := fmt.Sprintf("video_%d_%s_%s.mp4", a.now().Unix(), uuid.New().String()[:8], orientation)
	asset := a.store.AssetFor(storage.KindVideo, fileName)
	reencode := a.concatMode == ConcatReencode || anyCaptioned

	listPath := filepath.Join(workDir, "concat_list.txt")
	if err := a.tool.ConcatenateClips(ctx, clipPaths, listPath, asset.LocalPath, reencode); err != nil {
		if rmErr := os.Remove(asset.LocalPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn().Err(rmErr).Str("path", asset.LocalPath).Msg("failed to remove partial output")
		}
		logger.Error().Err(err).Str("run", runID).Msg("concatenation failed")
		return nil, fmt.Errorf("failed to concatenate clips: %w", err)
	}

	if !req.Recreate {
		if err := a.limiter.Record(ctx, req.Identity); err != nil {
			logger.Error().Err(err).Msg("failed to record generation")
		}
	}

	remaining, err := a.limiter.Remaining(ctx, req.Identity)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read remaining generations")
	}

	details := models.VideoDetails{
		Resolution:  fmt.Sprintf("%dx%d", width, height),
		Quality:     "High",
		Scenes:      len(req.Scenes),
		HasCaptions: hasCaptions,
		Duration:    totalDuration,
		Orientation: orientation,
	}

	if a.history != nil {
		video := &models.Video{
			ID:              uuid.New(),
			FileName:        fileName,
			VideoURL:        asset.URL,
			Orientation:     orientation,
			SceneCount:      details.Scenes,
			DurationSeconds: totalDuration,
			HasCaptions:     hasCaptions,
			ClientID:        req.Identity,
			Recreate:        req.Recreate,
			CreatedAt:       a.now(),
		}
		if err := a.history.CreateVideo(ctx, video); err != nil {
			logger.Warn().Err(err).Msg("failed to store video history")
		}
	}

	logger.Info().
		Str("run", runID).
		Str("file", fileName).
		Bool("reencoded", reencode).
		Int("remaining", remaining).
		Msg("assembly complete")

	return &Result{
		VideoPath: asset.LocalPath,
		FileName:  fileName,
		VideoURL:  asset.URL,
		Details:   details,
		Remaining: remaining,
	}, nil
}

func (a *Assembler) renderScene(ctx context.Context, workDir string, index int, scene models.Scene, duration int, orientation models.Orientation) (Clip, error) {
	imagePath, err := a.store.ResolveLocal(ctx, scene.ImageURL, storage.KindImage)
	if err != nil {
		return Clip{}, &SceneError{Index: index, Stage: StageResolve, Err: err}
	}
	audioPath, err := a.store.ResolveLocal(ctx, scene.AudioURL, storage.KindAudio)
	if err != nil {
		return Clip{}, &SceneError{Index: index, Stage: StageResolve, Err: err}
	}

	return a.renderer.Render(ctx, workDir, SceneInput{
		Index:       index,
		ImagePath:   imagePath,
		AudioPath:   audioPath,
		DurationSec: duration,
		Caption:     scene.Voiceover,
		Orientation: orientation,
	})
}

// ParseDuration computes end-start from a "start-end" range such as
// "0-5 seconds" or "5s-10s". Missing, malformed or non-positive ranges give
// DefaultSceneDuration and ok=false.
func ParseDuration(timeRange string) (seconds int, ok bool) {
	start, end, found := strings.Cut(timeRange, "-")
	if !found {
		return DefaultSceneDuration, false
	}

	s, err1 := strconv.Atoi(digitsOnly(start))
	e, err2 := strconv.Atoi(digitsOnly(end))
	if err1 != nil || err2 != nil || e <= s {
		return DefaultSceneDuration, false
	}
	return e - s, true
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
