// Package render turns scenes into clips and clips into finished videos.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/models"
	"github.com/bobarin/sceneforge/internal/services"
)

// MediaTool is the subset of the ffmpeg service the renderer and assembler use.
type MediaTool interface {
	ImageToClip(ctx context.Context, imagePath, outputPath string, durationSec int, p services.Placement) error
	MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
	BurnCaption(ctx context.Context, inputPath, outputPath, filter string) error
	ConcatenateClips(ctx context.Context, clipPaths []string, listPath, outputPath string, reencode bool) error
	ProbeImageSize(ctx context.Context, imagePath string) (int, int, error)
}

var _ MediaTool = (*services.FFmpegService)(nil)

// SceneInput is one scene ready for rendering: local files and a resolved duration.
type SceneInput struct {
	Index       int // 1-based position in the video
	ImagePath   string
	AudioPath   string
	DurationSec int
	Caption     string
	Orientation models.Orientation
}

// Clip is a rendered scene.
type Clip struct {
	Path      string
	Captioned bool
}

// Renderer produces one clip per scene in a caller-owned work directory.
type Renderer struct {
	tool        MediaTool
	fontPath    string
	captionWide int
}

func NewRenderer(tool MediaTool, fontPath string, captionMaxChars int) *Renderer {
	if captionMaxChars <= 0 {
		captionMaxChars = services.DefaultCaptionWidth
	}
	return &Renderer{
		tool:        tool,
		fontPath:    fontPath,
		captionWide: captionMaxChars,
	}
}

// Render runs image-to-clip, audio mux and, when the scene has a caption,
// the caption overlay. A failed overlay falls back to the uncaptioned clip.
func (r *Renderer) Render(ctx context.Context, workDir string, in SceneInput) (Clip, error) {
	if in.DurationSec <= 0 {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageValidate, Err: apperr.Validation("scene %d has non-positive duration %d", in.Index, in.DurationSec)}
	}
	if err := requireFile("image file", in.ImagePath); err != nil {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageValidate, Err: err}
	}
	if err := requireFile("audio file", in.AudioPath); err != nil {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageValidate, Err: err}
	}

	width, height, ok := in.Orientation.Dimensions()
	if !ok {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageValidate, Err: apperr.Validation("invalid orientation %q", in.Orientation)}
	}

	logger := log.With().
		Str("component", "renderer").
		Int("scene", in.Index).
		Logger()

	imgW, imgH, err := r.imageSize(ctx, in.ImagePath)
	if err != nil {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageImageClip, Err: err}
	}
	placement := FitFrame(imgW, imgH, width, height)

	silentPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_silent.mp4", in.Index))
	if err := r.tool.ImageToClip(ctx, in.ImagePath, silentPath, in.DurationSec, placement); err != nil {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageImageClip, Err: err}
	}

	muxedPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_audio.mp4", in.Index))
	if err := r.tool.MuxAudio(ctx, silentPath, in.AudioPath, muxedPath); err != nil {
		return Clip{}, &SceneError{Index: in.Index, Stage: StageMuxAudio, Err: err}
	}

	if strings.TrimSpace(in.Caption) == "" {
		logger.Debug().Int("duration", in.DurationSec).Msg("scene rendered")
		return Clip{Path: muxedPath}, nil
	}

	formatted := services.FormatCaption(in.Caption, r.captionWide)
	filter := services.DrawtextFilter(services.CaptionStyleFor(in.Orientation), r.fontPath, formatted)

	captionedPath := filepath.Join(workDir, fmt.Sprintf("scene_%d_captioned.mp4", in.Index))
	if err := r.tool.BurnCaption(ctx, muxedPath, captionedPath, filter); err != nil {
		logger.Warn().Err(err).Msg("caption overlay failed, using uncaptioned clip")
		return Clip{Path: muxedPath}, nil
	}

	logger.Debug().Int("duration", in.DurationSec).Bool("captioned", true).Msg("scene rendered")
	return Clip{Path: captionedPath, Captioned: true}, nil
}

// imageSize reads the dimensions from the image header, falling back to
// ffprobe for formats the standard decoders do not know (webp).
func (r *Renderer) imageSize(ctx context.Context, path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	cfg, _, decodeErr := image.DecodeConfig(f)
	f.Close()
	if decodeErr == nil && cfg.Width > 0 && cfg.Height > 0 {
		return cfg.Width, cfg.Height, nil
	}

	w, h, err := r.tool.ProbeImageSize(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// FitFrame scales an imgW x imgH image to fit a frameW x frameH frame without
// distortion and centers it. Wider images fit the width and are padded top
// and bottom; taller or equal ones fit the height and are padded left and right.
func FitFrame(imgW, imgH, frameW, frameH int) services.Placement {
	p := services.Placement{FrameWidth: frameW, FrameHeight: frameH}
	if imgW <= 0 || imgH <= 0 {
		p.ScaleWidth, p.ScaleHeight = frameW, frameH
		return p
	}

	// Compare aspect ratios by cross-multiplying.
	if imgW*frameH > frameW*imgH {
		p.ScaleWidth = frameW
		p.ScaleHeight = frameW * imgH / imgW
		p.PadY = (frameH - p.ScaleHeight) / 2
	} else {
		p.ScaleHeight = frameH
		p.ScaleWidth = frameH * imgW / imgH
		p.PadX = (frameW - p.ScaleWidth) / 2
	}
	return p
}

func requireFile(resource, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.NotFound(resource, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return apperr.NotFound(resource, path)
	}
	return nil
}
