package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
)

// Encoding settings shared by every clip so concatenation sees uniform streams.
const (
	videoCodec   = "libx264"
	videoPreset  = "slow"
	videoCRF     = "18"
	audioCodec   = "aac"
	audioBitrate = "192k"
	pixelFormat  = "yuv420p"
)

// ---------------------------------------------------------------------------
// Runner executes external media tools
// ---------------------------------------------------------------------------

// Runner runs a command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec. Failures are returned as
// *apperr.ExternalToolError carrying the command line and captured output.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), stderr.Bytes(), &apperr.ExternalToolError{
			Command:  append([]string{name}, args...),
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

// Placement describes how a still image is scaled and padded into a frame.
type Placement struct {
	FrameWidth  int
	FrameHeight int
	ScaleWidth  int
	ScaleHeight int
	PadX        int
	PadY        int
}

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
}

func NewFFmpegService(ffmpegPath, ffprobePath string) *FFmpegService {
	return NewFFmpegServiceWithRunner(ffmpegPath, ffprobePath, ExecRunner{})
}

// NewFFmpegServiceWithRunner creates a service that executes through runner.
func NewFFmpegServiceWithRunner(ffmpegPath, ffprobePath string, runner Runner) *FFmpegService {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// ImageToClip loops a still image into a silent clip of durationSec seconds,
// scaled and padded into the frame described by p.
func (s *FFmpegService) ImageToClip(ctx context.Context, imagePath, outputPath string, durationSec int, p Placement) error {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:%d:%d:color=black,format=%s",
		p.ScaleWidth, p.ScaleHeight,
		p.FrameWidth, p.FrameHeight,
		p.PadX, p.PadY,
		pixelFormat,
	)

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-c:v", videoCodec,
		"-t", strconv.Itoa(durationSec),
		"-pix_fmt", pixelFormat,
		"-vf", vf,
		"-preset", videoPreset,
		"-crf", videoCRF,
		outputPath,
	}

	if err := s.ffmpeg(ctx, "image-to-clip", args); err != nil {
		return fmt.Errorf("ffmpeg image to clip failed: %w", err)
	}
	return nil
}

// MuxAudio attaches an audio track to a silent clip. Video is copied, audio
// re-encoded at a fixed bitrate.
func (s *FFmpegService) MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		outputPath,
	}

	if err := s.ffmpeg(ctx, "mux-audio", args); err != nil {
		return fmt.Errorf("ffmpeg mux audio failed: %w", err)
	}
	return nil
}

// BurnCaption applies a drawtext filter to a clip, copying its audio.
func (s *FFmpegService) BurnCaption(ctx context.Context, inputPath, outputPath, filter string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", filter,
		"-codec:a", "copy",
		outputPath,
	}

	if err := s.ffmpeg(ctx, "caption", args); err != nil {
		return fmt.Errorf("ffmpeg caption overlay failed: %w", err)
	}
	return nil
}

// ConcatenateClips joins clips in order using the concat demuxer. The list
// file is written to listPath. With reencode the output is re-encoded with the
// clip settings; otherwise streams are copied.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, listPath, outputPath string, reencode bool) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	if err := writeConcatList(listPath, clipPaths); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if reencode {
		args = append(args,
			"-c:v", videoCodec,
			"-preset", videoPreset,
			"-crf", videoCRF,
			"-c:a", audioCodec,
			"-b:a", audioBitrate,
		)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, outputPath)

	if err := s.ffmpeg(ctx, "concat", args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// ProbeImageSize returns the pixel dimensions of an image using ffprobe.
func (s *FFmpegService) ProbeImageSize(ctx context.Context, imagePath string) (int, int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		imagePath,
	}

	stdout, _, err := s.runner.Run(ctx, s.ffprobePath, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe image size failed: %w", err)
	}

	var width, height int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(stdout)), "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("failed to parse image size %q: %w", strings.TrimSpace(string(stdout)), err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	return width, height, nil
}

func (s *FFmpegService) ffmpeg(ctx context.Context, step string, args []string) error {
	log.Debug().
		Str("component", "ffmpeg").
		Str("step", step).
		Strs("args", args).
		Msg("running ffmpeg")

	_, _, err := s.runner.Run(ctx, s.ffmpegPath, args...)
	if err != nil {
		var toolErr *apperr.ExternalToolError
		if errors.As(err, &toolErr) {
			log.Error().
				Str("component", "ffmpeg").
				Str("step", step).
				Str("command", toolErr.CommandLine()).
				Int("exit_code", toolErr.ExitCode).
				Str("stderr", toolErr.Stderr).
				Msg("ffmpeg failed")
		}
		return err
	}
	return nil
}

// writeConcatList writes the concat demuxer input file using absolute paths.
func writeConcatList(listPath string, clipPaths []string) error {
	var sb strings.Builder
	for _, p := range clipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve clip path %s: %w", p, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	return nil
}
