package render

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/models"
	"github.com/bobarin/sceneforge/internal/services"
)

type toolCall struct {
	op     string
	input  string
	output string
	filter string
	clips  []string
	copy   bool
	dur    int
	place  services.Placement
}

// fakeTool records every operation and writes placeholder output files.
type fakeTool struct {
	mu         sync.Mutex
	calls      []toolCall
	captionErr error
	concatErr  error
	clipErr    map[string]error // keyed by image path
	probeW     int
	probeH     int
}

func (f *fakeTool) record(c toolCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTool) ImageToClip(_ context.Context, imagePath, outputPath string, durationSec int, p services.Placement) error {
	f.record(toolCall{op: "image", input: imagePath, output: outputPath, dur: durationSec, place: p})
	if err := f.clipErr[imagePath]; err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("silent"), 0644)
}

func (f *fakeTool) MuxAudio(_ context.Context, videoPath, audioPath, outputPath string) error {
	f.record(toolCall{op: "mux", input: videoPath, output: outputPath})
	return os.WriteFile(outputPath, []byte("muxed"), 0644)
}

func (f *fakeTool) BurnCaption(_ context.Context, inputPath, outputPath, filter string) error {
	f.record(toolCall{op: "caption", input: inputPath, output: outputPath, filter: filter})
	if f.captionErr != nil {
		return f.captionErr
	}
	return os.WriteFile(outputPath, []byte("captioned"), 0644)
}

func (f *fakeTool) ConcatenateClips(_ context.Context, clipPaths []string, listPath, outputPath string, reencode bool) error {
	f.record(toolCall{op: "concat", output: outputPath, clips: append([]string(nil), clipPaths...), copy: !reencode})
	for _, p := range clipPaths {
		if _, err := os.Stat(p); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outputPath, []byte("partial"), 0644); err != nil {
		return err
	}
	return f.concatErr
}

func (f *fakeTool) ProbeImageSize(_ context.Context, imagePath string) (int, int, error) {
	f.record(toolCall{op: "probe", input: imagePath})
	if f.probeW == 0 {
		return 0, 0, errors.New("probe failed")
	}
	return f.probeW, f.probeH, nil
}

func (f *fakeTool) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.op
	}
	return ops
}

func (f *fakeTool) find(op string) []toolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []toolCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFitFrame(t *testing.T) {
	tests := []struct {
		name       string
		imgW, imgH int
		frameW     int
		frameH     int
		want       services.Placement
	}{
		{
			name: "wide image letterboxed",
			imgW: 2000, imgH: 500, frameW: 1920, frameH: 1080,
			want: services.Placement{FrameWidth: 1920, FrameHeight: 1080, ScaleWidth: 1920, ScaleHeight: 480, PadY: 300},
		},
		{
			name: "square image pillarboxed",
			imgW: 1024, imgH: 1024, frameW: 1920, frameH: 1080,
			want: services.Placement{FrameWidth: 1920, FrameHeight: 1080, ScaleWidth: 1080, ScaleHeight: 1080, PadX: 420},
		},
		{
			name: "equal ratio fits height",
			imgW: 1280, imgH: 720, frameW: 1920, frameH: 1080,
			want: services.Placement{FrameWidth: 1920, FrameHeight: 1080, ScaleWidth: 1920, ScaleHeight: 1080},
		},
		{
			name: "square image in vertical frame",
			imgW: 1024, imgH: 1024, frameW: 1080, frameH: 1920,
			want: services.Placement{FrameWidth: 1080, FrameHeight: 1920, ScaleWidth: 1080, ScaleHeight: 1080, PadY: 420},
		},
		{
			name: "odd padding truncates",
			imgW: 1000, imgH: 999, frameW: 1920, frameH: 1080,
			want: services.Placement{FrameWidth: 1920, FrameHeight: 1080, ScaleWidth: 1081, ScaleHeight: 1080, PadX: 419},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitFrame(tt.imgW, tt.imgH, tt.frameW, tt.frameH)
			if got != tt.want {
				t.Errorf("FitFrame = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderWithCaption(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	audio := filepath.Join(dir, "a.mp3")
	writePNG(t, img, 1024, 1024)
	writeFile(t, audio, "mp3")

	tool := &fakeTool{}
	r := NewRenderer(tool, "/fonts/Arial.ttf", 50)

	clip, err := r.Render(context.Background(), dir, SceneInput{
		Index: 1, ImagePath: img, AudioPath: audio, DurationSec: 4,
		Caption: "Hello: world", Orientation: models.OrientationHorizontal,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !clip.Captioned || !strings.HasSuffix(clip.Path, "scene_1_captioned.mp4") {
		t.Errorf("unexpected clip %+v", clip)
	}

	if got := strings.Join(tool.ops(), ","); got != "image,mux,caption" {
		t.Errorf("ops = %s", got)
	}
	imageCall := tool.find("image")[0]
	if imageCall.dur != 4 || imageCall.place.ScaleWidth != 1080 || imageCall.place.PadX != 420 {
		t.Errorf("unexpected image-to-clip call %+v", imageCall)
	}
	filter := tool.find("caption")[0].filter
	if !strings.Contains(filter, `text='Hello\: world'`) || !strings.Contains(filter, "fontsize=48") {
		t.Errorf("unexpected filter %s", filter)
	}
}

func TestRenderWithoutCaptionSkipsOverlay(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	audio := filepath.Join(dir, "a.mp3")
	writePNG(t, img, 10, 10)
	writeFile(t, audio, "mp3")

	tool := &fakeTool{}
	clip, err := NewRenderer(tool, "", 0).Render(context.Background(), dir, SceneInput{
		Index: 2, ImagePath: img, AudioPath: audio, DurationSec: 5, Orientation: models.OrientationVertical,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if clip.Captioned || len(tool.find("caption")) != 0 {
		t.Error("expected no caption step")
	}
}

func TestRenderCaptionFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	audio := filepath.Join(dir, "a.mp3")
	writePNG(t, img, 10, 10)
	writeFile(t, audio, "mp3")

	tool := &fakeTool{captionErr: &apperr.ExternalToolError{Command: []string{"ffmpeg"}, ExitCode: 1}}
	clip, err := NewRenderer(tool, "", 50).Render(context.Background(), dir, SceneInput{
		Index: 1, ImagePath: img, AudioPath: audio, DurationSec: 5,
		Caption: "text", Orientation: models.OrientationHorizontal,
	})
	if err != nil {
		t.Fatalf("caption failure must not fail the scene: %v", err)
	}
	if clip.Captioned || !strings.HasSuffix(clip.Path, "scene_1_audio.mp4") {
		t.Errorf("expected uncaptioned fallback, got %+v", clip)
	}
}

func TestRenderMissingFiles(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	writePNG(t, img, 10, 10)
	missingAudio := filepath.Join(dir, "nope.mp3")

	tool := &fakeTool{}
	_, err := NewRenderer(tool, "", 50).Render(context.Background(), dir, SceneInput{
		Index: 3, ImagePath: img, AudioPath: missingAudio, DurationSec: 5, Orientation: models.OrientationHorizontal,
	})

	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) || nf.Path != missingAudio {
		t.Fatalf("expected NotFoundError for audio, got %v", err)
	}
	var se *SceneError
	if !errors.As(err, &se) || se.Index != 3 || se.Stage != StageValidate {
		t.Errorf("expected scene error for scene 3, got %v", err)
	}
	if len(tool.ops()) != 0 {
		t.Errorf("no tool calls expected, got %v", tool.ops())
	}
}

func TestRenderProbesUnknownImageFormat(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.webp")
	audio := filepath.Join(dir, "a.mp3")
	writeFile(t, img, "not a png")
	writeFile(t, audio, "mp3")

	tool := &fakeTool{probeW: 2000, probeH: 500}
	if _, err := NewRenderer(tool, "", 50).Render(context.Background(), dir, SceneInput{
		Index: 1, ImagePath: img, AudioPath: audio, DurationSec: 5, Orientation: models.OrientationHorizontal,
	}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(tool.find("probe")) != 1 {
		t.Error("expected ffprobe fallback")
	}
	if p := tool.find("image")[0].place; p.ScaleHeight != 480 || p.PadY != 300 {
		t.Errorf("unexpected placement %+v", p)
	}
}

func TestRenderImageToClipFailure(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img.png")
	audio := filepath.Join(dir, "a.mp3")
	writePNG(t, img, 10, 10)
	writeFile(t, audio, "mp3")

	toolErr := &apperr.ExternalToolError{Command: []string{"ffmpeg", "-y"}, ExitCode: 1, Stderr: "boom"}
	tool := &fakeTool{clipErr: map[string]error{img: toolErr}}

	_, err := NewRenderer(tool, "", 50).Render(context.Background(), dir, SceneInput{
		Index: 1, ImagePath: img, AudioPath: audio, DurationSec: 5, Orientation: models.OrientationHorizontal,
	})

	var te *apperr.ExternalToolError
	if !errors.As(err, &te) || te.ExitCode != 1 {
		t.Fatalf("expected tool error, got %v", err)
	}
	var se *SceneError
	if !errors.As(err, &se) || se.Stage != StageImageClip {
		t.Errorf("expected image-to-clip stage, got %v", err)
	}
	if len(tool.find("mux")) != 0 {
		t.Error("mux must not run after image-to-clip failure")
	}
}
