package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/sceneforge/internal/apperr"
)

type recordedCall struct {
	name string
	args []string
}

type fakeRunner struct {
	calls  []recordedCall
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return []byte(f.stdout), nil, f.err
}

func (c recordedCall) joined() string { return strings.Join(c.args, " ") }

func TestImageToClipArgs(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewFFmpegServiceWithRunner("", "", runner)

	p := Placement{FrameWidth: 1920, FrameHeight: 1080, ScaleWidth: 1440, ScaleHeight: 1080, PadX: 240}
	if err := svc.ImageToClip(context.Background(), "in.png", "out.mp4", 7, p); err != nil {
		t.Fatalf("ImageToClip failed: %v", err)
	}

	if len(runner.calls) != 1 || runner.calls[0].name != "ffmpeg" {
		t.Fatalf("unexpected calls %+v", runner.calls)
	}
	got := runner.calls[0].joined()
	want := "-y -loop 1 -i in.png -c:v libx264 -t 7 -pix_fmt yuv420p " +
		"-vf scale=1440:1080:force_original_aspect_ratio=decrease,pad=1920:1080:240:0:color=black,format=yuv420p " +
		"-preset slow -crf 18 out.mp4"
	if got != want {
		t.Errorf("args =\n%s\nwant\n%s", got, want)
	}
}

func TestMuxAudioAndCaptionArgs(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewFFmpegServiceWithRunner("/usr/bin/ffmpeg", "", runner)
	ctx := context.Background()

	if err := svc.MuxAudio(ctx, "silent.mp4", "a.mp3", "muxed.mp4"); err != nil {
		t.Fatalf("MuxAudio failed: %v", err)
	}
	if err := svc.BurnCaption(ctx, "muxed.mp4", "cap.mp4", "drawtext=text='x'"); err != nil {
		t.Fatalf("BurnCaption failed: %v", err)
	}

	if runner.calls[0].name != "/usr/bin/ffmpeg" {
		t.Errorf("expected configured ffmpeg path, got %s", runner.calls[0].name)
	}
	if got := runner.calls[0].joined(); got != "-y -i silent.mp4 -i a.mp3 -c:v copy -c:a aac -b:a 192k muxed.mp4" {
		t.Errorf("unexpected mux args: %s", got)
	}
	if got := runner.calls[1].joined(); got != "-y -i muxed.mp4 -vf drawtext=text='x' -codec:a copy cap.mp4" {
		t.Errorf("unexpected caption args: %s", got)
	}
}

func TestConcatenateClipsWritesList(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	svc := NewFFmpegServiceWithRunner("", "", runner)

	clips := []string{filepath.Join(dir, "clip_1.mp4"), filepath.Join(dir, "clip_2.mp4")}
	listPath := filepath.Join(dir, "concat.txt")

	if err := svc.ConcatenateClips(context.Background(), clips, listPath, filepath.Join(dir, "final.mp4"), true); err != nil {
		t.Fatalf("ConcatenateClips failed: %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("list file not written: %v", err)
	}
	wantList := "file '" + clips[0] + "'\nfile '" + clips[1] + "'\n"
	if string(data) != wantList {
		t.Errorf("list = %q, want %q", data, wantList)
	}

	args := runner.calls[0].joined()
	if !strings.Contains(args, "-f concat -safe 0 -i "+listPath) || !strings.Contains(args, "-c:v libx264 -preset slow -crf 18 -c:a aac -b:a 192k") {
		t.Errorf("unexpected concat args: %s", args)
	}
}

func TestConcatenateClipsStreamCopy(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	svc := NewFFmpegServiceWithRunner("", "", runner)

	err := svc.ConcatenateClips(context.Background(), []string{filepath.Join(dir, "a.mp4")}, filepath.Join(dir, "l.txt"), filepath.Join(dir, "o.mp4"), false)
	if err != nil {
		t.Fatalf("ConcatenateClips failed: %v", err)
	}
	if args := runner.calls[0].joined(); !strings.Contains(args, "-c copy") || strings.Contains(args, "libx264") {
		t.Errorf("expected stream copy, got %s", args)
	}
}

func TestConcatenateClipsEmpty(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewFFmpegServiceWithRunner("", "", runner)
	if err := svc.ConcatenateClips(context.Background(), nil, "l.txt", "o.mp4", true); err == nil {
		t.Fatal("expected error for empty clip list")
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(runner.calls))
	}
}

func TestProbeImageSize(t *testing.T) {
	runner := &fakeRunner{stdout: "1024x768\n"}
	svc := NewFFmpegServiceWithRunner("", "/opt/ffprobe", runner)

	w, h, err := svc.ProbeImageSize(context.Background(), "img.webp")
	if err != nil {
		t.Fatalf("ProbeImageSize failed: %v", err)
	}
	if w != 1024 || h != 768 {
		t.Errorf("got %dx%d", w, h)
	}
	if runner.calls[0].name != "/opt/ffprobe" {
		t.Errorf("expected ffprobe path, got %s", runner.calls[0].name)
	}
}

func TestProbeImageSizeGarbage(t *testing.T) {
	svc := NewFFmpegServiceWithRunner("", "", &fakeRunner{stdout: "N/A"})
	if _, _, err := svc.ProbeImageSize(context.Background(), "img.webp"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestToolErrorPropagates(t *testing.T) {
	toolErr := &apperr.ExternalToolError{Command: []string{"ffmpeg"}, ExitCode: 1, Stderr: "boom"}
	svc := NewFFmpegServiceWithRunner("", "", &fakeRunner{err: toolErr})

	err := svc.MuxAudio(context.Background(), "v.mp4", "a.mp3", "o.mp4")
	var got *apperr.ExternalToolError
	if !errors.As(err, &got) || got.ExitCode != 1 {
		t.Fatalf("expected wrapped tool error, got %v", err)
	}
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	var toolErr *apperr.ExternalToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if toolErr.ExitCode == -1 {
		t.Skipf("sh unavailable: %v", err)
	}
	if toolErr.ExitCode != 3 || !strings.Contains(toolErr.Stderr, "oops") {
		t.Errorf("unexpected tool error %+v", toolErr)
	}
}
