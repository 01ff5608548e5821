package services

import (
	"strings"
	"testing"

	"github.com/bobarin/sceneforge/internal/models"
)

func TestFormatCaptionWraps(t *testing.T) {
	got := FormatCaption("Hello world this is a test caption that is somewhat long", 50)
	want := `Hello world this is a test caption that is\nsomewhat long`
	if got != want {
		t.Errorf("FormatCaption() = %q, want %q", got, want)
	}
}

func TestFormatCaptionLineBreaks(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"second line fills to width", "aaaa bbbb cccc ddddd", 10, `aaaa bbbb\ncccc ddddd`},
		{"second line overflows", "aaaa bbbb cccc dddddd", 10, `aaaa bbbb\ncccc\ndddddd`},
		{"third line fills to width", "aaaa bbbb cccc ddddd eeeee fffff", 10, `aaaa bbbb\ncccc ddddd\neeeee\nfffff`},
		{"first line keeps one spare column", "aaaa bbbbb", 10, `aaaa\nbbbbb`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCaption(tt.text, tt.width); got != tt.want {
				t.Errorf("FormatCaption(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestFormatCaptionEscapes(t *testing.T) {
	got := FormatCaption("It's 5:00, [ok]", 50)
	want := `It'\\\''s 5\:00\, \[ok\]`
	if got != want {
		t.Errorf("FormatCaption() = %q, want %q", got, want)
	}
}

func TestFormatCaptionEmpty(t *testing.T) {
	if got := FormatCaption("   ", 50); got != "" {
		t.Errorf("expected empty caption, got %q", got)
	}
}

func TestFormatCaptionLongWord(t *testing.T) {
	got := FormatCaption("a supercalifragilisticexpialidocious day", 10)
	want := `a\nsupercalifragilisticexpialidocious\nday`
	if got != want {
		t.Errorf("FormatCaption() = %q, want %q", got, want)
	}
}

func TestFormatCaptionLineWidth(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 6)
	for _, width := range []int{12, 20, 35, 50} {
		for _, line := range strings.Split(FormatCaption(text, width), `\n`) {
			if len(line) > width {
				t.Errorf("width %d: line %q is %d chars", width, line, len(line))
			}
			if line == "" {
				t.Errorf("width %d: empty line in output", width)
			}
		}
	}
}

func TestDrawtextFilter(t *testing.T) {
	filter := DrawtextFilter(CaptionStyleFor(models.OrientationVertical), "static/fonts/OpenSans-Bold.ttf", `Hi\nthere`)

	for _, part := range []string{
		"drawtext=fontfile=static/fonts/OpenSans-Bold.ttf",
		`text='Hi\nthere'`,
		"fontsize=52",
		"line_spacing=22",
		"x=(w-text_w)/2",
		"y=(h-text_h-150)",
		"boxcolor=black@0.85",
		"boxborderw=20",
		"borderw=3",
		"shadowcolor=black@0.7",
	} {
		if !strings.Contains(filter, part) {
			t.Errorf("filter missing %q: %s", part, filter)
		}
	}
}

func TestCaptionStyleForUnknownOrientation(t *testing.T) {
	if got := CaptionStyleFor("diagonal"); got.FontSize != 48 {
		t.Errorf("expected horizontal fallback, got %+v", got)
	}
}

func TestEscapeFFmpegFilterPath(t *testing.T) {
	got := escapeFFmpegFilterPath(`C:\fonts\it's.ttf`)
	want := `C\:\\fonts\\it'\''s.ttf`
	if got != want {
		t.Errorf("escapeFFmpegFilterPath() = %q, want %q", got, want)
	}
}
