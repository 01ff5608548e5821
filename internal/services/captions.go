package services

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bobarin/sceneforge/internal/models"
)

// ---------------------------------------------------------------------------
// Burned-in captions
//
// Narration text is greedily wrapped, escaped for the drawtext filter and
// rendered centered near the bottom of the frame inside a translucent box.
// ---------------------------------------------------------------------------

// DefaultCaptionWidth is the maximum number of characters per caption line.
const DefaultCaptionWidth = 50

// captionLineBreak is the two-character drawtext line break, not a newline byte.
const captionLineBreak = `\n`

var captionEscaper = strings.NewReplacer(
	`'`, `'\\\''`,
	`:`, `\:`,
	`,`, `\,`,
	`[`, `\[`,
	`]`, `\]`,
)

// CaptionStyle holds the drawtext parameters for one orientation.
type CaptionStyle struct {
	FontSize    int
	Y           string // drawtext y expression
	LineSpacing int
	BoxOpacity  float64
	BoxPadding  int
	FontColor   string
	BorderWidth int
	BorderColor string
}

var captionStyles = map[models.Orientation]CaptionStyle{
	models.OrientationHorizontal: {
		FontSize:    48,
		Y:           "(h-text_h-100)",
		LineSpacing: 20,
		BoxOpacity:  0.8,
		BoxPadding:  15,
		FontColor:   "white",
		BorderWidth: 3,
		BorderColor: "black@0.9",
	},
	models.OrientationVertical: {
		FontSize:    52,
		Y:           "(h-text_h-150)",
		LineSpacing: 22,
		BoxOpacity:  0.85,
		BoxPadding:  20,
		FontColor:   "white",
		BorderWidth: 3,
		BorderColor: "black@0.9",
	},
}

// CaptionStyleFor returns the style for o, falling back to horizontal.
func CaptionStyleFor(o models.Orientation) CaptionStyle {
	if style, ok := captionStyles[o]; ok {
		return style
	}
	return captionStyles[models.OrientationHorizontal]
}

// FormatCaption wraps text to maxWidth characters per line, escapes each line
// for drawtext and joins the lines with a literal \n marker.
// Words longer than maxWidth are kept whole on their own line.
func FormatCaption(text string, maxWidth int) string {
	if maxWidth < 1 {
		maxWidth = DefaultCaptionWidth
	}

	var (
		lines      []string
		current    []string
		currentLen int
	)
	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if currentLen+wordLen+1 <= maxWidth {
			current = append(current, word)
			currentLen += wordLen + 1
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{word}
		currentLen = wordLen
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	escaped := make([]string, 0, len(lines))
	for _, line := range lines {
		escaped = append(escaped, captionEscaper.Replace(line))
	}
	return strings.Join(escaped, captionLineBreak)
}

// DrawtextFilter builds the -vf expression that burns an already formatted
// caption into a clip.
func DrawtextFilter(style CaptionStyle, fontPath, formatted string) string {
	return fmt.Sprintf(
		"drawtext=fontfile=%s:text='%s':fontcolor=%s:fontsize=%d:line_spacing=%d"+
			":x=(w-text_w)/2:y=%s:box=1:boxcolor=black@%s:boxborderw=%d"+
			":bordercolor=%s:borderw=%d:fix_bounds=true"+
			":shadowcolor=black@0.7:shadowx=2:shadowy=2:expansion=normal",
		escapeFFmpegFilterPath(fontPath),
		formatted,
		style.FontColor,
		style.FontSize,
		style.LineSpacing,
		style.Y,
		strconv.FormatFloat(style.BoxOpacity, 'f', -1, 64),
		style.BoxPadding,
		style.BorderColor,
		style.BorderWidth,
	)
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}
