// Package script holds the free-text heuristics used at the HTTP boundary:
// recovering a scene number from a prompt, isolating the narrated part of a
// voice request and splitting a written script into scenes.
package script

import (
	"bufio"
	"strings"
	"unicode"

	"github.com/bobarin/sceneforge/internal/models"
)

// DefaultSceneNumber is used when no "Scene N" marker can be found.
const DefaultSceneNumber = "1"

// ExtractSceneNumber returns the digits following the first "Scene" marker
// in text, or DefaultSceneNumber.
func ExtractSceneNumber(text string) string {
	idx := strings.Index(text, "Scene")
	if idx < 0 {
		return DefaultSceneNumber
	}

	rest := strings.TrimLeftFunc(text[idx+len("Scene"):], unicode.IsSpace)
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	number := strings.TrimLeft(rest[:end], "0")
	if number == "" {
		return DefaultSceneNumber
	}
	return number
}

// ExtractVoiceover returns the text after a "Voiceover" heading line or a
// "Voiceover:" label. Text without either is returned trimmed.
func ExtractVoiceover(text string) string {
	if _, after, ok := strings.Cut(text, "Voiceover\n"); ok {
		if v := strings.TrimSpace(after); v != "" {
			return v
		}
	}
	if _, after, ok := strings.Cut(text, "Voiceover:"); ok {
		if v := strings.TrimSpace(after); v != "" {
			return v
		}
	}
	return strings.TrimSpace(text)
}

// Parse splits a script written as repeated
//
//	Scene N:
//	Time: a-b seconds
//	Visual: ...
//	Voiceover: ...
//
// blocks into scenes. Scene ids are assigned sequentially. A scene without a
// visual description borrows its voiceover so it can still be illustrated.
func Parse(text string) []models.ScriptScene {
	var (
		scenes  []models.ScriptScene
		current *models.ScriptScene
	)

	flush := func() {
		if current == nil {
			return
		}
		if current.Visual == "" && current.Voiceover != "" {
			current.Visual = current.Voiceover
		}
		scenes = append(scenes, *current)
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "Scene"):
			flush()
			current = &models.ScriptScene{ID: len(scenes) + 1}
		case current == nil:
			continue
		case strings.Contains(line, "Time:"):
			current.Time = valueAfter(line, "Time:")
		case strings.Contains(line, "Visual:"):
			current.Visual = valueAfter(line, "Visual:")
		case strings.Contains(line, "Voiceover:"):
			current.Voiceover = valueAfter(line, "Voiceover:")
		}
	}
	flush()

	return scenes
}

func valueAfter(line, label string) string {
	_, after, _ := strings.Cut(line, label)
	return strings.TrimSpace(after)
}
