package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("No scenes provided"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("scene 2: %w", NotFound("audio file", "static/audio/a.mp3")), http.StatusNotFound},
		{"rate limited", &RateLimitedError{Limit: 2}, http.StatusTooManyRequests},
		{"upstream", &ExternalServiceError{Service: "deepgram", StatusCode: 500}, http.StatusBadGateway},
		{"tool", &ExternalToolError{Command: []string{"ffmpeg"}, ExitCode: 1}, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusCode(tc.err); got != tc.want {
				t.Errorf("StatusCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestExternalToolErrorMessage(t *testing.T) {
	err := &ExternalToolError{
		Command:  []string{"ffmpeg", "-y", "-i", "in.mp4"},
		ExitCode: 234,
		Stderr:   "frame=1\nin.mp4: No such file or directory\n",
	}

	want := "ffmpeg exited with code 234: in.mp4: No such file or directory"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.CommandLine() != "ffmpeg -y -i in.mp4" {
		t.Errorf("CommandLine() = %q", err.CommandLine())
	}
}

func TestNotFoundMessage(t *testing.T) {
	if got := NotFound("scene report", "").Error(); got != "scene report not found" {
		t.Errorf("unexpected message %q", got)
	}
	if got := NotFound("image file", "/static/images/x.png").Error(); got != "image file not found: /static/images/x.png" {
		t.Errorf("unexpected message %q", got)
	}
}
