package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bobarin/sceneforge/internal/apperr"
)

// ---------------------------------------------------------------------------
// TTSService is the common interface for text-to-speech providers.
// Every speech provider implements it; the handlers only see the interface.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData []byte
	Format    string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error)
}

// readAudioResponse turns a provider HTTP response into audio bytes or an
// ExternalServiceError.
func readAudioResponse(service string, resp *http.Response) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apperr.ExternalServiceError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.ExternalServiceError{Service: service, Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(audioData) == 0 {
		return nil, &apperr.ExternalServiceError{Service: service, Err: fmt.Errorf("empty audio")}
	}
	return audioData, nil
}
