package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
)

// ---------------------------------------------------------------------------
// Deepgram Text-to-Speech Service
// Uses the Aura speak endpoint; the response body is the MP3 file.
// ---------------------------------------------------------------------------

const (
	deepgramBaseURL      = "https://api.deepgram.com"
	deepgramDefaultModel = "aura-asteria-en"
)

// DeepgramService handles text-to-speech via the Deepgram API.
type DeepgramService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Ensure DeepgramService implements TTSService at compile time.
var _ TTSService = (*DeepgramService)(nil)

func NewDeepgramService(apiKey, model string) *DeepgramService {
	if model == "" {
		model = deepgramDefaultModel
	}
	return &DeepgramService{
		apiKey:  apiKey,
		model:   model,
		baseURL: deepgramBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type deepgramRequest struct {
	Text string `json:"text"`
}

// GenerateSpeech converts text to speech using Deepgram.
func (s *DeepgramService) GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error) {
	jsonData, err := json.Marshal(deepgramRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Deepgram request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/speak?model=%s", s.baseURL, url.QueryEscape(s.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+s.apiKey)

	log.Info().
		Str("component", "deepgram").
		Str("model", s.model).
		Int("text_len", len(text)).
		Msg("generating speech")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &apperr.ExternalServiceError{Service: "deepgram", Err: err}
	}
	defer resp.Body.Close()

	audioData, err := readAudioResponse("deepgram", resp)
	if err != nil {
		return nil, err
	}

	log.Info().Str("component", "deepgram").Int("bytes", len(audioData)).Msg("speech generated")

	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}
