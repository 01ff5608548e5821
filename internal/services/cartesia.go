package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bobarin/sceneforge/internal/apperr"
)

const (
	cartesiaBaseURL    = "https://api.cartesia.ai"
	cartesiaAPIVersion = "2024-06-10"
	cartesiaModel      = "sonic-english"

	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

type CartesiaService struct {
	apiKey  string
	baseURL string
	voiceID string
	client  *http.Client
}

// Ensure CartesiaService implements TTSService at compile time.
var _ TTSService = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia service. An empty voiceID uses the default voice.
func NewCartesiaService(apiKey, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	return &CartesiaService{
		apiKey:  apiKey,
		baseURL: cartesiaBaseURL,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string                 `json:"model_id"`
	Transcript   string                 `json:"transcript"`
	Voice        cartesiaVoiceSpecifier `json:"voice"`
	Language     string                 `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat   `json:"output_format"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// GenerateSpeech generates MP3 audio from text using Cartesia's bytes endpoint.
func (s *CartesiaService) GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error) {
	reqBody := cartesiaRequest{
		ModelID:    cartesiaModel,
		Transcript: text,
		Voice:      cartesiaVoiceSpecifier{Mode: "id", ID: s.voiceID},
		Language:   "en",
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Cartesia request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Cartesia request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)

	log.Info().
		Str("component", "cartesia").
		Str("voice_id", s.voiceID).
		Int("text_len", len(text)).
		Msg("generating speech")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &apperr.ExternalServiceError{Service: "cartesia", Err: err}
	}
	defer resp.Body.Close()

	audioData, err := readAudioResponse("cartesia", resp)
	if err != nil {
		return nil, err
	}

	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}
