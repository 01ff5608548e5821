package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/bobarin/sceneforge/internal/apperr"
)

// ---------------------------------------------------------------------------
// Gemini (Imagen) Image Generation Service
// Uses the Google Gen AI SDK; images come back inline as bytes.
// ---------------------------------------------------------------------------

const defaultImagenModel = "imagen-3.0-generate-002"

type GeminiService struct {
	apiKey string
	model  string
}

var _ ImageGenerator = (*GeminiService)(nil)

func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = defaultImagenModel
	}
	return &GeminiService{
		apiKey: apiKey,
		model:  model,
	}
}

// GenerateImage generates a single PNG image for prompt.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Info().
		Str("component", "gemini").
		Str("model", s.model).
		Int("prompt_len", len(prompt)).
		Msg("generating image")

	resp, err := client.Models.GenerateImages(ctx, s.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, &apperr.ExternalServiceError{Service: "gemini", Err: err}
	}

	for _, generated := range resp.GeneratedImages {
		if generated == nil {
			continue
		}
		if generated.RAIFilteredReason != "" {
			return nil, &apperr.ExternalServiceError{
				Service: "gemini",
				Err:     fmt.Errorf("image filtered: %s", generated.RAIFilteredReason),
			}
		}
		if generated.Image != nil && len(generated.Image.ImageBytes) > 0 {
			return &ImageResult{
				Data:   generated.Image.ImageBytes,
				Format: extensionForMIME(generated.Image.MIMEType),
			}, nil
		}
	}

	return nil, &apperr.ExternalServiceError{Service: "gemini", Err: errors.New("no image data in response")}
}

func extensionForMIME(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
