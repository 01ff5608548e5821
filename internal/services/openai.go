package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/models"
)

// OpenAIOptions selects models for each OpenAI-backed capability.
type OpenAIOptions struct {
	ImageModel  string // Default: dall-e-2
	ImageSize   string // Default: 1024x1024
	ScriptModel string // Default: gpt-4o-mini
	Voice       string // Default: alloy
}

type OpenAIService struct {
	client *openai.Client
	opts   OpenAIOptions
}

var (
	_ ImageGenerator = (*OpenAIService)(nil)
	_ TTSService     = (*OpenAIService)(nil)
)

func NewOpenAIService(apiKey string, opts OpenAIOptions) *OpenAIService {
	return NewOpenAIServiceWithConfig(openai.DefaultConfig(apiKey), opts)
}

// NewOpenAIServiceWithConfig builds the service from an explicit client config.
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, opts OpenAIOptions) *OpenAIService {
	if opts.ImageModel == "" {
		opts.ImageModel = openai.CreateImageModelDallE2
	}
	if opts.ImageSize == "" {
		opts.ImageSize = openai.CreateImageSize1024x1024
	}
	if opts.ScriptModel == "" {
		opts.ScriptModel = openai.GPT4oMini
	}
	if opts.Voice == "" {
		opts.Voice = string(openai.VoiceAlloy)
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// ---------------------------------------------------------------------------
// Image generation
// ---------------------------------------------------------------------------

// GenerateImage requests one image and returns its download URL.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	log.Info().
		Str("component", "openai").
		Str("model", s.opts.ImageModel).
		Int("prompt_len", len(prompt)).
		Msg("generating image")

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.opts.ImageModel,
		N:              1,
		Size:           s.opts.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, &apperr.ExternalServiceError{Service: "openai", Err: errors.New("no image returned")}
	}

	return &ImageResult{URL: resp.Data[0].URL, Format: "webp"}, nil
}

// ---------------------------------------------------------------------------
// Speech
// ---------------------------------------------------------------------------

// GenerateSpeech converts text to MP3 speech with the tts-1 model.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error) {
	log.Info().
		Str("component", "openai").
		Str("voice", s.opts.Voice).
		Int("text_len", len(text)).
		Msg("generating speech")

	raw, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(s.opts.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	defer raw.Close()

	audioData, err := io.ReadAll(raw)
	if err != nil {
		return nil, &apperr.ExternalServiceError{Service: "openai", Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(audioData) == 0 {
		return nil, &apperr.ExternalServiceError{Service: "openai", Err: errors.New("empty audio")}
	}

	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}

// ---------------------------------------------------------------------------
// Script writing
// ---------------------------------------------------------------------------

// GenerateScript writes a scene-structured short video script about topic.
func (s *OpenAIService) GenerateScript(ctx context.Context, topic string, durationSec int) (string, error) {
	content, err := s.complete(ctx, buildScriptPrompt(topic, durationSec), 0.5, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", &apperr.ExternalServiceError{Service: "openai", Err: errors.New("no script generated")}
	}
	return content, nil
}

// SplitScript asks the model to break a script into scenes. Callers fall back
// to the line parser when this fails.
func (s *OpenAIService) SplitScript(ctx context.Context, script string) ([]models.ScriptScene, error) {
	content, err := s.complete(ctx, buildSplitPrompt(script), 0.7, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Scenes []models.ScriptScene `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		log.Warn().
			Str("component", "openai").
			Err(err).
			Str("raw", truncateString(content, 500)).
			Msg("scene split parse failed")
		return nil, fmt.Errorf("failed to parse scenes: %w", err)
	}
	if len(payload.Scenes) == 0 {
		return nil, errors.New("model returned no scenes")
	}

	for i := range payload.Scenes {
		if payload.Scenes[i].ID == 0 {
			payload.Scenes[i].ID = i + 1
		}
	}
	return payload.Scenes, nil
}

func (s *OpenAIService) complete(ctx context.Context, prompt string, temperature float32, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.opts.ScriptModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature:    temperature,
		MaxTokens:      1024,
		ResponseFormat: format,
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.ExternalServiceError{Service: "openai", Err: errors.New("no response from openai")}
	}
	return resp.Choices[0].Message.Content, nil
}

func buildScriptPrompt(topic string, durationSec int) string {
	if durationSec <= 0 {
		durationSec = 30
	}
	return fmt.Sprintf(`Create a %d-second video script for social media shorts about: %s.
Follow this EXACT structure for EACH scene:

Scene [NUMBER]:
Time: [START]-[END] seconds
Visual: Describe the scene, objects, and setting without including any people. Focus on the key items, props, and environment that will be shown.
Voiceover: [SCRIPT TEXT]

Make sure each scene follows this identical format and structure. The visuals should focus on objects, props, settings and environments. Do not include any people in the visual descriptions. Divide the %d seconds into 3-4 evenly timed scenes.`,
		durationSec, topic, durationSec)
}

func buildSplitPrompt(script string) string {
	return `Analyze this video script and break it down into scenes. Write a unique, detailed visual description for each scene that matches what its voiceover talks about: props, setting, lighting and camera angle.

Return a JSON object of the form {"scenes": [...]} where each scene has:
- id (number)
- time (string, format: "X-Y seconds")
- visual (string, detailed visual description)
- voiceover (string, exact voiceover text)

Script to analyze:
` + script
}

// wrapOpenAIError converts client errors into ExternalServiceError.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.ExternalServiceError{
			Service:    "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apperr.ExternalServiceError{
			Service:    "openai",
			StatusCode: reqErr.HTTPStatusCode,
			Body:       string(reqErr.Body),
			Err:        err,
		}
	}
	return &apperr.ExternalServiceError{Service: "openai", Err: err}
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
