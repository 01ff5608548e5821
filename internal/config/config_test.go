package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIPort != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.APIPort)
	}
	if cfg.ImageProvider != "openai" || cfg.TTSProvider != "deepgram" {
		t.Errorf("unexpected providers: image=%s tts=%s", cfg.ImageProvider, cfg.TTSProvider)
	}
	if cfg.MaxGenerationsPerDay != 2 {
		t.Errorf("expected daily cap 2, got %d", cfg.MaxGenerationsPerDay)
	}
	if cfg.CaptionMaxChars != 50 {
		t.Errorf("expected caption width 50, got %d", cfg.CaptionMaxChars)
	}
	if cfg.ConcatMode != "reencode" {
		t.Errorf("expected reencode concat, got %s", cfg.ConcatMode)
	}
	if !cfg.ServeStatic {
		t.Error("expected static serving enabled by default")
	}
	if !strings.HasSuffix(cfg.FontPath, "OpenSans-Bold.ttf") {
		t.Errorf("unexpected font path %s", cfg.FontPath)
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing openai key",
			env:     map[string]string{"OPENAI_API_KEY": "", "DEEPGRAM_API_KEY": "dg"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "gemini without key",
			env:     map[string]string{"IMAGE_PROVIDER": "gemini", "GEMINI_API_KEY": "", "DEEPGRAM_API_KEY": "dg"},
			wantErr: "GEMINI_API_KEY",
		},
		{
			name:    "unknown tts provider",
			env:     map[string]string{"OPENAI_API_KEY": "sk", "TTS_PROVIDER": "polly"},
			wantErr: "TTS_PROVIDER",
		},
		{
			name:    "elevenlabs without key",
			env:     map[string]string{"OPENAI_API_KEY": "sk", "TTS_PROVIDER": "elevenlabs", "ELEVENLABS_API_KEY": ""},
			wantErr: "ELEVENLABS_API_KEY",
		},
		{
			name:    "bad concat mode",
			env:     map[string]string{"OPENAI_API_KEY": "sk", "DEEPGRAM_API_KEY": "dg", "CONCAT_MODE": "fast"},
			wantErr: "CONCAT_MODE",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadClampsConcurrency(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RENDER_CONCURRENCY", "0")
	t.Setenv("MAX_CONCURRENT_ASSEMBLIES", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RenderConcurrency != 1 || cfg.MaxConcurrentAssemblies != 1 {
		t.Errorf("expected clamped concurrency, got render=%d assemblies=%d", cfg.RenderConcurrency, cfg.MaxConcurrentAssemblies)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG_TRUE", "true")
	t.Setenv("FLAG_BAD", "maybe")

	if !getEnvBool("FLAG_TRUE", false) {
		t.Error("expected true")
	}
	if !getEnvBool("FLAG_BAD", true) {
		t.Error("expected default for unparsable value")
	}
	if getEnvBool("FLAG_UNSET", false) {
		t.Error("expected default for unset value")
	}
}
