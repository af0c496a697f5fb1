package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"GOOGLE_BOOKS_API_KEY", "GOOGLE_BOOKS_URL", "OPEN_LIBRARY_URL", "BOOKCOVERS_PROVIDERS",
	"BOOKCOVERS_LANGUAGE", "BOOKCOVERS_MAX_RESULTS", "BOOKCOVERS_MIN_INTERVAL",
	"BOOKCOVERS_RATE_LIMIT_BACKOFF", "BOOKCOVERS_REQUEST_TIMEOUT", "BOOKCOVERS_CACHE_SIZE",
	"BOOKCOVERS_ALIASES_FILE", "BOOKCOVERS_VISUAL", "BOOKCOVERS_VISUAL_REQUIRED", "VISUAL_PROVIDER", "OLLAMA_URL", "OLLAMA_MODEL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
	"BOOKCOVERS_IMAGE_QUALITY_THRESHOLD",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.Providers, []string{ProviderGoogleBooks, ProviderOpenLibrary}) {
		t.Errorf("Unexpected providers %v", cfg.Providers)
	}
	if cfg.Language != "ja" || cfg.MaxResults != 10 || cfg.CacheSize != 500 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.MinInterval != time.Second || cfg.RateLimitBackoff != 5*time.Second || cfg.RequestTimeout != 5*time.Second {
		t.Errorf("Unexpected durations %v %v %v", cfg.MinInterval, cfg.RateLimitBackoff, cfg.RequestTimeout)
	}
	if cfg.Visual || cfg.VisualRequired {
		t.Error("Visual check should be off by default")
	}
	if cfg.ImageQualityThreshold != 60 {
		t.Errorf("Expected quality threshold 60, got %v", cfg.ImageQualityThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKCOVERS_PROVIDERS", " OpenLibrary ")
	t.Setenv("BOOKCOVERS_MIN_INTERVAL", "250ms")
	t.Setenv("BOOKCOVERS_RATE_LIMIT_BACKOFF", "2")
	t.Setenv("BOOKCOVERS_CACHE_SIZE", "50")
	t.Setenv("BOOKCOVERS_VISUAL", "true")
	t.Setenv("BOOKCOVERS_VISUAL_REQUIRED", "1")
	t.Setenv("VISUAL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Providers, []string{ProviderOpenLibrary}) {
		t.Errorf("Unexpected providers %v", cfg.Providers)
	}
	if cfg.MinInterval != 250*time.Millisecond || cfg.RateLimitBackoff != 2*time.Second {
		t.Errorf("Unexpected durations %v %v", cfg.MinInterval, cfg.RateLimitBackoff)
	}
	if cfg.CacheSize != 50 || !cfg.Visual || !cfg.VisualRequired || cfg.VisualModel() != "gemini-1.5-flash" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad int", env: map[string]string{"BOOKCOVERS_MAX_RESULTS": "ten"}, want: "BOOKCOVERS_MAX_RESULTS"},
		{name: "out of range", env: map[string]string{"BOOKCOVERS_MAX_RESULTS": "100"}, want: "between 1 and 40"},
		{name: "unknown provider", env: map[string]string{"BOOKCOVERS_PROVIDERS": "amazon"}, want: "amazon"},
		{name: "bad bool", env: map[string]string{"BOOKCOVERS_VISUAL": "maybe"}, want: "BOOKCOVERS_VISUAL"},
		{name: "bad duration", env: map[string]string{"BOOKCOVERS_REQUEST_TIMEOUT": "soon"}, want: "BOOKCOVERS_REQUEST_TIMEOUT"},
		{name: "missing openai key", env: map[string]string{"BOOKCOVERS_VISUAL": "1", "VISUAL_PROVIDER": "openai"}, want: "OPENAI_API_KEY"},
		{name: "unknown visual provider", env: map[string]string{"BOOKCOVERS_VISUAL": "1", "VISUAL_PROVIDER": "clip"}, want: "clip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Expected an error")
			}
			// Decoding errors name the lower-cased key
			if !strings.Contains(strings.ToUpper(err.Error()), strings.ToUpper(tt.want)) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadIgnoresUnknownVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOOKCOVERS_UNUSED", "x")
	t.Setenv("PATH_EXTRA", "y")
	t.Setenv("OLLAMA_URL", "  http://ollama:11434  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	expected := defaultConfig()
	expected.OllamaURL = "http://ollama:11434"
	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf("Expected defaults plus trimmed OLLAMA_URL, got %+v", cfg)
	}
}
