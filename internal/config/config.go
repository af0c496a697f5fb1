// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Provider names accepted in BOOKCOVERS_PROVIDERS.
const (
	ProviderGoogleBooks = "googlebooks"
	ProviderOpenLibrary = "openlibrary"
)

// Visual provider names accepted in VISUAL_PROVIDER.
const (
	VisualOllama = "ollama"
	VisualOpenAI = "openai"
	VisualGemini = "gemini"
)

// Config is keyed by the lower-cased environment variable names.
type Config struct {
	GoogleBooksAPIKey string `koanf:"google_books_api_key"`
	GoogleBooksURL    string `koanf:"google_books_url"`
	OpenLibraryURL    string `koanf:"open_library_url"`

	Providers        []string      `koanf:"bookcovers_providers"`
	Language         string        `koanf:"bookcovers_language"`
	MaxResults       int           `koanf:"bookcovers_max_results"`
	MinInterval      time.Duration `koanf:"bookcovers_min_interval"`
	RateLimitBackoff time.Duration `koanf:"bookcovers_rate_limit_backoff"`
	RequestTimeout   time.Duration `koanf:"bookcovers_request_timeout"`

	CacheSize   int    `koanf:"bookcovers_cache_size"`
	AliasesFile string `koanf:"bookcovers_aliases_file"`

	Visual                bool    `koanf:"bookcovers_visual"`
	VisualRequired        bool    `koanf:"bookcovers_visual_required"` // placeholder instead of an unchecked cover when vision is down
	VisualProvider        string  `koanf:"visual_provider"`
	ImageQualityThreshold float64 `koanf:"bookcovers_image_quality_threshold"`

	OllamaURL    string `koanf:"ollama_url"`
	OllamaModel  string `koanf:"ollama_model"`
	OpenAIAPIKey string `koanf:"openai_api_key"`
	OpenAIModel  string `koanf:"openai_model"`
	GeminiAPIKey string `koanf:"gemini_api_key"`
	GeminiModel  string `koanf:"gemini_model"`
}

func defaultConfig() Config {
	return Config{
		Providers:             []string{ProviderGoogleBooks, ProviderOpenLibrary},
		Language:              "ja",
		MaxResults:            10,
		MinInterval:           time.Second,
		RateLimitBackoff:      5 * time.Second,
		RequestTimeout:        5 * time.Second,
		CacheSize:             500,
		VisualProvider:        VisualOllama,
		ImageQualityThreshold: 60,
		OllamaModel:           "mistral-small3.2:24b",
		OpenAIModel:           "gpt-4o",
		GeminiModel:           "gemini-1.5-flash",
	}
}

// knownKeys lists the koanf paths read from the environment; anything else
// in the environment is ignored.
var knownKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = true
	}
	return keys
}()

var (
	sliceKeys    = []string{"bookcovers_providers"}
	durationKeys = []string{"bookcovers_min_interval", "bookcovers_rate_limit_backoff", "bookcovers_request_timeout"}
)

// Load layers the environment over the defaults and validates the result.
// Empty variables count as unset.
func Load() (Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(key)
		value = strings.TrimSpace(value)
		if !knownKeys[key] || value == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errs []error
	if err := processSliceFields(k); err != nil {
		errs = append(errs, err)
	}
	if err := processDurationFields(k); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// processSliceFields splits comma-separated environment values into
// lower-cased lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				parts = append(parts, part)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// processDurationFields accepts Go durations ("750ms") and bare seconds ("2").
func processDurationFields(k *koanf.Koanf) error {
	var errs []error
	for _, path := range durationKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		d, err := parseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(path), err))
			continue
		}
		if err := k.Set(path, d); err != nil {
			errs = append(errs, fmt.Errorf("failed to set %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// Validate checks value ranges and provider names.
func (c Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("BOOKCOVERS_PROVIDERS must name at least one provider"))
	}
	for _, p := range c.Providers {
		switch p {
		case ProviderGoogleBooks, ProviderOpenLibrary:
		default:
			errs = append(errs, fmt.Errorf("unknown bibliographic provider %q", p))
		}
	}
	if c.MaxResults <= 0 || c.MaxResults > 40 {
		errs = append(errs, fmt.Errorf("BOOKCOVERS_MAX_RESULTS must be between 1 and 40, got %d", c.MaxResults))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("BOOKCOVERS_CACHE_SIZE must be positive, got %d", c.CacheSize))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("BOOKCOVERS_REQUEST_TIMEOUT must be positive"))
	}
	if c.MinInterval < 0 || c.RateLimitBackoff < 0 {
		errs = append(errs, errors.New("pacing durations must not be negative"))
	}
	if c.ImageQualityThreshold < 0 || c.ImageQualityThreshold > 100 {
		errs = append(errs, fmt.Errorf("BOOKCOVERS_IMAGE_QUALITY_THRESHOLD must be within 0-100, got %v", c.ImageQualityThreshold))
	}

	if c.Visual {
		switch c.VisualProvider {
		case VisualOllama:
		case VisualOpenAI:
			if c.OpenAIAPIKey == "" {
				errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai visual provider"))
			}
		case VisualGemini:
			if c.GeminiAPIKey == "" {
				errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini visual provider"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown visual provider %q", c.VisualProvider))
		}
	}

	return errors.Join(errs...)
}

// VisualModel returns the model configured for the selected visual provider.
func (c Config) VisualModel() string {
	switch c.VisualProvider {
	case VisualOpenAI:
		return c.OpenAIModel
	case VisualGemini:
		return c.GeminiModel
	default:
		return c.OllamaModel
	}
}
