package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/bookcovers/internal/aggregator"
	"github.com/lehigh-university-libraries/bookcovers/internal/bibliographic"
	"github.com/lehigh-university-libraries/bookcovers/internal/cache"
	"github.com/lehigh-university-libraries/bookcovers/internal/config"
	"github.com/lehigh-university-libraries/bookcovers/internal/gemini"
	"github.com/lehigh-university-libraries/bookcovers/internal/googlebooks"
	"github.com/lehigh-university-libraries/bookcovers/internal/images"
	"github.com/lehigh-university-libraries/bookcovers/internal/matching"
	"github.com/lehigh-university-libraries/bookcovers/internal/ollama"
	"github.com/lehigh-university-libraries/bookcovers/internal/openai"
	"github.com/lehigh-university-libraries/bookcovers/internal/openlibrary"
	"github.com/lehigh-university-libraries/bookcovers/internal/providers"
	"github.com/lehigh-university-libraries/bookcovers/internal/resolver"
	"github.com/lehigh-university-libraries/bookcovers/internal/similarity"
	"github.com/lehigh-university-libraries/bookcovers/internal/visual"
)

// buildResolver assembles the resolver from configuration.
func buildResolver(ctx context.Context, cfg config.Config, logger *slog.Logger) (*resolver.Resolver, error) {
	var aliases *similarity.AliasTable
	if cfg.AliasesFile != "" {
		var err error
		aliases, err = similarity.LoadAliases(cfg.AliasesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Author aliases loaded", "file", cfg.AliasesFile, "groups", aliases.Len())
	}

	searchers, err := newSearchers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	agg := aggregator.New(searchers, aggregator.Config{
		MaxResults:       cfg.MaxResults,
		Language:         cfg.Language,
		MinInterval:      cfg.MinInterval,
		RateLimitBackoff: cfg.RateLimitBackoff,
		RequestTimeout:   cfg.RequestTimeout,
		Logger:           logger,
	})

	opts := []resolver.Option{resolver.WithLogger(logger)}
	if cfg.Visual {
		describer, err := newDescriber(cfg)
		if err != nil {
			return nil, err
		}
		vcfg := visual.DefaultConfig()
		vcfg.QualityThreshold = cfg.ImageQualityThreshold
		vcfg.RequestTimeout = cfg.RequestTimeout
		vcfg.Logger = logger
		opts = append(opts,
			resolver.WithVisual(visual.New(describer, images.NewFetcher(), vcfg)),
			resolver.WithVisualRequired(cfg.VisualRequired),
		)
		logger.Info("Visual check enabled", "provider", cfg.VisualProvider, "model", cfg.VisualModel())
	}

	verifier := matching.NewVerifier(similarity.New(aliases))
	return resolver.New(agg, verifier, cache.New(cfg.CacheSize), opts...), nil
}

func newSearchers(ctx context.Context, cfg config.Config) ([]bibliographic.Searcher, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	searchers := make([]bibliographic.Searcher, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderGoogleBooks:
			gb, err := googlebooks.New(ctx, googlebooks.Config{
				APIKey:     cfg.GoogleBooksAPIKey,
				Endpoint:   cfg.GoogleBooksURL,
				HTTPClient: httpClient,
			})
			if err != nil {
				return nil, err
			}
			searchers = append(searchers, gb)
		case config.ProviderOpenLibrary:
			ol := openlibrary.New(cfg.OpenLibraryURL)
			ol.HTTPClient = httpClient
			searchers = append(searchers, ol)
		default:
			return nil, fmt.Errorf("unknown bibliographic provider %q", name)
		}
	}
	return searchers, nil
}

func newDescriber(cfg config.Config) (providers.Describer, error) {
	var backend providers.Provider
	switch cfg.VisualProvider {
	case config.VisualOllama:
		backend = ollama.New(cfg.OllamaURL)
	case config.VisualOpenAI:
		backend = openai.New(cfg.OpenAIAPIKey)
	case config.VisualGemini:
		backend = gemini.New(cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown visual provider %q", cfg.VisualProvider)
	}
	return providers.NewVision(cfg.VisualProvider, backend, cfg.VisualModel()), nil
}
