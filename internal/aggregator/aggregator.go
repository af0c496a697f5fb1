// Package aggregator gathers cover candidates from bibliographic providers
// using a fixed sequence of query strategies.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/bookcovers/internal/bibliographic"
	"github.com/lehigh-university-libraries/bookcovers/internal/matching"
	"github.com/lehigh-university-libraries/bookcovers/internal/metrics"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

// Config controls pacing and resilience of provider calls.
type Config struct {
	MaxResults       int
	Language         string
	MinInterval      time.Duration // minimum spacing between calls to one provider
	RateLimitBackoff time.Duration // wait before the single retry after a rate limit
	RequestTimeout   time.Duration
	BreakerFailures  uint32        // consecutive failures that open a provider's circuit
	BreakerCooldown  time.Duration // how long an open circuit rejects calls
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type provider struct {
	searcher bibliographic.Searcher
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]bibliographic.Item]
}

// Aggregator queries providers strategy by strategy.
type Aggregator struct {
	providers []*provider
	cfg       Config
	logger    *slog.Logger
}

// New creates an aggregator over the given providers, consulted in order.
func New(searchers []bibliographic.Searcher, cfg Config) *Aggregator {
	cfg = cfg.withDefaults()
	a := &Aggregator{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "aggregator"),
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	for _, s := range searchers {
		name := s.Name()
		metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
		a.providers = append(a.providers, &provider{
			searcher: s,
			limiter:  rate.NewLimiter(limit, 1),
			breaker: gobreaker.NewCircuitBreaker[[]bibliographic.Item](gobreaker.Settings{
				Name:        name,
				MaxRequests: 1,
				Timeout:     cfg.BreakerCooldown,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= cfg.BreakerFailures
				},
				// A body we could not parse still proves the provider is up
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, bibliographic.ErrMalformedResponse)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					a.logger.Warn("Provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
					metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
				},
			}),
		})
	}
	return a
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Requests returns the strategy requests for a query in priority order.
func (a *Aggregator) Requests(query models.BookQuery) []bibliographic.Request {
	base := bibliographic.Request{MaxResults: a.cfg.MaxResults, LanguageRestrict: a.cfg.Language}
	title := stripQuotes(query.Title)
	author := stripQuotes(query.Author)

	var reqs []bibliographic.Request
	if isbn := textnorm.CleanISBN(query.ISBN); isbn != "" {
		r := base
		r.Strategy, r.ISBN = models.StrategyISBN, isbn
		reqs = append(reqs, r)
	}
	if title != "" && author != "" {
		r := base
		r.Strategy, r.Title, r.Author = models.StrategyTitleAuthor, title, author
		reqs = append(reqs, r)
	}
	if title != "" {
		r := base
		r.Strategy, r.Title = models.StrategyTitle, title
		reqs = append(reqs, r)
	}
	if author != "" {
		r := base
		r.Strategy, r.Author = models.StrategyAuthor, author
		reqs = append(reqs, r)
	}
	return reqs
}

// Collect runs the strategies in order, passing the accumulated candidates
// to accept after each provider that added any. Collection stops early once
// accept returns true.
// Candidates are deduplicated by image URL. Provider failures are logged and
// skipped, so a complete outage yields an empty slice.
func (a *Aggregator) Collect(ctx context.Context, query models.BookQuery, accept func([]models.Candidate) bool) []models.Candidate {
	var collected []models.Candidate
	seen := make(map[string]struct{})

	for _, req := range a.Requests(query) {
		for _, p := range a.providers {
			if ctx.Err() != nil {
				return Reorder(query.Title, collected)
			}

			items, err := a.search(ctx, p, req)
			if err != nil {
				a.logger.Warn("Strategy failed", "provider", p.searcher.Name(), "strategy", req.Strategy, "id", query.ID, "error", err)
				continue
			}

			added := 0
			for _, item := range items {
				url, quality := item.ImageLinks.Best()
				if url == "" {
					continue
				}
				if _, dup := seen[url]; dup {
					continue
				}
				seen[url] = struct{}{}
				collected = append(collected, toCandidate(p.searcher.Name(), req.Strategy, item, url, quality))
				added++
			}
			a.logger.Debug("Strategy completed", "provider", p.searcher.Name(), "strategy", req.Strategy, "items", len(items), "candidates", added)

			// Later providers are skipped once an earlier one settles the query
			if added > 0 && accept != nil {
				if ordered := Reorder(query.Title, collected); accept(ordered) {
					return ordered
				}
			}
		}
	}

	return Reorder(query.Title, collected)
}

// search calls one provider with pacing, the circuit breaker and a single
// retry after a rate limit.
func (a *Aggregator) search(ctx context.Context, p *provider, req bibliographic.Request) ([]bibliographic.Item, error) {
	items, err := a.attempt(ctx, p, req)
	if !errors.Is(err, bibliographic.ErrRateLimited) {
		return items, err
	}

	a.logger.Info("Provider rate limited, backing off", "provider", p.searcher.Name(), "backoff", a.cfg.RateLimitBackoff)
	if err := sleep(ctx, a.cfg.RateLimitBackoff); err != nil {
		return nil, fmt.Errorf("backoff interrupted: %v: %w", err, bibliographic.ErrUnavailable)
	}

	items, err = a.attempt(ctx, p, req)
	if errors.Is(err, bibliographic.ErrRateLimited) {
		return nil, fmt.Errorf("still rate limited after retry: %v: %w", err, bibliographic.ErrUnavailable)
	}
	return items, err
}

func (a *Aggregator) attempt(ctx context.Context, p *provider, req bibliographic.Request) ([]bibliographic.Item, error) {
	name := p.searcher.Name()
	start := time.Now()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.RecordProviderRequest(name, string(req.Strategy), "cancelled", time.Since(start))
		return nil, fmt.Errorf("rate limiter wait failed: %v: %w", err, bibliographic.ErrUnavailable)
	}

	items, err := p.breaker.Execute(func() ([]bibliographic.Item, error) {
		reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
		return p.searcher.Search(reqCtx, req)
	})
	metrics.RecordProviderRequest(name, string(req.Strategy), resultLabel(err), time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s circuit open: %v: %w", name, err, bibliographic.ErrUnavailable)
	}
	return items, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, bibliographic.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, bibliographic.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "unavailable"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toCandidate(source string, strategy models.Strategy, item bibliographic.Item, url string, quality float64) models.Candidate {
	return models.Candidate{
		Source:        source,
		Strategy:      strategy,
		RawTitle:      item.Title,
		RawAuthors:    item.Authors,
		ImageURL:      url,
		Publisher:     item.Publisher,
		PublishedYear: matching.ExtractYear(item.PublishedDate),
		ISBNs:         item.ISBNs,
		QualityScore:  quality,
	}
}

func stripQuotes(s string) string {
	r := []rune(s)
	out := r[:0]
	for _, c := range r {
		switch c {
		case '"', '“', '”', '「', '」', '『', '』':
			continue
		}
		out = append(out, c)
	}
	return strings.TrimSpace(string(out))
}
