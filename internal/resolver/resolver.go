// Package resolver turns a book query into a cover image descriptor. It ties
// together candidate aggregation, match verification, the optional visual
// check, the cache and the placeholder fallback.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/bookcovers/internal/cache"
	"github.com/lehigh-university-libraries/bookcovers/internal/fallback"
	"github.com/lehigh-university-libraries/bookcovers/internal/matching"
	"github.com/lehigh-university-libraries/bookcovers/internal/metrics"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
	"github.com/lehigh-university-libraries/bookcovers/internal/visual"
)

var (
	// ErrNoCandidates means no provider returned a usable record. The
	// placeholder served for it is not cached so the next request retries.
	ErrNoCandidates = errors.New("no candidates found")
	errPanic        = errors.New("resolution panicked")
)

// CandidateSource collects candidates strategy by strategy.
type CandidateSource interface {
	Collect(ctx context.Context, query models.BookQuery, accept func([]models.Candidate) bool) []models.Candidate
}

// VisualChecker runs the visual confidence pipeline.
type VisualChecker interface {
	Run(ctx context.Context, query models.BookQuery, candidates []models.Candidate) visual.Result
}

// Resolver resolves cover images.
type Resolver struct {
	source   CandidateSource
	verifier *matching.Verifier
	cache    *cache.Cache
	visual   VisualChecker
	// requireVisual serves a placeholder when the vision provider was down
	// instead of the unchecked verifier choice.
	requireVisual bool
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVisual enables the visual pipeline.
func WithVisual(v VisualChecker) Option {
	return func(r *Resolver) {
		r.visual = v
	}
}

// WithVisualRequired makes a visual check that could not describe any image
// fall back to the placeholder.
func WithVisualRequired(required bool) Option {
	return func(r *Resolver) {
		r.requireVisual = required
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver. A nil verifier or cache gets a default one.
func New(source CandidateSource, verifier *matching.Verifier, c *cache.Cache, opts ...Option) *Resolver {
	if verifier == nil {
		verifier = matching.NewVerifier(nil)
	}
	if c == nil {
		c = cache.New(cache.DefaultCapacity)
	}
	r := &Resolver{
		source:   source,
		verifier: verifier,
		cache:    c,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "resolver")
	return r
}

// CacheKey derives the cache identity of a query: the ISBN-13 when an ISBN
// is given, else the normalized title and author, else the query id.
func CacheKey(q models.BookQuery) string {
	if isbn := textnorm.CleanISBN(q.ISBN); isbn != "" {
		if len(isbn) == 10 {
			if isbn13 := matching.ISBN10To13(isbn); isbn13 != "" {
				isbn = isbn13
			}
		}
		return "isbn:" + isbn
	}
	title, author := textnorm.Normalize(q.Title), textnorm.Normalize(q.Author)
	if title == "" && author == "" {
		return "id:" + q.ID
	}
	return "ta:" + title + "|" + author
}

// ResolveCoverImage returns the cover descriptor for q. It never fails: any
// problem, including ctx ending first, yields the placeholder.
func (r *Resolver) ResolveCoverImage(ctx context.Context, q models.BookQuery) models.ImageDescriptor {
	key := CacheKey(q)
	d, err := r.cache.Resolve(ctx, key, func(ctx context.Context) (models.ImageDescriptor, error) {
		return r.compute(ctx, q)
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrNoCandidates) {
			level = slog.LevelInfo
		}
		r.logger.Log(ctx, level, "Serving placeholder", "id", q.ID, "key", key, "error", err)
		return fallback.Placeholder(q)
	}
	return d
}

func (r *Resolver) compute(ctx context.Context, q models.BookQuery) (d models.ImageDescriptor, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered panic during cover resolution", "id", q.ID, "panic", rec)
			d, err = models.ImageDescriptor{}, fmt.Errorf("%w: %v", errPanic, rec)
		}
		if err == nil {
			metrics.RecordResolution(string(d.Kind), d.Tier, time.Since(start))
		}
	}()

	strictHit := func(cs []models.Candidate) bool {
		return len(matching.Accepted(r.verifier.Verify(q, cs, true), true)) > 0
	}
	candidates := r.source.Collect(ctx, q, strictHit)
	if err := ctx.Err(); err != nil {
		return models.ImageDescriptor{}, fmt.Errorf("resolution interrupted: %w", err)
	}
	if len(candidates) == 0 {
		return models.ImageDescriptor{}, ErrNoCandidates
	}

	accepted := matching.Accepted(r.verifier.Verify(q, candidates, true), true)
	if len(accepted) == 0 {
		// Same candidate set, looser rules; no new provider queries
		accepted = matching.Accepted(r.verifier.Verify(q, candidates, false), false)
	}
	if len(accepted) == 0 {
		r.logger.Info("No confident match", "id", q.ID, "title", q.Title, "author", q.Author, "candidates", len(candidates))
		return fallback.Placeholder(q), nil
	}

	best := accepted[0]
	r.logger.Debug("Match verified", "id", q.ID, "url", best.Candidate.ImageURL, "tier", best.Tier, "strict", best.Strict, "title_similarity", best.TitleSimilarity, "author_rule", best.AuthorRule)

	if r.visual != nil {
		return r.visualCheck(ctx, q, accepted)
	}
	return coverFrom(best, best.CompositeScore), nil
}

func (r *Resolver) visualCheck(ctx context.Context, q models.BookQuery, accepted []models.MatchVerdict) (models.ImageDescriptor, error) {
	candidates := make([]models.Candidate, len(accepted))
	for i, v := range accepted {
		candidates[i] = v.Candidate
	}

	result := r.visual.Run(ctx, q, candidates)
	if result.Selected != nil {
		for _, v := range accepted {
			if v.Candidate.ImageURL == result.Selected.Candidate.ImageURL {
				r.logger.Debug("Visual check selected cover", "id", q.ID, "url", v.Candidate.ImageURL, "stage", result.Selected.Stage, "confidence", result.Selected.Confidence)
				return coverFrom(v, result.Selected.Confidence), nil
			}
		}
	}

	// Vision provider down: nothing was described, so nothing was judged
	if result.Described == 0 {
		if r.requireVisual {
			r.logger.Warn("Visual check unavailable, serving placeholder", "id", q.ID)
			return fallback.Placeholder(q), nil
		}
		r.logger.Warn("Visual check unavailable, using verified match", "id", q.ID)
		return coverFrom(accepted[0], accepted[0].CompositeScore), nil
	}

	r.logger.Info("Visual check found no confident cover", "id", q.ID, "verifications", len(result.Verifications))
	return fallback.Placeholder(q), nil
}

func coverFrom(v models.MatchVerdict, confidence float64) models.ImageDescriptor {
	return models.ImageDescriptor{
		Kind:       models.KindCover,
		URL:        v.Candidate.ImageURL,
		Source:     v.Candidate.Source,
		Strategy:   v.Candidate.Strategy,
		ISBN:       primaryISBN(v.Candidate.ISBNs),
		Tier:       v.Tier.String(),
		Confidence: confidence,
	}
}

// primaryISBN prefers an ISBN-13 and converts an ISBN-10 when that is all there is.
func primaryISBN(isbns []string) string {
	var converted string
	for _, raw := range isbns {
		isbn := textnorm.CleanISBN(raw)
		switch len(isbn) {
		case 13:
			return isbn
		case 10:
			if converted == "" {
				converted = matching.ISBN10To13(isbn)
			}
		}
	}
	return converted
}

// Invalidate drops the cached result for q.
func (r *Resolver) Invalidate(q models.BookQuery) bool {
	return r.cache.Invalidate(CacheKey(q))
}

// InvalidateKey drops the cached result for a raw cache key.
func (r *Resolver) InvalidateKey(key string) bool {
	return r.cache.Invalidate(key)
}

// ClearAll empties the cache.
func (r *Resolver) ClearAll() {
	r.cache.Clear()
}

// Stats returns cache statistics.
func (r *Resolver) Stats() cache.Stats {
	return r.cache.Stats()
}
