// Package visual runs the optional multi-stage cover check against a vision
// model. Each stage looks at fewer candidates more closely; the best
// verification across all stages is selected at the end.
package visual

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/lehigh-university-libraries/bookcovers/internal/images"
	"github.com/lehigh-university-libraries/bookcovers/internal/metrics"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/providers"
)

// ImageSource downloads cover images.
type ImageSource interface {
	Fetch(ctx context.Context, url string) (*images.Image, error)
}

// Config holds the stage limits, gates and pacing.
type Config struct {
	MaxBasic    int     // candidates described in the basic stage
	MaxDetailed int     // basic survivors promoted to the detailed stage
	MaxFinal    int     // detailed survivors promoted to the final stage
	BasicGate   float64 // basic confidence needed to advance
	FinalGate   float64 // detailed confidence needed to reach the final stage

	QualityThreshold float64 // image quality below this costs confidence
	QualityPenalty   float64
	WarningPenalty   float64

	FinalTitleMin  float64
	FinalAuthorMin float64

	HighConfidence float64 // selection bucket for warning-free verifications
	MinConfidence  float64 // selection floor for everything else

	BasicDelay    time.Duration
	DetailedDelay time.Duration
	FinalDelay    time.Duration

	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxBasic:         10,
		MaxDetailed:      5,
		MaxFinal:         2,
		BasicGate:        0.6,
		FinalGate:        0.8,
		QualityThreshold: 60,
		QualityPenalty:   0.8,
		WarningPenalty:   0.7,
		FinalTitleMin:    97,
		FinalAuthorMin:   95,
		HighConfidence:   0.85,
		MinConfidence:    0.7,
		BasicDelay:       300 * time.Millisecond,
		DetailedDelay:    800 * time.Millisecond,
		FinalDelay:       time.Second,
		RequestTimeout:   5 * time.Second,
	}
}

// Result is the outcome of one pipeline run.
type Result struct {
	Selected      *models.VisualVerification
	Verifications []models.VisualVerification // every surviving verification
	Described     int                         // successful description calls
}

// Pipeline runs the three stages.
type Pipeline struct {
	describer providers.Describer
	images    ImageSource
	cfg       Config
	logger    *slog.Logger
}

// New creates a pipeline.
func New(describer providers.Describer, source ImageSource, cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		describer: describer,
		images:    source,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "visual"),
	}
}

// Run checks candidates, which must already be ordered best-first.
func (p *Pipeline) Run(ctx context.Context, query models.BookQuery, candidates []models.Candidate) Result {
	var result Result
	cached := make(map[string]*images.Image)

	// Every call after the first waits the delay of its own stage, including
	// the first call of a later stage.
	attempts := 0
	paced := func(d time.Duration) bool {
		attempts++
		return attempts == 1 || pause(ctx, d)
	}

	// Basic
	var basic []models.VisualVerification
	for _, c := range limit(candidates, p.cfg.MaxBasic) {
		if !paced(p.cfg.BasicDelay) {
			break
		}
		v, ok := p.describe(ctx, query, c, models.StageBasic, cached)
		if !ok {
			continue
		}
		result.Described++
		if v.Confidence > p.cfg.BasicGate {
			basic = append(basic, v)
			metrics.VisualStageResults.WithLabelValues(string(models.StageBasic), "advanced").Inc()
		} else {
			metrics.VisualStageResults.WithLabelValues(string(models.StageBasic), "dropped").Inc()
		}
	}
	result.Verifications = append(result.Verifications, basic...)

	// Detailed
	var detailed []models.VisualVerification
	for _, b := range limit(rankByConfidence(basic), p.cfg.MaxDetailed) {
		if !paced(p.cfg.DetailedDelay) {
			break
		}
		v, ok := p.describe(ctx, query, b.Candidate, models.StageDetailed, cached)
		if !ok {
			continue
		}
		result.Described++
		if v.ImageQuality < p.cfg.QualityThreshold {
			v.Confidence *= p.cfg.QualityPenalty
		}
		if len(v.Warnings) > 0 {
			v.Confidence *= p.cfg.WarningPenalty
		}
		detailed = append(detailed, v)
		metrics.VisualStageResults.WithLabelValues(string(models.StageDetailed), "advanced").Inc()
	}
	result.Verifications = append(result.Verifications, detailed...)

	// Final
	var finalists []models.VisualVerification
	for _, d := range rankByConfidence(detailed) {
		if d.Confidence > p.cfg.FinalGate {
			finalists = append(finalists, d)
		}
	}
	for _, d := range limit(finalists, p.cfg.MaxFinal) {
		if !paced(p.cfg.FinalDelay) {
			break
		}
		v, desc, ok := p.describeFull(ctx, query, d.Candidate, models.StageFinal, cached)
		if !ok {
			continue
		}
		result.Described++
		if !p.finalAccept(v, desc) {
			// Rejected at the final stage; earlier verifications of this
			// candidate stay eligible.
			p.logger.Info("Final visual check rejected candidate", "id", query.ID, "url", v.Candidate.ImageURL, "similarity", desc.TitleSimilarity, "author_similarity", desc.AuthorSimilarity, "recommendation", desc.Recommendation)
			metrics.VisualStageResults.WithLabelValues(string(models.StageFinal), "dropped").Inc()
			continue
		}
		result.Verifications = append(result.Verifications, v)
		metrics.VisualStageResults.WithLabelValues(string(models.StageFinal), "advanced").Inc()
	}

	result.Selected = p.Select(result.Verifications)
	return result
}

func (p *Pipeline) finalAccept(v models.VisualVerification, desc providers.Description) bool {
	return desc.TitleSimilarity >= p.cfg.FinalTitleMin &&
		desc.AuthorSimilarity >= p.cfg.FinalAuthorMin &&
		len(desc.CriticalWarnings) == 0 &&
		v.Recommendation == providers.RecommendAccept
}

// Select picks the verification with the highest selection score. Warning
// free verifications at or above the high confidence bar win first; otherwise
// the best one above the minimum confidence. Returns nil when nothing qualifies.
func (p *Pipeline) Select(verifications []models.VisualVerification) *models.VisualVerification {
	var high, fallback *models.VisualVerification
	for i := range verifications {
		v := &verifications[i]
		if v.Confidence >= p.cfg.HighConfidence && len(v.Warnings) == 0 {
			if high == nil || better(*v, *high) {
				high = v
			}
		}
		if v.Confidence > p.cfg.MinConfidence {
			if fallback == nil || better(*v, *fallback) {
				fallback = v
			}
		}
	}

	chosen := high
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return nil
	}
	selected := *chosen
	return &selected
}

// better orders by score, then earlier candidate, then later stage.
func better(a, b models.VisualVerification) bool {
	if sa, sb := a.Score(), b.Score(); sa != sb {
		return sa > sb
	}
	if a.Candidate.Order != b.Candidate.Order {
		return a.Candidate.Order < b.Candidate.Order
	}
	return a.Stage.Rank() > b.Stage.Rank()
}

func (p *Pipeline) describe(ctx context.Context, query models.BookQuery, c models.Candidate, stage models.Stage, cached map[string]*images.Image) (models.VisualVerification, bool) {
	v, _, ok := p.describeFull(ctx, query, c, stage, cached)
	return v, ok
}

func (p *Pipeline) describeFull(ctx context.Context, query models.BookQuery, c models.Candidate, stage models.Stage, cached map[string]*images.Image) (models.VisualVerification, providers.Description, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	img, ok := cached[c.ImageURL]
	if !ok {
		var err error
		img, err = p.images.Fetch(reqCtx, c.ImageURL)
		if err != nil {
			p.logger.Warn("Failed to fetch cover image", "id", query.ID, "url", c.ImageURL, "error", err)
			metrics.VisualStageResults.WithLabelValues(string(stage), "error").Inc()
			return models.VisualVerification{}, providers.Description{}, false
		}
		cached[c.ImageURL] = img
	}

	desc, err := p.describer.Describe(reqCtx, providers.DescribeRequest{
		ImageBytes:     img.Data,
		MIMEType:       img.MIMEType,
		ExpectedTitle:  query.Title,
		ExpectedAuthor: query.Author,
		Detail:         detailFor(stage),
	})
	if err != nil {
		p.logger.Warn("Visual description failed", "id", query.ID, "stage", stage, "url", c.ImageURL, "error", err)
		metrics.VisualStageResults.WithLabelValues(string(stage), "error").Inc()
		return models.VisualVerification{}, providers.Description{}, false
	}

	p.logger.Debug("Visual description", "id", query.ID, "stage", stage, "url", c.ImageURL, "detected_title", desc.DetectedTitle, "confidence", desc.Confidence, "warnings", len(desc.Warnings))

	return models.VisualVerification{
		Stage:          stage,
		Candidate:      c,
		DetectedTitle:  desc.DetectedTitle,
		DetectedAuthor: desc.DetectedAuthor,
		Similarity:     desc.TitleSimilarity,
		ImageQuality:   desc.ImageQuality,
		Warnings:       desc.Warnings,
		Confidence:     desc.Confidence,
		Recommendation: desc.Recommendation,
	}, desc, true
}

func detailFor(stage models.Stage) providers.Detail {
	switch stage {
	case models.StageDetailed:
		return providers.DetailDetailed
	case models.StageFinal:
		return providers.DetailFinal
	default:
		return providers.DetailBasic
	}
}

func rankByConfidence(vs []models.VisualVerification) []models.VisualVerification {
	ranked := make([]models.VisualVerification, len(vs))
	copy(ranked, vs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Candidate.Order < ranked[j].Candidate.Order
	})
	return ranked
}

func limit[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// pause waits d between provider calls. It reports false if ctx ended.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
