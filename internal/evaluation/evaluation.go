// Package evaluation measures cover resolution against a labelled dataset.
package evaluation

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/bookcovers/internal/dataset"
	"github.com/lehigh-university-libraries/bookcovers/internal/matching"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

// Outcome is the judgement of one resolution against its label.
type Outcome string

const (
	OutcomeCorrect            Outcome = "correct"             // expected cover found
	OutcomeWrong              Outcome = "wrong"               // a cover, but not the expected one
	OutcomeMissed             Outcome = "missed"              // placeholder although a cover exists
	OutcomeCorrectPlaceholder Outcome = "correct_placeholder" // placeholder where none exists
	OutcomeUnlabelled         Outcome = "unlabelled"
)

// Labels carried on a Result.
const (
	ExpectCover       = "cover"
	ExpectPlaceholder = "placeholder"
)

// Resolver resolves covers.
type Resolver interface {
	ResolveCoverImage(ctx context.Context, q models.BookQuery) models.ImageDescriptor
}

// Result is one evaluated record.
type Result struct {
	ID         string        `yaml:"id" json:"id"`
	Title      string        `yaml:"title" json:"title"`
	Author     string        `yaml:"author,omitempty" json:"author,omitempty"`
	Expected   string        `yaml:"expected,omitempty" json:"expected,omitempty"`
	Outcome    Outcome       `yaml:"outcome" json:"outcome"`
	Kind       string        `yaml:"kind" json:"kind"`
	URL        string        `yaml:"url,omitempty" json:"url,omitempty"`
	Source     string        `yaml:"source,omitempty" json:"source,omitempty"`
	Strategy   string        `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Tier       string        `yaml:"tier,omitempty" json:"tier,omitempty"`
	Confidence float64       `yaml:"confidence" json:"confidence"`
	Duration   time.Duration `yaml:"duration" json:"duration"`
}

// Judge compares a descriptor with the record's label.
func Judge(rec dataset.Record, d models.ImageDescriptor) Outcome {
	switch {
	case rec.ExpectPlaceholder:
		if d.IsPlaceholder() {
			return OutcomeCorrectPlaceholder
		}
		return OutcomeWrong
	case !rec.HasExpectation():
		return OutcomeUnlabelled
	case d.IsPlaceholder():
		return OutcomeMissed
	case rec.ExpectedCoverURL != "" && sameURL(rec.ExpectedCoverURL, d.URL):
		return OutcomeCorrect
	case sameISBN(rec.ExpectedISBN, d.ISBN):
		return OutcomeCorrect
	default:
		return OutcomeWrong
	}
}

func sameURL(a, b string) bool {
	strip := func(u string) string {
		u = strings.TrimSpace(u)
		u = strings.TrimPrefix(u, "https://")
		u = strings.TrimPrefix(u, "http://")
		return strings.TrimSuffix(u, "/")
	}
	return strip(a) == strip(b)
}

func sameISBN(expected, got string) bool {
	e, g := textnorm.CleanISBN(expected), textnorm.CleanISBN(got)
	if e == "" || g == "" {
		return false
	}
	if len(e) == 10 {
		e = matching.ISBN10To13(e)
	}
	if len(g) == 10 {
		g = matching.ISBN10To13(g)
	}
	return e == g
}

func expectation(rec dataset.Record) string {
	switch {
	case rec.ExpectPlaceholder:
		return ExpectPlaceholder
	case rec.HasExpectation():
		return ExpectCover
	default:
		return ""
	}
}

// Run resolves every record with at most concurrency resolutions at a time.
// Results keep the input order.
func Run(ctx context.Context, r Resolver, records []dataset.Record, concurrency int, logger *slog.Logger) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Result, len(records))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, rec := range records {
		wg.Add(1)
		go func(idx int, rec dataset.Record) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			start := time.Now()
			d := r.ResolveCoverImage(ctx, rec.Query())
			res := Result{
				ID:         rec.ID,
				Title:      rec.Title,
				Author:     rec.Author,
				Expected:   expectation(rec),
				Outcome:    Judge(rec, d),
				Kind:       string(d.Kind),
				URL:        d.URL,
				Source:     d.Source,
				Strategy:   string(d.Strategy),
				Tier:       d.Tier,
				Confidence: d.Confidence,
				Duration:   time.Since(start),
			}
			results[idx] = res
			logger.Info("Record evaluated", "id", rec.ID, "outcome", res.Outcome, "tier", res.Tier, "progress", idx+1, "total", len(records))
		}(i, rec)
	}

	wg.Wait()
	return results
}

// StrategyStats counts covers served per strategy.
type StrategyStats struct {
	Covers  int     `yaml:"covers" json:"covers"`
	Correct int     `yaml:"correct" json:"correct"`
	HitRate float64 `yaml:"hit_rate" json:"hit_rate"` // correct / covers
}

// Summary aggregates a run.
type Summary struct {
	Total               int `yaml:"total" json:"total"`
	Covers              int `yaml:"covers" json:"covers"`
	Placeholders        int `yaml:"placeholders" json:"placeholders"`
	Correct             int `yaml:"correct" json:"correct"`
	Wrong               int `yaml:"wrong" json:"wrong"`
	Missed              int `yaml:"missed" json:"missed"`
	CorrectPlaceholders int `yaml:"correct_placeholders" json:"correct_placeholders"`
	Unlabelled          int `yaml:"unlabelled" json:"unlabelled"`

	// Precision is correct covers over all judged covers.
	Precision float64 `yaml:"precision" json:"precision"`
	// Recall is correct covers over records that have a known cover.
	Recall float64 `yaml:"recall" json:"recall"`

	ByStrategy map[string]StrategyStats `yaml:"by_strategy" json:"by_strategy"`
	ByTier     map[string]int           `yaml:"by_tier" json:"by_tier"`

	AverageDuration time.Duration `yaml:"average_duration" json:"average_duration"`
	MedianDuration  time.Duration `yaml:"median_duration" json:"median_duration"`
}

// Summarize computes the summary of results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		ByStrategy: make(map[string]StrategyStats),
		ByTier:     make(map[string]int),
	}

	durations := make([]time.Duration, 0, len(results))
	var total time.Duration
	known := 0
	for _, r := range results {
		durations = append(durations, r.Duration)
		total += r.Duration
		if r.Expected == ExpectCover {
			known++
		}

		if r.Kind == string(models.KindPlaceholder) {
			s.Placeholders++
		} else {
			s.Covers++
			s.ByTier[r.Tier]++
			st := s.ByStrategy[r.Strategy]
			st.Covers++
			if r.Outcome == OutcomeCorrect {
				st.Correct++
			}
			s.ByStrategy[r.Strategy] = st
		}

		switch r.Outcome {
		case OutcomeCorrect:
			s.Correct++
		case OutcomeWrong:
			s.Wrong++
		case OutcomeMissed:
			s.Missed++
		case OutcomeCorrectPlaceholder:
			s.CorrectPlaceholders++
		case OutcomeUnlabelled:
			s.Unlabelled++
		}
	}

	for name, st := range s.ByStrategy {
		if st.Covers > 0 {
			st.HitRate = float64(st.Correct) / float64(st.Covers)
		}
		s.ByStrategy[name] = st
	}
	if judged := s.Correct + s.Wrong; judged > 0 {
		s.Precision = float64(s.Correct) / float64(judged)
	}
	if known > 0 {
		s.Recall = float64(s.Correct) / float64(known)
	}

	if len(durations) > 0 {
		s.AverageDuration = total / time.Duration(len(durations))
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		mid := len(durations) / 2
		if len(durations)%2 == 0 {
			s.MedianDuration = (durations[mid-1] + durations[mid]) / 2
		} else {
			s.MedianDuration = durations[mid]
		}
	}

	return s
}
