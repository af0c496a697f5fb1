// Package matching classifies bibliographic candidates against a requested book.
package matching

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/similarity"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

// Composite score weights
const (
	weightTitle     = 0.60
	weightAuthor    = 0.20
	weightPublisher = 0.10
	weightYear      = 0.05
	weightQuality   = 0.05

	yearTolerance = 2
)

// Verifier scores candidates and assigns tiers. One Verifier serves both
// strict and relaxed passes; the mode is chosen per call.
type Verifier struct {
	scorer *similarity.Scorer
}

// NewVerifier creates a verifier using the given scorer.
func NewVerifier(scorer *similarity.Scorer) *Verifier {
	if scorer == nil {
		scorer = similarity.New(nil)
	}
	return &Verifier{scorer: scorer}
}

// Scorer returns the similarity scorer used by the verifier.
func (v *Verifier) Scorer() *similarity.Scorer {
	return v.scorer
}

// Verify evaluates every image-bearing candidate and returns verdicts sorted
// best-first: by tier, then composite score, then ingestion order.
func (v *Verifier) Verify(query models.BookQuery, candidates []models.Candidate, strict bool) []models.MatchVerdict {
	verdicts := make([]models.MatchVerdict, 0, len(candidates))
	for _, c := range candidates {
		if c.ImageURL == "" {
			continue
		}
		verdicts = append(verdicts, v.evaluate(query, c, strict))
	}

	sort.SliceStable(verdicts, func(i, j int) bool {
		a, b := verdicts[i], verdicts[j]
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		return a.Candidate.Order < b.Candidate.Order
	})

	return verdicts
}

func (v *Verifier) evaluate(query models.BookQuery, c models.Candidate, strict bool) models.MatchVerdict {
	titleSim := v.scorer.TitleSimilarity(query.Title, c.RawTitle, strict)
	author := v.scorer.MatchAuthor(query.Author, c.RawAuthors, strict)

	verdict := models.MatchVerdict{
		Candidate:       c,
		TitleSimilarity: titleSim,
		AuthorMatch:     author.Matched,
		AuthorRule:      author.Rule,
		PublisherMatch:  PublisherMatch(query.Publisher, c.Publisher),
		YearMatch:       YearMatch(query.PublishedYear, c.PublishedYear),
		Strict:          strict,
	}
	verdict.CompositeScore = compositeScore(verdict)
	verdict.Tier = classify(query, verdict, similarity.Threshold(strict))
	return verdict
}

// classify applies the tier rules. An author mismatch rejects the candidate
// no matter how well the title matches.
func classify(query models.BookQuery, v models.MatchVerdict, threshold float64) models.Tier {
	if !v.AuthorMatch || v.TitleSimilarity < threshold {
		return models.TierRejected
	}

	if v.TitleSimilarity >= 1.0 || isbnIdentity(query.ISBN, v.Candidate.ISBNs) {
		return models.TierExact
	}

	t := v.TitleSimilarity
	switch {
	case t >= 0.95:
		return models.TierHighConfidence
	case t >= 0.90 && (v.PublisherMatch || v.YearMatch):
		return models.TierHighConfidence
	case t >= 0.80 && v.PublisherMatch && v.YearMatch:
		return models.TierHighConfidence
	}

	return models.TierModerate
}

func compositeScore(v models.MatchVerdict) float64 {
	score := weightTitle*v.TitleSimilarity + weightQuality*v.Candidate.QualityScore
	if v.AuthorMatch {
		score += weightAuthor
	}
	if v.PublisherMatch {
		score += weightPublisher
	}
	if v.YearMatch {
		score += weightYear
	}
	return min(max(score, 0), 1)
}

func isbnIdentity(isbn string, candidates []string) bool {
	want := textnorm.CleanISBN(isbn)
	if want == "" {
		return false
	}
	for _, c := range candidates {
		got := textnorm.CleanISBN(c)
		if got == want || (len(got) == 10 && ISBN10To13(got) == want) || (len(want) == 10 && ISBN10To13(want) == got) {
			return true
		}
	}
	return false
}

// ISBN10To13 converts an ISBN-10 to its ISBN-13 form. Invalid input yields "".
func ISBN10To13(isbn10 string) string {
	if len(isbn10) != 10 {
		return ""
	}
	body := "978" + isbn10[:9]
	sum := 0
	for i, r := range body {
		if r < '0' || r > '9' {
			return ""
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return body + strconv.Itoa(check)
}

// PublisherMatch reports whether one normalized publisher contains the other.
func PublisherMatch(a, b string) bool {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// YearMatch reports whether two publication years are within two years.
// Unknown years never match.
func YearMatch(a, b int) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= yearTolerance
}

var yearPattern = regexp.MustCompile(`(1[5-9]|20)\d{2}`)

// ExtractYear pulls a four digit year out of a published date like "2005-06" or "2005年".
func ExtractYear(date string) int {
	match := yearPattern.FindString(date)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// Accepted returns the verdicts that can be used as a cover, best-first.
// Strict mode accepts Exact and HighConfidence. Relaxed mode also accepts
// Moderate, but only for candidates found by ISBN or title+author queries;
// title-only and author-only results must reach HighConfidence.
func Accepted(verdicts []models.MatchVerdict, strict bool) []models.MatchVerdict {
	var accepted []models.MatchVerdict
	for _, v := range verdicts {
		switch v.Tier {
		case models.TierExact, models.TierHighConfidence:
			accepted = append(accepted, v)
		case models.TierModerate:
			if !strict && primaryStrategy(v.Candidate.Strategy) {
				accepted = append(accepted, v)
			}
		}
	}
	return accepted
}

func primaryStrategy(s models.Strategy) bool {
	return s == models.StrategyISBN || s == models.StrategyTitleAuthor
}
