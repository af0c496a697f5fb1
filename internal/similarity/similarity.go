// Package similarity scores how closely a candidate's title and authors match
// the requested book. Scores are in [0,1]; strict and relaxed modes differ only
// in which rules apply and where the acceptance thresholds sit.
package similarity

import (
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

const (
	StrictTitleThreshold  = 0.70
	RelaxedTitleThreshold = 0.60

	StrictAuthorThreshold  = 0.85
	RelaxedAuthorThreshold = 0.75

	seriesBaseThreshold = 0.90
	containmentSlack    = 2
	subtitlePrefixScore = 0.75
)

// DefaultRoleMarkers tag contributors who are not the author.
var DefaultRoleMarkers = []string{"訳", "翻訳", "編集", "監修", "translator", "translated", "editor"}

// Author matching rules, in evaluation order.
const (
	RuleExact      = "exact"
	RuleAlias      = "alias"
	RuleEditRatio  = "edit_ratio"
	RuleFamilyName = "family_name"
	RuleSubstring  = "substring"
)

// AuthorResult explains the outcome of an author comparison
type AuthorResult struct {
	Matched   bool
	Rule      string
	Score     float64
	Candidate string // the candidate name that satisfied the rule
}

// Scorer compares titles and author names
type Scorer struct {
	aliases     *AliasTable
	roleMarkers []string
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithRoleMarkers replaces the contributor role markers used to skip translators and editors.
func WithRoleMarkers(markers []string) Option {
	return func(s *Scorer) {
		if len(markers) > 0 {
			s.roleMarkers = markers
		}
	}
}

// New creates a Scorer. aliases may be nil.
func New(aliases *AliasTable, opts ...Option) *Scorer {
	s := &Scorer{
		aliases:     aliases,
		roleMarkers: DefaultRoleMarkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the title acceptance threshold for the mode.
func Threshold(strict bool) float64 {
	if strict {
		return StrictTitleThreshold
	}
	return RelaxedTitleThreshold
}

// TitleSimilarity scores two titles.
func (s *Scorer) TitleSimilarity(a, b string, strict bool) float64 {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	// Same work, different volume
	ba := textnorm.Normalize(textnorm.StripSeriesSuffix(a))
	bb := textnorm.Normalize(textnorm.StripSeriesSuffix(b))
	if ba != na || bb != nb {
		if r := Ratio(ba, bb); r >= seriesBaseThreshold {
			return 0.9 + (r-seriesBaseThreshold)*0.2
		}
	}

	shorter, longer := na, nb
	if textnorm.RuneLen(shorter) > textnorm.RuneLen(longer) {
		shorter, longer = longer, shorter
	}
	diff := textnorm.RuneLen(longer) - textnorm.RuneLen(shorter)

	if strings.Contains(longer, shorter) && diff <= containmentSlack {
		return 0.95 - 0.02*float64(diff)
	}

	ratio := Ratio(na, nb)

	// Relaxed mode tolerates a subtitle appended to the main title
	if !strict && textnorm.RuneLen(shorter) >= 2 && strings.HasPrefix(longer, shorter) && ratio < subtitlePrefixScore {
		return subtitlePrefixScore
	}

	return ratio
}

var roleSuffix = regexp.MustCompile(`[\s　/／(（]+(?:作・絵|文・絵|作|著|文|絵|さく|ぶん|え|著者)[)）]?\s*$`)

// cleanName drops a trailing role word such as "作" or "著" from a name.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if stripped := strings.TrimSpace(roleSuffix.ReplaceAllString(name, "")); stripped != "" {
		return stripped
	}
	return name
}

var nameSeparators = regexp.MustCompile(`[,，、/／&＆;；]+`)

// splitNames splits a contributor string listing several people.
func splitNames(s string) []string {
	var names []string
	for _, part := range nameSeparators.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func (s *Scorer) isNonAuthor(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range s.roleMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// familyName returns the first token of a name split on spaces and name dots.
func familyName(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		switch r {
		case ' ', '　', '・', '=', '＝', '･', '.':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	return textnorm.Normalize(fields[0])
}

// AuthorSimilarity reports whether any candidate author matches original.
func (s *Scorer) AuthorSimilarity(original string, candidates []string, strict bool) bool {
	return s.MatchAuthor(original, candidates, strict).Matched
}

// MatchAuthor compares the requested author with a candidate's author list.
// Rules are tried in a fixed order for every name pair; the first satisfied
// rule wins. Rules that are likely to be coincidental come last and only run
// in relaxed mode.
func (s *Scorer) MatchAuthor(original string, candidates []string, strict bool) AuthorResult {
	originals := splitNames(original)
	var authors []string
	for _, raw := range candidates {
		for _, name := range splitNames(raw) {
			if s.isNonAuthor(name) {
				continue
			}
			authors = append(authors, cleanName(name))
		}
	}
	if len(originals) == 0 || len(authors) == 0 {
		return AuthorResult{}
	}

	threshold := StrictAuthorThreshold
	if !strict {
		threshold = RelaxedAuthorThreshold
	}

	type pair struct{ orig, cand, normOrig, normCand string }
	pairs := make([]pair, 0, len(originals)*len(authors))
	for _, o := range originals {
		o = cleanName(o)
		no := textnorm.Normalize(o)
		if no == "" {
			continue
		}
		for _, c := range authors {
			if nc := textnorm.Normalize(c); nc != "" {
				pairs = append(pairs, pair{o, c, no, nc})
			}
		}
	}

	for _, p := range pairs {
		if p.normOrig == p.normCand {
			return AuthorResult{Matched: true, Rule: RuleExact, Score: 1.0, Candidate: p.cand}
		}
	}
	for _, p := range pairs {
		if s.aliases.Same(p.orig, p.cand) {
			return AuthorResult{Matched: true, Rule: RuleAlias, Score: 1.0, Candidate: p.cand}
		}
	}

	best := AuthorResult{}
	for _, p := range pairs {
		if r := Ratio(p.normOrig, p.normCand); r >= threshold && r > best.Score {
			best = AuthorResult{Matched: true, Rule: RuleEditRatio, Score: r, Candidate: p.cand}
		}
	}
	if best.Matched {
		return best
	}

	if strict {
		return AuthorResult{}
	}

	for _, p := range pairs {
		fo, fc := familyName(p.orig), familyName(p.cand)
		if textnorm.RuneLen(fo) >= 2 && fo == fc {
			return AuthorResult{Matched: true, Rule: RuleFamilyName, Score: 0.8, Candidate: p.cand}
		}
	}
	for _, p := range pairs {
		shorter, longer := p.normOrig, p.normCand
		if textnorm.RuneLen(shorter) > textnorm.RuneLen(longer) {
			shorter, longer = longer, shorter
		}
		if textnorm.RuneLen(shorter) >= 2 && strings.Contains(longer, shorter) {
			return AuthorResult{Matched: true, Rule: RuleSubstring, Score: 0.7, Candidate: p.cand}
		}
	}

	return AuthorResult{}
}
