package aggregator

import (
	"regexp"
	"sort"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/textnorm"
)

// editionPattern matches titles of comic adaptations and audio editions,
// whose covers rarely match the picture book the reader asked for.
var editionPattern = regexp.MustCompile(`(?i)コミック|マンガ|まんが|漫画|comic|manga|audio\s*book|audiobook|オーディオブック|朗読|\bcd\b|\baudio\b`)

// IsSpecialEdition reports whether a title looks like a comic or audio edition.
func IsSpecialEdition(title string) bool {
	return editionPattern.MatchString(title)
}

// Reorder moves special editions and volume variants behind standard
// editions, keeping relative order otherwise, and renumbers Order to match.
// A trait the requested title itself carries is not penalized.
func Reorder(queryTitle string, candidates []models.Candidate) []models.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	penalizeEdition := !IsSpecialEdition(queryTitle)
	penalizeVolume := !textnorm.HasSeriesSuffix(queryTitle)

	rank := func(c models.Candidate) int {
		r := 0
		if penalizeEdition && IsSpecialEdition(c.RawTitle) {
			r += 2
		}
		if penalizeVolume && textnorm.HasSeriesSuffix(c.RawTitle) {
			r++
		}
		return r
	}

	ordered := make([]models.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i]) < rank(ordered[j])
	})
	for i := range ordered {
		ordered[i].Order = i
	}
	return ordered
}
