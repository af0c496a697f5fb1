package matching

import (
	"testing"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
	"github.com/lehigh-university-libraries/bookcovers/internal/similarity"
)

func momoQuery() models.BookQuery {
	return models.BookQuery{
		ID:            "momo",
		Title:         "モモ",
		Author:        "ミヒャエル・エンデ",
		ISBN:          "9784001145959",
		Publisher:     "岩波書店",
		PublishedYear: 2005,
	}
}

func TestVerifyAuthorMismatchRejectsExactTitle(t *testing.T) {
	v := NewVerifier(nil)
	candidates := []models.Candidate{
		{RawTitle: "モモ", RawAuthors: []string{"宮沢賢治"}, ImageURL: "https://example.com/wrong.jpg", Strategy: models.StrategyTitleAuthor},
	}

	for _, strict := range []bool{true, false} {
		verdicts := v.Verify(momoQuery(), candidates, strict)
		if len(verdicts) != 1 {
			t.Fatalf("Expected 1 verdict, got %d", len(verdicts))
		}
		if verdicts[0].Tier != models.TierRejected {
			t.Errorf("Expected rejected tier for author mismatch (strict=%v), got %s", strict, verdicts[0].Tier)
		}
		if verdicts[0].TitleSimilarity != 1.0 {
			t.Errorf("Expected title similarity 1.0, got %f", verdicts[0].TitleSimilarity)
		}
	}
}

func TestAuthorMatchMandatoryForHighTiers(t *testing.T) {
	v := NewVerifier(nil)
	titles := []string{"モモ", "モモ 上", "モモ2", "もも", "モモちゃん", "Momo", "はてしない物語"}
	authors := []string{"宮沢賢治", "Astrid Lindgren", "", "訳者 訳"}

	var candidates []models.Candidate
	for i, title := range titles {
		for _, author := range authors {
			candidates = append(candidates, models.Candidate{
				RawTitle:      title,
				RawAuthors:    []string{author},
				ImageURL:      "https://example.com/" + title + author,
				Publisher:     "岩波書店",
				PublishedYear: 2005,
				ISBNs:         []string{"9784001145959"},
				Strategy:      models.StrategyISBN,
				Order:         i,
			})
		}
	}

	for _, strict := range []bool{true, false} {
		for _, verdict := range v.Verify(momoQuery(), candidates, strict) {
			if verdict.AuthorMatch {
				t.Fatalf("Expected no author match for %v", verdict.Candidate.RawAuthors)
			}
			if verdict.Tier == models.TierExact || verdict.Tier == models.TierHighConfidence {
				t.Errorf("Candidate %q by %v reached %s without an author match", verdict.Candidate.RawTitle, verdict.Candidate.RawAuthors, verdict.Tier)
			}
		}
	}
}

func TestVerifyTiers(t *testing.T) {
	v := NewVerifier(similarity.New(nil))
	query := models.BookQuery{Title: "ぐりとぐら", Author: "なかがわりえこ", Publisher: "福音館書店", PublishedYear: 1967}

	tests := []struct {
		name      string
		candidate models.Candidate
		strict    bool
		expected  models.Tier
	}{
		{
			name:      "exact title and author",
			candidate: models.Candidate{RawTitle: "ぐりとぐら", RawAuthors: []string{"なかがわりえこ"}},
			strict:    true,
			expected:  models.TierExact,
		},
		{
			name:      "isbn identity",
			candidate: models.Candidate{RawTitle: "ぐりとぐら (こどものとも傑作集)", RawAuthors: []string{"なかがわりえこ"}, ISBNs: []string{"978-4-8340-0082-3"}},
			strict:    false,
			expected:  models.TierExact,
		},
		{
			name:      "near containment with year",
			candidate: models.Candidate{RawTitle: "ぐりとぐらの", RawAuthors: []string{"なかがわりえこ"}, PublishedYear: 1968},
			strict:    true,
			expected:  models.TierHighConfidence,
		},
		{
			name:      "near containment without corroboration",
			candidate: models.Candidate{RawTitle: "ぐりとぐらの", RawAuthors: []string{"なかがわりえこ"}},
			strict:    true,
			expected:  models.TierModerate,
		},
		{
			name:      "weak title below threshold",
			candidate: models.Candidate{RawTitle: "ぐりとぐらのえんそく", RawAuthors: []string{"なかがわりえこ"}},
			strict:    true,
			expected:  models.TierRejected,
		},
		{
			name:      "weak title relaxed subtitle",
			candidate: models.Candidate{RawTitle: "ぐりとぐらのえんそく", RawAuthors: []string{"なかがわりえこ"}},
			strict:    false,
			expected:  models.TierModerate,
		},
	}

	query.ISBN = "9784834000823"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.candidate.ImageURL = "https://example.com/cover.jpg"
			verdicts := v.Verify(query, []models.Candidate{tt.candidate}, tt.strict)
			if len(verdicts) != 1 {
				t.Fatalf("Expected 1 verdict, got %d", len(verdicts))
			}
			if verdicts[0].Tier != tt.expected {
				t.Errorf("Expected tier %s, got %s (title %.3f, author %v)", tt.expected, verdicts[0].Tier, verdicts[0].TitleSimilarity, verdicts[0].AuthorMatch)
			}
		})
	}
}

func TestVerifySkipsCandidatesWithoutImage(t *testing.T) {
	v := NewVerifier(nil)
	candidates := []models.Candidate{
		{RawTitle: "モモ", RawAuthors: []string{"ミヒャエル・エンデ"}},
		{RawTitle: "モモ", RawAuthors: []string{"ミヒャエル・エンデ"}, ImageURL: "https://example.com/momo.jpg"},
	}

	verdicts := v.Verify(momoQuery(), candidates, true)
	if len(verdicts) != 1 {
		t.Fatalf("Expected 1 verdict, got %d", len(verdicts))
	}
	if verdicts[0].Candidate.ImageURL == "" {
		t.Error("Expected the image-less candidate to be skipped")
	}
}

func TestVerifyOrdering(t *testing.T) {
	v := NewVerifier(nil)
	candidates := []models.Candidate{
		{RawTitle: "モモ", RawAuthors: []string{"宮沢賢治"}, ImageURL: "https://example.com/a.jpg", Order: 0},
		{RawTitle: "モモ!", RawAuthors: []string{"ミヒャエル・エンデ"}, ImageURL: "https://example.com/b.jpg", Order: 1},
		{RawTitle: "モモ", RawAuthors: []string{"ミヒャエル・エンデ"}, ImageURL: "https://example.com/c.jpg", Order: 2, QualityScore: 1.0},
	}

	verdicts := v.Verify(momoQuery(), candidates, true)
	if len(verdicts) != 3 {
		t.Fatalf("Expected 3 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Candidate.Order != 2 {
		t.Errorf("Expected higher quality exact match first, got order %d", verdicts[0].Candidate.Order)
	}
	if verdicts[1].Candidate.Order != 1 {
		t.Errorf("Expected equal-tier match second, got order %d", verdicts[1].Candidate.Order)
	}
	if verdicts[2].Tier != models.TierRejected {
		t.Errorf("Expected rejected verdict last, got %s", verdicts[2].Tier)
	}
}

func TestAccepted(t *testing.T) {
	verdicts := []models.MatchVerdict{
		{Tier: models.TierExact, Candidate: models.Candidate{Strategy: models.StrategyTitle}},
		{Tier: models.TierModerate, Candidate: models.Candidate{Strategy: models.StrategyTitleAuthor}},
		{Tier: models.TierModerate, Candidate: models.Candidate{Strategy: models.StrategyAuthor}},
		{Tier: models.TierRejected, Candidate: models.Candidate{Strategy: models.StrategyISBN}},
	}

	if got := len(Accepted(verdicts, true)); got != 1 {
		t.Errorf("Expected 1 strict acceptance, got %d", got)
	}
	if got := len(Accepted(verdicts, false)); got != 2 {
		t.Errorf("Expected 2 relaxed acceptances, got %d", got)
	}
}

func TestYearHelpers(t *testing.T) {
	tests := []struct {
		date     string
		expected int
	}{
		{date: "2005-06-16", expected: 2005},
		{date: "1976年", expected: 1976},
		{date: "circa 1899?", expected: 1899},
		{date: "", expected: 0},
		{date: "unknown", expected: 0},
	}
	for _, tt := range tests {
		if got := ExtractYear(tt.date); got != tt.expected {
			t.Errorf("ExtractYear(%q) = %d, expected %d", tt.date, got, tt.expected)
		}
	}

	if !YearMatch(2005, 2007) {
		t.Error("Expected years two apart to match")
	}
	if YearMatch(2005, 2008) {
		t.Error("Expected years three apart not to match")
	}
	if YearMatch(0, 2005) {
		t.Error("Expected unknown year not to match")
	}
}

func TestPublisherMatch(t *testing.T) {
	if !PublisherMatch("岩波書店", "株式会社 岩波書店") {
		t.Error("Expected containment to match")
	}
	if PublisherMatch("岩波書店", "福音館書店") {
		t.Error("Expected different publishers not to match")
	}
	if PublisherMatch("", "福音館書店") {
		t.Error("Expected empty publisher not to match")
	}
}

func TestISBN10To13(t *testing.T) {
	if got := ISBN10To13("0306406152"); got != "9780306406157" {
		t.Errorf("Expected 9780306406157, got %s", got)
	}
	if got := ISBN10To13("12345"); got != "" {
		t.Errorf("Expected empty result for invalid input, got %s", got)
	}
}
