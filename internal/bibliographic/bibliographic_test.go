package bibliographic

import (
	"errors"
	"net/http"
	"testing"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

func TestRequestQuery(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		expected string
	}{
		{name: "isbn", req: Request{Strategy: models.StrategyISBN, ISBN: "9784001145959"}, expected: "isbn:9784001145959"},
		{name: "title and author", req: Request{Strategy: models.StrategyTitleAuthor, Title: "モモ", Author: "ミヒャエル・エンデ"}, expected: "intitle:モモ inauthor:ミヒャエル・エンデ"},
		{name: "quoted title", req: Request{Strategy: models.StrategyTitle, Title: "The Snowy Day"}, expected: `intitle:"The Snowy Day"`},
		{name: "author only", req: Request{Strategy: models.StrategyAuthor, Author: "Eric Carle"}, expected: `inauthor:"Eric Carle"`},
		{name: "unknown strategy", req: Request{Strategy: "bogus"}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Query(); got != tt.expected {
				t.Errorf("Query() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestImageLinksBest(t *testing.T) {
	tests := []struct {
		links   ImageLinks
		url     string
		quality float64
	}{
		{links: ImageLinks{Thumbnail: "t", Large: "l"}, url: "l", quality: 1.0},
		{links: ImageLinks{Thumbnail: "t", Medium: "m"}, url: "m", quality: 0.8},
		{links: ImageLinks{Small: "s"}, url: "s", quality: 0.6},
		{links: ImageLinks{Thumbnail: "t"}, url: "t", quality: 0.4},
		{links: ImageLinks{}, url: "", quality: 0},
	}

	for _, tt := range tests {
		url, quality := tt.links.Best()
		if url != tt.url || quality != tt.quality {
			t.Errorf("Best() = %q, %f; expected %q, %f", url, quality, tt.url, tt.quality)
		}
	}
}

func TestStatusError(t *testing.T) {
	if err := StatusError("test", http.StatusTooManyRequests); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited for 429, got %v", err)
	}
	for _, code := range []int{http.StatusInternalServerError, http.StatusForbidden, http.StatusBadGateway} {
		err := StatusError("test", code)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable for %d, got %v", code, err)
		}
		if errors.Is(err, ErrRateLimited) {
			t.Errorf("Did not expect ErrRateLimited for %d", code)
		}
	}
}
