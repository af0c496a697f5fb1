// Package bibliographic defines the contract shared by book search providers.
package bibliographic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

var (
	// ErrRateLimited means the provider refused the request with a rate limit response.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrUnavailable means the provider could not serve the request.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse means the provider answered with a body that could not be parsed.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Request is one search against a provider. Only the terms relevant to
// Strategy are set.
type Request struct {
	Strategy         models.Strategy
	ISBN             string
	Title            string
	Author           string
	MaxResults       int
	LanguageRestrict string
}

// Query renders the request in the field-qualified syntax used by the
// Google Books volumes endpoint.
func (r Request) Query() string {
	switch r.Strategy {
	case models.StrategyISBN:
		return "isbn:" + r.ISBN
	case models.StrategyTitleAuthor:
		return fmt.Sprintf("intitle:%s inauthor:%s", quote(r.Title), quote(r.Author))
	case models.StrategyTitle:
		return "intitle:" + quote(r.Title)
	case models.StrategyAuthor:
		return "inauthor:" + quote(r.Author)
	}
	return ""
}

func quote(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " 　") {
		return `"` + strings.ReplaceAll(s, `"`, "") + `"`
	}
	return s
}

// ImageLinks lists the cover renditions a provider offers for one record.
type ImageLinks struct {
	Thumbnail string
	Small     string
	Medium    string
	Large     string
}

// Best returns the largest available rendition and a quality score for it.
// Records without any image return "", 0.
func (l ImageLinks) Best() (string, float64) {
	switch {
	case l.Large != "":
		return l.Large, 1.0
	case l.Medium != "":
		return l.Medium, 0.8
	case l.Small != "":
		return l.Small, 0.6
	case l.Thumbnail != "":
		return l.Thumbnail, 0.4
	}
	return "", 0
}

// Item is one record returned by a provider.
type Item struct {
	Title         string
	Authors       []string
	Publisher     string
	PublishedDate string
	ImageLinks    ImageLinks
	ISBNs         []string
}

// Searcher is implemented by every bibliographic search provider.
type Searcher interface {
	Name() string
	Search(ctx context.Context, req Request) ([]Item, error)
}

// StatusError classifies a non-2xx HTTP status.
func StatusError(provider string, code int) error {
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%s returned status %d: %w", provider, code, ErrRateLimited)
	}
	return fmt.Errorf("%s returned status %d: %w", provider, code, ErrUnavailable)
}
