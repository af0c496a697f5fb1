// Package openlibrary searches Open Library and builds cover URLs from its
// covers service.
package openlibrary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lehigh-university-libraries/bookcovers/internal/bibliographic"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

const (
	providerName = "openlibrary"

	DefaultBaseURL   = "https://openlibrary.org"
	DefaultCoversURL = "https://covers.openlibrary.org"
)

const searchFields = "title,author_name,publisher,first_publish_year,publish_date,isbn,cover_i"

// Client is a bibliographic.Searcher backed by the Open Library search API.
type Client struct {
	BaseURL    string
	CoversURL  string
	HTTPClient *http.Client
}

// New creates an Open Library client. An empty baseURL uses the public service.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		CoversURL: DefaultCoversURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider name recorded on candidates.
func (c *Client) Name() string {
	return providerName
}

type searchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []doc `json:"docs"`
}

type doc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	PublishDate      []string `json:"publish_date"`
	ISBN             []string `json:"isbn"`
	CoverID          int      `json:"cover_i"`
}

// Search runs one query against search.json.
func (c *Client) Search(ctx context.Context, req bibliographic.Request) ([]bibliographic.Item, error) {
	params := url.Values{}
	switch req.Strategy {
	case models.StrategyISBN:
		params.Set("isbn", req.ISBN)
	case models.StrategyTitleAuthor:
		params.Set("title", req.Title)
		params.Set("author", req.Author)
	case models.StrategyTitle:
		params.Set("title", req.Title)
	case models.StrategyAuthor:
		params.Set("author", req.Author)
	default:
		return nil, nil
	}
	params.Set("fields", searchFields)
	if req.MaxResults > 0 {
		params.Set("limit", strconv.Itoa(req.MaxResults))
	}
	if req.LanguageRestrict != "" {
		params.Set("lang", req.LanguageRestrict)
	}

	searchURL := c.BaseURL + "/search.json?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %v: %w", providerName, err, bibliographic.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, bibliographic.StatusError(providerName, resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %v: %w", providerName, err, bibliographic.ErrMalformedResponse)
	}

	items := make([]bibliographic.Item, 0, len(result.Docs))
	for _, d := range result.Docs {
		items = append(items, c.toItem(d))
	}
	return items, nil
}

func (c *Client) toItem(d doc) bibliographic.Item {
	item := bibliographic.Item{
		Title:   d.Title,
		Authors: d.AuthorName,
		ISBNs:   d.ISBN,
	}
	if len(d.Publisher) > 0 {
		item.Publisher = d.Publisher[0]
	}
	switch {
	case d.FirstPublishYear > 0:
		item.PublishedDate = strconv.Itoa(d.FirstPublishYear)
	case len(d.PublishDate) > 0:
		item.PublishedDate = d.PublishDate[0]
	}
	if d.CoverID > 0 {
		item.ImageLinks = bibliographic.ImageLinks{
			Small:  c.CoverURL(d.CoverID, "S"),
			Medium: c.CoverURL(d.CoverID, "M"),
			Large:  c.CoverURL(d.CoverID, "L"),
		}
	}
	return item
}

// CoverURL returns the covers service URL for a cover id and size (S, M or L).
func (c *Client) CoverURL(coverID int, size string) string {
	return fmt.Sprintf("%s/b/id/%d-%s.jpg", strings.TrimSuffix(c.CoversURL, "/"), coverID, size)
}
