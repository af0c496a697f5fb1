// Package googlebooks searches the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/bookcovers/internal/bibliographic"
	"google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerName = "googlebooks"

// Config configures the Google Books client.
type Config struct {
	APIKey string
	// Endpoint overrides the API base URL, e.g. for a local stub.
	Endpoint   string
	HTTPClient *http.Client
}

// Client is a bibliographic.Searcher backed by Google Books.
type Client struct {
	svc *books.Service
}

// New creates a Google Books client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		// A caller supplied client bypasses the library transport, so the
		// key has to travel on our own transport.
		client := *cfg.HTTPClient
		if cfg.APIKey != "" {
			client.Transport = &keyTransport{key: cfg.APIKey, base: client.Transport}
		}
		opts = append(opts, option.WithHTTPClient(&client))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimSuffix(cfg.Endpoint, "/")+"/"))
	}

	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google books service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Name returns the provider name recorded on candidates.
func (c *Client) Name() string {
	return providerName
}

// Search runs one volumes query.
func (c *Client) Search(ctx context.Context, req bibliographic.Request) ([]bibliographic.Item, error) {
	q := req.Query()
	if q == "" {
		return nil, nil
	}

	call := c.svc.Volumes.List(q).PrintType("books").Context(ctx)
	if req.MaxResults > 0 {
		call = call.MaxResults(int64(req.MaxResults))
	}
	if req.LanguageRestrict != "" {
		call = call.LangRestrict(req.LanguageRestrict)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classify(err)
	}

	items := make([]bibliographic.Item, 0, len(resp.Items))
	for _, v := range resp.Items {
		if v == nil || v.VolumeInfo == nil {
			continue
		}
		items = append(items, toItem(v.VolumeInfo))
	}
	return items, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return bibliographic.StatusError(providerName, apiErr.Code)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("failed to decode %s response: %v: %w", providerName, err, bibliographic.ErrMalformedResponse)
	}

	return fmt.Errorf("failed to query %s: %v: %w", providerName, err, bibliographic.ErrUnavailable)
}

func toItem(info *books.VolumeVolumeInfo) bibliographic.Item {
	item := bibliographic.Item{
		Title:         info.Title,
		Authors:       info.Authors,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
	}
	if links := info.ImageLinks; links != nil {
		item.ImageLinks = bibliographic.ImageLinks{
			Thumbnail: CoverURL(firstNonEmpty(links.Thumbnail, links.SmallThumbnail)),
			Small:     CoverURL(links.Small),
			Medium:    CoverURL(links.Medium),
			Large:     CoverURL(firstNonEmpty(links.ExtraLarge, links.Large)),
		}
	}
	for _, id := range info.IndustryIdentifiers {
		if id == nil {
			continue
		}
		if id.Type == "ISBN_13" || id.Type == "ISBN_10" {
			item.ISBNs = append(item.ISBNs, id.Identifier)
		}
	}
	return item
}

// CoverURL upgrades a Google Books image link to https and drops the page
// curl effect Google adds to thumbnails.
func CoverURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	q := u.Query()
	if q.Get("edge") == "curl" {
		q.Del("edge")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type keyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return base.RoundTrip(r)
}
