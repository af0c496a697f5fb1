package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Covers services answer unknown ids with a tiny blank image
	DefaultMinBytes = 1000
	DefaultMaxBytes = 10 << 20
)

var (
	ErrPlaceholderImage = errors.New("image too small (likely placeholder)")
	ErrNotImage         = errors.New("response is not an image")
)

// Image is a downloaded cover.
type Image struct {
	Data     []byte
	MIMEType string
}

// Fetcher retrieves cover images for visual verification
type Fetcher struct {
	HTTPClient *http.Client
	MinBytes   int
	MaxBytes   int64
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		MinBytes: DefaultMinBytes,
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch downloads the image at url and rejects placeholder-sized or non-image bodies.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	if len(data) < f.MinBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPlaceholderImage, len(data))
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mimeType)
	}

	return &Image{Data: data, MIMEType: mimeType}, nil
}
