package images

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// pngOf returns n bytes starting with the PNG signature.
func pngOf(n int) []byte {
	sig := []byte("\x89PNG\r\n\x1a\n")
	return append(sig, bytes.Repeat([]byte{0}, n-len(sig))...)
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     []byte
		mimeType string
		wantErr  error
		anyErr   bool
	}{
		{name: "real cover", status: http.StatusOK, body: pngOf(5000), mimeType: "image/png"},
		{name: "placeholder", status: http.StatusOK, body: pngOf(200), wantErr: ErrPlaceholderImage},
		{name: "html page", status: http.StatusOK, body: bytes.Repeat([]byte("<html>"), 400), wantErr: ErrNotImage},
		{name: "not found", status: http.StatusNotFound, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			img, err := NewFetcher().Fetch(context.Background(), srv.URL+"/cover.png")
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("Expected error")
				}
			default:
				if err != nil {
					t.Fatalf("Fetch failed: %v", err)
				}
				if img.MIMEType != tt.mimeType || len(img.Data) != len(tt.body) {
					t.Errorf("Unexpected image %s, %d bytes", img.MIMEType, len(img.Data))
				}
			}
		})
	}
}
