package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/lehigh-university-libraries/bookcovers/internal/cache"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

type fakeResolver struct {
	queries     []models.BookQuery
	invalidated []string
	cleared     bool
	keys        map[string]bool
}

func (f *fakeResolver) ResolveCoverImage(ctx context.Context, q models.BookQuery) models.ImageDescriptor {
	f.queries = append(f.queries, q)
	return models.ImageDescriptor{Kind: models.KindCover, URL: "https://covers.example/" + q.ID + ".jpg", Tier: "exact", Confidence: 1}
}

func (f *fakeResolver) InvalidateKey(key string) bool {
	f.invalidated = append(f.invalidated, key)
	return f.keys[key]
}

func (f *fakeResolver) ClearAll() { f.cleared = true }

func (f *fakeResolver) Stats() cache.Stats {
	return cache.Stats{Size: 3, Capacity: 500, Hits: 7}
}

func newServer(f *fakeResolver) http.Handler {
	h := New(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	h.Register(mux)
	return RequestID(mux)
}

func TestHandleResolve(t *testing.T) {
	f := &fakeResolver{}
	srv := newServer(f)

	body := `{"id":"42","title":"モモ","author":"ミヒャエル・エンデ","isbn":"9784001145959"}`
	req := httptest.NewRequest(http.MethodPost, "/api/covers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	var d models.ImageDescriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if d.URL != "https://covers.example/42.jpg" || d.Kind != models.KindCover {
		t.Errorf("Unexpected descriptor %+v", d)
	}
	if len(f.queries) != 1 || f.queries[0].Author != "ミヒャエル・エンデ" {
		t.Errorf("Unexpected queries %+v", f.queries)
	}
}

func TestHandleResolveRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing title", body: `{"author":"エンデ"}`, want: "title is required"},
		{name: "not json", body: `title=momo`, want: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeResolver{}
			req := httptest.NewRequest(http.MethodPost, "/api/covers", strings.NewReader(tt.body))
			req.Header.Set("X-Request-ID", "req-1")
			rec := httptest.NewRecorder()
			newServer(f).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode error: %v", err)
			}
			if resp.Error != tt.want || resp.RequestID != "req-1" {
				t.Errorf("Unexpected error response %+v", resp)
			}
			if len(f.queries) != 0 {
				t.Error("Resolver must not run for invalid input")
			}
		})
	}
}

func TestCacheAdministration(t *testing.T) {
	f := &fakeResolver{keys: map[string]bool{"isbn:9784001145959": true}}
	srv := newServer(f)

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{name: "stats", method: http.MethodGet, path: "/api/cache/stats", code: http.StatusOK},
		{name: "invalidate known key", method: http.MethodDelete, path: "/api/cache/isbn:9784001145959", code: http.StatusNoContent},
		{name: "invalidate unknown key", method: http.MethodDelete, path: "/api/cache/isbn:0000", code: http.StatusNotFound},
		{name: "clear", method: http.MethodDelete, path: "/api/cache", code: http.StatusNoContent},
		{name: "wrong method", method: http.MethodGet, path: "/api/covers", code: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.code, rec.Code)
			}
		})
	}

	if !f.cleared {
		t.Error("Expected ClearAll to be called")
	}
	if len(f.invalidated) != 2 || f.invalidated[0] != "isbn:9784001145959" {
		t.Errorf("Unexpected invalidations %v", f.invalidated)
	}
}

func TestCacheStatsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakeResolver{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))

	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Size != 3 || stats.Capacity != 500 || stats.Hits != 7 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}
