package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/bookcovers/internal/cache"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

// CoverResolver is the part of the resolver the HTTP surface needs.
type CoverResolver interface {
	ResolveCoverImage(ctx context.Context, q models.BookQuery) models.ImageDescriptor
	InvalidateKey(key string) bool
	ClearAll()
	Stats() cache.Stats
}

type Handler struct {
	resolver CoverResolver
	validate *validator.Validate
	logger   *slog.Logger
}

func New(resolver CoverResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		resolver: resolver,
		validate: v,
		logger:   logger.With("component", "handlers"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/covers", h.HandleResolve)
	mux.HandleFunc("GET /api/cache/stats", h.HandleCacheStats)
	mux.HandleFunc("DELETE /api/cache/{key}", h.HandleInvalidate)
	mux.HandleFunc("DELETE /api/cache", h.HandleClear)
}

type requestIDKey struct{}

// RequestID tags each request with an id, reusing one sent by a proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id set by RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", "request_id", GetRequestID(r.Context()), "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, message string, code int) {
	id := GetRequestID(r.Context())
	h.logger.Error(message, "request_id", id, "path", r.URL.Path, "status", code)
	h.writeJSON(w, r, code, errorResponse{Error: message, RequestID: id})
}
