package handlers

import (
	"net/http"
)

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.resolver.Stats())
}

// HandleInvalidate drops one cache key, as produced by resolver.CacheKey.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, r, "Cache key required", http.StatusBadRequest)
		return
	}
	if !h.resolver.InvalidateKey(key) {
		h.writeError(w, r, "Cache key not found", http.StatusNotFound)
		return
	}
	h.logger.Info("Cache key invalidated", "request_id", GetRequestID(r.Context()), "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.resolver.ClearAll()
	h.logger.Info("Cache cleared", "request_id", GetRequestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
