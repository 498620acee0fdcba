package forex

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves the rate endpoints from the cache.
type Handler struct {
	cache  *Cache
	logger *slog.Logger
}

// NewHandler creates a handler reading from cache.
func NewHandler(cache *Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cache: cache, logger: logger}
}

// ServeRates writes the normalized snapshot: timestamp plus the rate
// table, without upstream boilerplate.
func (h *Handler) ServeRates(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.cache.Current()
	if !ok {
		http.Error(w, "Forex data not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("Failed to encode forex snapshot", "error", err)
	}
}

// ServeRaw writes the upstream payload verbatim.
func (h *Handler) ServeRaw(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.cache.Raw()
	if !ok {
		http.Error(w, "Forex data not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
