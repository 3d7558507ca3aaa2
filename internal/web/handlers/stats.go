package handlers

import (
	"net/http"

	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/store"
)

// StatsHandler reports index statistics.
type StatsHandler struct {
	store    store.Store
	provider embedding.Provider
	backend  string
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(s store.Store, provider embedding.Provider, backend string) *StatsHandler {
	return &StatsHandler{store: s, provider: provider, backend: backend}
}

// StatsResponse is the JSON payload for the stats endpoint.
type StatsResponse struct {
	Faces   int    `json:"faces"`
	Photos  int    `json:"photos"`
	Model   string `json:"model"`
	Dim     int    `json:"dim"`
	Backend string `json:"backend"`
}

// Get handles GET /api/v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read store")
		return
	}

	photos := make(map[string]struct{})
	for _, rec := range snap {
		photos[rec.PhotoRef] = struct{}{}
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		Faces:   len(snap),
		Photos:  len(photos),
		Model:   h.provider.Name(),
		Dim:     h.provider.Dim(),
		Backend: h.backend,
	})
}
