package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/imaging"
	"github.com/kozaktomas/facefind/internal/match"
)

// SearchHandler accepts a selfie upload and returns the stored photos the
// person appears in.
type SearchHandler struct {
	provider      embedding.Provider
	engine        *match.Engine
	maxUploadSize int64
	emb           config.EmbeddingConfig
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(provider embedding.Provider, engine *match.Engine, maxUploadSize int64, emb config.EmbeddingConfig) *SearchHandler {
	return &SearchHandler{
		provider:      provider,
		engine:        engine,
		maxUploadSize: maxUploadSize,
		emb:           emb,
	}
}

// SearchResponse is the JSON payload for a search request.
type SearchResponse struct {
	Matches  []string `json:"matches"`
	Count    int      `json:"count"`
	Searched bool     `json:"searched"`
}

// Search handles POST /api/v1/search. The selfie arrives as multipart field
// "file"; an optional "threshold" field may tighten the configured default.
// A selfie that cannot be decoded or holds no face yields zero matches, not
// an error: guests retry with a better photo, they do not debug status codes.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	// Guests may tighten the threshold, never loosen it: an override above
	// the configured default would let anyone enumerate the whole index.
	threshold := 0.0
	if v := r.FormValue("threshold"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= h.engine.DefaultThreshold() {
			threshold = parsed
		}
	}

	empty := SearchResponse{Matches: []string{}, Searched: true}

	payload := data
	if !h.emb.SendRaw {
		payload, err = imaging.Normalize(data, h.emb.MaxImageEdge)
		if err != nil {
			log.Printf("[SEARCH] cannot decode upload %s: %v", sanitizeForLog(header.Filename), err)
			respondJSON(w, http.StatusOK, empty)
			return
		}
	}

	queries, err := h.provider.Extract(r.Context(), payload)
	if err != nil && !errors.Is(err, embedding.ErrNoFaceDetected) {
		log.Printf("[SEARCH] extraction failed for %s: %v", sanitizeForLog(header.Filename), err)
		respondJSON(w, http.StatusOK, empty)
		return
	}
	if len(queries) == 0 {
		log.Printf("[SEARCH] no face in upload %s", sanitizeForLog(header.Filename))
		respondJSON(w, http.StatusOK, empty)
		return
	}

	matches, err := h.engine.Search(r.Context(), queries, threshold)
	if err != nil {
		log.Printf("[SEARCH] search failed: %v", err)
		respondJSON(w, http.StatusOK, empty)
		return
	}

	respondJSON(w, http.StatusOK, SearchResponse{
		Matches:  matches,
		Count:    len(matches),
		Searched: true,
	})
}
