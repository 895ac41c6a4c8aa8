package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxImportBody bounds an uploaded bookmark export.
const maxImportBody = 32 << 20

// importDocument imports a Netscape export sent as the raw request body into
// ?profileId=&spaceId=.
func (h *handlers) importDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "read body: "+err.Error())
		return
	}

	q := r.URL.Query()
	stats, err := h.d.Importer.Import(r.Context(), string(raw), q.Get("profileId"), q.Get("spaceId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type embeddingRequest struct {
	Vector []float32 `json:"vector"`
}

func (h *handlers) putEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if !bind(w, r, &req) {
		return
	}
	if err := h.d.Store.PutEmbedding(r.Context(), chi.URLParam(r, "id"), req.Vector); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteEmbedding(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Store.DeleteEmbedding(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type similarRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

func (h *handlers) similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if !bind(w, r, &req) {
		return
	}
	if req.K == 0 {
		req.K = 10
	}
	hits, err := h.d.Store.SimilarBookmarks(r.Context(), req.Vector, req.K)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hits)
}
