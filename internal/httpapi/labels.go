package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kittclouds/bookshelf/internal/store"
)

func invalidQuery(name, value string) error {
	return fmt.Errorf("%w: query parameter %s has invalid value %q", store.ErrInvalidInput, name, value)
}

func (h *handlers) getLabels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.d.Store.GetBookmark(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if b == nil {
		respondNotFound(w, "bookmark")
		return
	}
	respondJSON(w, http.StatusOK, b.Labels)
}

type aiLabelsRequest struct {
	Labels []store.LabelInput `json:"labels"`
}

func (h *handlers) setAILabels(w http.ResponseWriter, r *http.Request) {
	var req aiLabelsRequest
	if !bind(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := h.d.Store.SetAILabels(r.Context(), id, req.Labels)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		respondNotFound(w, "bookmark")
		return
	}
	labels, err := h.d.Store.GetLabels(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, labels)
}

func (h *handlers) applyAutoLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.d.Store.ApplyAutoLabels(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if labels == nil {
		respondNotFound(w, "bookmark")
		return
	}
	respondJSON(w, http.StatusOK, labels)
}

func (h *handlers) removeLabel(w http.ResponseWriter, r *http.Request) {
	text, err := url.PathUnescape(chi.URLParam(r, "text"))
	if err != nil {
		h.fail(w, r, invalidQuery("text", chi.URLParam(r, "text")))
		return
	}
	ok, err := h.d.Store.RemoveLabel(r.Context(), chi.URLParam(r, "id"), text)
	h.respondChanged(w, r, ok, err, "label")
}

func (h *handlers) listVocabulary(w http.ResponseWriter, r *http.Request) {
	vocab, err := h.d.Store.ListLabelVocabulary(r.Context(), r.URL.Query().Get("profileId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vocab)
}
