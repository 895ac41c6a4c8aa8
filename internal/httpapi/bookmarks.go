package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kittclouds/bookshelf/internal/store"
)

func (h *handlers) bookmarkRoutes(r chi.Router) {
	r.Get("/", h.listBookmarks)
	r.Post("/", h.createBookmark)
	r.Post("/delete", h.deleteBookmarks)
	r.Get("/exists", h.bookmarkExists)
	r.Get("/by-url", h.bookmarksByURL)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getBookmark)
		r.Patch("/", h.updateBookmark)
		r.Delete("/", h.deleteBookmark)
		r.Post("/restore", h.restoreBookmark)
		r.Post("/visit", h.visitBookmark)

		r.Get("/labels", h.getLabels)
		r.Put("/labels/ai", h.setAILabels)
		r.Post("/labels/auto", h.applyAutoLabels)
		r.Delete("/labels/{text}", h.removeLabel)

		r.Get("/collections", h.bookmarkCollections)

		r.Put("/embedding", h.putEmbedding)
		r.Delete("/embedding", h.deleteEmbedding)
	})
}

// bookmarkFilter reads the list query string:
// profileId, spaceId, global, q, label (repeatable), collectionId and
// deleted=include|only.
func bookmarkFilter(r *http.Request) (store.BookmarkFilter, error) {
	q := r.URL.Query()
	f := store.BookmarkFilter{
		ProfileID:    q.Get("profileId"),
		SpaceID:      q.Get("spaceId"),
		Search:       q.Get("q"),
		Labels:       q["label"],
		CollectionID: q.Get("collectionId"),
	}
	if raw := q.Get("global"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, invalidQuery("global", raw)
		}
		f.IsGlobal = &v
	}
	switch deleted := q.Get("deleted"); deleted {
	case "":
	case "include":
		f.IncludeDeleted = true
	case "only":
		f.OnlyDeleted = true
	default:
		return f, invalidQuery("deleted", deleted)
	}
	return f, nil
}

func (h *handlers) listBookmarks(w http.ResponseWriter, r *http.Request) {
	f, err := bookmarkFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bookmarks, err := h.d.Store.ListBookmarks(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bookmarks)
}

func (h *handlers) createBookmark(w http.ResponseWriter, r *http.Request) {
	var in store.CreateBookmarkInput
	if !bind(w, r, &in) {
		return
	}
	b, err := h.d.Store.CreateBookmark(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (h *handlers) getBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := h.d.Store.GetBookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if b == nil {
		respondNotFound(w, "bookmark")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *handlers) updateBookmark(w http.ResponseWriter, r *http.Request) {
	var patch store.BookmarkPatch
	if !bind(w, r, &patch) {
		return
	}
	b, err := h.d.Store.UpdateBookmark(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if b == nil {
		respondNotFound(w, "bookmark")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// deleteBookmark moves a bookmark to the trash, or removes it for good with
// ?purge=true.
func (h *handlers) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge"))

	var ok bool
	var err error
	if purge {
		ok, err = h.d.Store.PurgeBookmark(r.Context(), id)
	} else {
		ok, err = h.d.Store.DeleteBookmark(r.Context(), id)
	}
	h.respondChanged(w, r, ok, err, "bookmark")
}

func (h *handlers) restoreBookmark(w http.ResponseWriter, r *http.Request) {
	ok, err := h.d.Store.RestoreBookmark(r.Context(), chi.URLParam(r, "id"))
	h.respondChanged(w, r, ok, err, "trashed bookmark")
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (h *handlers) deleteBookmarks(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !bind(w, r, &req) {
		return
	}
	n, err := h.d.Store.DeleteBookmarks(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *handlers) bookmarkExists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	url := strings.TrimSpace(q.Get("url"))
	if url == "" {
		h.fail(w, r, invalidQuery("url", ""))
		return
	}
	ok, err := h.d.Store.BookmarkExists(r.Context(), url, q.Get("profileId"), q.Get("spaceId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

func (h *handlers) bookmarksByURL(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		h.fail(w, r, invalidQuery("url", ""))
		return
	}
	bookmarks, err := h.d.Store.ListBookmarksByURL(r.Context(), url)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bookmarks)
}

func (h *handlers) visitBookmark(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Store.IncrementVisitCount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) bookmarkCollections(w http.ResponseWriter, r *http.Request) {
	ids, err := h.d.Store.CollectionsForBookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

// respondChanged answers the boolean store operations: 204 when a row
// changed, 404 otherwise.
func (h *handlers) respondChanged(w http.ResponseWriter, r *http.Request, ok bool, err error, what string) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		respondNotFound(w, what)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
