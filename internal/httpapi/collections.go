package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kittclouds/bookshelf/internal/store"
)

func (h *handlers) collectionRoutes(r chi.Router) {
	r.Get("/", h.listCollections)
	r.Post("/", h.createCollection)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getCollection)
		r.Patch("/", h.updateCollection)
		r.Delete("/", h.deleteCollection)
		r.Post("/restore", h.restoreCollection)

		r.Get("/items", h.listItems)
		r.Post("/items", h.addItem)
		r.Delete("/items/{bookmarkId}", h.removeItem)
		r.Post("/move", h.moveItem)
	})
}

// listCollections returns the live tree, or the trash with ?deleted=true.
func (h *handlers) listCollections(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	deleted, _ := strconv.ParseBool(r.URL.Query().Get("deleted"))

	var cols []*store.Collection
	var err error
	if deleted {
		cols, err = h.d.Store.ListDeletedCollections(r.Context(), profileID)
	} else {
		cols, err = h.d.Store.ListCollections(r.Context(), profileID)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cols)
}

func (h *handlers) createCollection(w http.ResponseWriter, r *http.Request) {
	var in store.CreateCollectionInput
	if !bind(w, r, &in) {
		return
	}
	c, err := h.d.Store.CreateCollection(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *handlers) getCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.d.Store.GetCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if c == nil {
		respondNotFound(w, "collection")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handlers) updateCollection(w http.ResponseWriter, r *http.Request) {
	var patch store.CollectionPatch
	if !bind(w, r, &patch) {
		return
	}
	c, err := h.d.Store.UpdateCollection(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if c == nil {
		respondNotFound(w, "collection")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge"))

	var ok bool
	var err error
	if purge {
		ok, err = h.d.Store.PurgeCollection(r.Context(), id)
	} else {
		ok, err = h.d.Store.DeleteCollection(r.Context(), id)
	}
	h.respondChanged(w, r, ok, err, "collection")
}

func (h *handlers) restoreCollection(w http.ResponseWriter, r *http.Request) {
	ok, err := h.d.Store.RestoreCollection(r.Context(), chi.URLParam(r, "id"))
	h.respondChanged(w, r, ok, err, "trashed collection")
}

func (h *handlers) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.d.Store.ListCollectionItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

type itemRequest struct {
	BookmarkID       string `json:"bookmarkId"`
	FromCollectionID string `json:"fromCollectionId,omitempty"`
}

// addItem answers 201 when the bookmark was appended and 200 when it was
// already there. A missing bookmark or collection is a 404.
func (h *handlers) addItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !bind(w, r, &req) {
		return
	}
	ctx := r.Context()
	collectionID := chi.URLParam(r, "id")

	added, err := h.d.Store.AddBookmarkToCollection(ctx, req.BookmarkID, collectionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if added {
		respondJSON(w, http.StatusCreated, map[string]bool{"added": true})
		return
	}

	ids, err := h.d.Store.CollectionsForBookmark(ctx, req.BookmarkID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, id := range ids {
		if id == collectionID {
			respondJSON(w, http.StatusOK, map[string]bool{"added": false})
			return
		}
	}
	respondNotFound(w, "bookmark or collection")
}

func (h *handlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ok, err := h.d.Store.RemoveBookmarkFromCollection(r.Context(), chi.URLParam(r, "bookmarkId"), chi.URLParam(r, "id"))
	h.respondChanged(w, r, ok, err, "collection item")
}

// moveItem moves a bookmark into the collection in the path.
func (h *handlers) moveItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !bind(w, r, &req) {
		return
	}
	if err := h.d.Store.MoveBookmarkToCollection(r.Context(), req.BookmarkID, req.FromCollectionID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
