package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kittclouds/bookshelf/internal/store"
)

func (h *handlers) snoozeRoutes(r chi.Router) {
	r.Get("/", h.listSnoozes)
	r.Post("/", h.snooze)
	r.Get("/ready", h.readySnoozes)
	r.Get("/find", h.findSnooze)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getSnooze)
		r.Delete("/", h.deleteSnooze)
		r.Post("/notified", h.markNotified)
		r.Post("/reschedule", h.reschedule)
	})
}

func (h *handlers) listSnoozes(w http.ResponseWriter, r *http.Request) {
	items, err := h.d.Store.ListSnoozedItems(r.Context(), r.URL.Query().Get("profileId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *handlers) snooze(w http.ResponseWriter, r *http.Request) {
	var in store.SnoozeInput
	if !bind(w, r, &in) {
		return
	}
	item, err := h.d.Store.SnoozeItem(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// readySnoozes serves the external sweeper. ?now= is Unix milliseconds and
// defaults to the current time.
func (h *handlers) readySnoozes(w http.ResponseWriter, r *http.Request) {
	var now int64
	if raw := r.URL.Query().Get("now"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(w, r, invalidQuery("now", raw))
			return
		}
		now = v
	}
	items, err := h.d.Store.ListReadySnoozedItems(r.Context(), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *handlers) findSnooze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item, err := h.d.Store.FindSnoozedItem(r.Context(), store.SnoozeItemType(q.Get("itemType")), q.Get("itemId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if item == nil {
		respondNotFound(w, "snooze")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) getSnooze(w http.ResponseWriter, r *http.Request) {
	item, err := h.d.Store.GetSnoozedItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if item == nil {
		respondNotFound(w, "snooze")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) deleteSnooze(w http.ResponseWriter, r *http.Request) {
	ok, err := h.d.Store.DeleteSnoozedItem(r.Context(), chi.URLParam(r, "id"))
	h.respondChanged(w, r, ok, err, "snooze")
}

// markNotified answers 409 when the snooze was already notified.
func (h *handlers) markNotified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	ok, err := h.d.Store.MarkSnoozeNotified(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	item, err := h.d.Store.GetSnoozedItem(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if item == nil {
		respondNotFound(w, "snooze")
		return
	}
	respondError(w, http.StatusConflict, CodeConflict, "snooze already notified")
}

type rescheduleRequest struct {
	SnoozeUntil int64            `json:"snoozeUntil,omitempty"`
	SnoozeType  store.SnoozeType `json:"snoozeType"`
	SnoozeLabel string           `json:"snoozeLabel,omitempty"`
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !bind(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := h.d.Store.RescheduleSnooze(r.Context(), id, req.SnoozeUntil, req.SnoozeType, req.SnoozeLabel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		respondNotFound(w, "snooze")
		return
	}
	item, err := h.d.Store.GetSnoozedItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}
