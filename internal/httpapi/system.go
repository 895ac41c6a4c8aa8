package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.d.StartTime).Seconds(),
		Version:       h.d.Version,
	})
}

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// readyz reports 503 while the schema is being created and after it failed.
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	resp := readyzResponse{Ready: true}
	if err := h.d.Store.Degraded(); err != nil {
		resp = readyzResponse{Error: err.Error()}
	} else if !h.storeReleased(r) {
		resp = readyzResponse{Error: "schema initialisation in progress"}
	}

	h.d.Metrics.SetStoreReady(resp.Ready)
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// storeReleased checks the readiness gate, waiting only briefly.
func (h *handlers) storeReleased(r *http.Request) bool {
	ctx, cancel := context.WithTimeout(r.Context(), 50*time.Millisecond)
	defer cancel()
	return h.d.Store.Ready(ctx) == nil
}

const maxBackupBody = 256 << 20

func (h *handlers) exportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := h.d.Store.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="bookshelf-backup.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// importBackup replaces the whole database with a backup body.
func (h *handlers) importBackup(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "read body: "+err.Error())
		return
	}
	if err := h.d.Store.Import(r.Context(), data); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"restored": true})
}
