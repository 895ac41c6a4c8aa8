package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kittclouds/bookshelf/internal/importer"
	"github.com/kittclouds/bookshelf/internal/logger"
	"github.com/kittclouds/bookshelf/internal/store"
)

// maxJSONBody bounds decoded request bodies.
const maxJSONBody = 1 << 20

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorInfo.Code.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeBadRequest  = "BAD_REQUEST"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeInternal    = "INTERNAL_ERROR"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Error: &ErrorInfo{Code: code, Message: message},
	})
}

func respondNotFound(w http.ResponseWriter, what string) {
	respondError(w, http.StatusNotFound, CodeNotFound, what+" not found")
}

// errorStatus maps store and importer errors onto HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidParent),
		errors.Is(err, store.ErrCollectionCycle),
		errors.Is(err, importer.ErrEmptyDocument),
		errors.Is(err, importer.ErrMalformedDocument):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, store.ErrSchemaUnavailable),
		errors.Is(err, store.ErrVectorsUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// their text is not echoed to the client.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", logger.String("path", r.URL.Path), logger.Error(err))
		msg = http.StatusText(status)
	}
	respondError(w, status, code, msg)
}

// decodeJSON parses a JSON request body with a size limit, rejecting
// unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	return nil
}

// bind decodes the body or answers 400 itself; it reports whether the
// handler should continue.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
