package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/remote"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyPaymentMethod),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategoryName):
		status = http.StatusUnprocessableEntity
		msg = err.Error()
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrCategoryInUse):
		status = http.StatusConflict
		msg = err.Error()
	case errors.Is(err, remote.ErrRemoteUnavailable):
		status = http.StatusBadGateway
		msg = err.Error()
	case errors.Is(err, remote.ErrSyncDisabled):
		status = http.StatusConflict
		msg = err.Error()
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
