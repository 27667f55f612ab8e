package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"kakeibo/internal/core"
)

// Handler serves the CRUD-over-HTTP record-store contract on top of
// any RecordStore. Failures are reported in-band through the success
// flag, so the transport status stays 200 whenever a well-formed
// request reached the store.
type Handler struct {
	store RecordStore
}

func NewHandler(store RecordStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleFetch(w, r)
	case http.MethodPost:
		h.handleMutation(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.FetchAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Remote fetch failed", "error", err)
		writeWire(w, fetchResponse{Success: false, Error: err.Error()})
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeWire(w, fetchResponse{Success: true, Records: records})
}

func (h *Handler) handleMutation(w http.ResponseWriter, r *http.Request) {
	var req mutationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxResponseBytes)).Decode(&req); err != nil {
		writeWire(w, mutationResponse{Success: false, Error: "malformed request body"})
		return
	}

	resp, err := h.apply(r, req)
	if err != nil {
		slog.WarnContext(r.Context(), "Remote mutation failed",
			"action", req.Action, "error", err)
		writeWire(w, mutationResponse{Success: false, Error: err.Error()})
		return
	}
	writeWire(w, resp)
}

func (h *Handler) apply(r *http.Request, req mutationRequest) (mutationResponse, error) {
	ctx := r.Context()
	switch req.Action {
	case ActionAdd:
		if req.Record == nil {
			return mutationResponse{}, errors.New("add requires a record")
		}
		if err := h.store.Add(ctx, *req.Record); err != nil {
			return mutationResponse{}, err
		}
	case ActionUpdate:
		if req.Record == nil || req.Record.ID == "" {
			return mutationResponse{}, errors.New("update requires a record with an id")
		}
		if err := h.store.Update(ctx, *req.Record); err != nil {
			return mutationResponse{}, err
		}
	case ActionDelete:
		if req.ID == "" {
			return mutationResponse{}, errors.New("delete requires an id")
		}
		if err := h.store.Delete(ctx, req.ID); err != nil {
			return mutationResponse{}, err
		}
	case ActionSync:
		if req.Records == nil {
			return mutationResponse{}, errors.New("sync requires a records array")
		}
		if err := h.store.ReplaceAll(ctx, req.Records); err != nil {
			return mutationResponse{}, err
		}
		return mutationResponse{Success: true, Result: &syncResult{Synced: len(req.Records)}}, nil
	default:
		return mutationResponse{}, fmt.Errorf("unknown action %q", req.Action)
	}
	return mutationResponse{Success: true}, nil
}

func writeWire(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode wire response", "error", err)
	}
}
