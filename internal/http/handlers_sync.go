package http

import (
	"net/http"
	"net/url"

	"kakeibo/internal/log"
	"kakeibo/internal/storage"
)

type syncConfigPayload struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

type syncResultPayload struct {
	Count int `json:"count"`
}

func (s *Server) handleGetSyncConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.syncs.Config(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncConfigPayload{Enabled: cfg.Enabled, Endpoint: cfg.Endpoint})
}

func (s *Server) handleSetSyncConfig(w http.ResponseWriter, r *http.Request) {
	var payload syncConfigPayload
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if msg := validateSyncConfig(payload); msg != "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg})
		return
	}
	cfg := storage.SyncConfig{Enabled: payload.Enabled, Endpoint: payload.Endpoint}
	if err := s.syncs.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// validateSyncConfig returns a client-facing message when the payload
// cannot describe a usable bridge target, empty otherwise.
func validateSyncConfig(p syncConfigPayload) string {
	if p.Endpoint == "" {
		if p.Enabled {
			return "sync cannot be enabled without an endpoint"
		}
		return ""
	}
	u, err := url.Parse(p.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "endpoint must be an http or https URL"
	}
	return ""
}

func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	n, err := s.syncs.PushAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResultPayload{Count: n})
}

func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	n, err := s.syncs.PullAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResultPayload{Count: n})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.syncs.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Local state reset to defaults")
	w.WriteHeader(http.StatusNoContent)
}
