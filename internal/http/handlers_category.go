package http

import (
	"net/http"
)

type categoryPayload struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.categories.Add(r.Context(), payload.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryPayload{Name: payload.Name})
}

// handleRemoveCategory deletes a category. If records still reference
// it the client must resend with confirm=true, mirroring an
// "are you sure" dialog.
func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	err := s.categories.Remove(r.Context(), r.PathValue("name"), func() bool { return confirmed })
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
