package http

import (
	"fmt"
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

// recordPayload is the write shape for records. Amount accepts either
// a JSON number or a numeric string; anything else is a validation
// error, not a silent zero.
type recordPayload struct {
	Date          string `json:"date"`
	Category      string `json:"category"`
	PaymentMethod string `json:"paymentMethod"`
	Amount        any    `json:"amount"`
	Memo          string `json:"memo"`
}

func (p recordPayload) toInput() (core.RecordInput, error) {
	amount, err := coerceAmount(p.Amount)
	if err != nil {
		return core.RecordInput{}, err
	}
	return core.RecordInput{
		Date:          p.Date,
		Category:      p.Category,
		PaymentMethod: p.PaymentMethod,
		Amount:        amount,
		Memo:          p.Memo,
	}, nil
}

func coerceAmount(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("amount is required: %w", core.ErrInvalidAmount)
	case float64:
		return int64(n), nil
	case string:
		return core.ParseAmount(n)
	default:
		return 0, fmt.Errorf("amount must be a number: %w", core.ErrInvalidAmount)
	}
}

// mirrorStatus reports how the secondary copy fared. It never changes
// the response status: the local write already succeeded.
type mirrorStatus struct {
	Attempted bool   `json:"attempted"`
	Error     string `json:"error,omitempty"`
}

type recordResponse struct {
	Record core.Record  `json:"record"`
	Remote mirrorStatus `json:"remote"`
}

func mirrorStatusFrom(outcome <-chan services.MirrorOutcome) mirrorStatus {
	o := <-outcome
	st := mirrorStatus{Attempted: o.Attempted}
	if o.Err != nil {
		st.Error = o.Err.Error()
	}
	return st
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.expenses.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var payload recordPayload
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	in, err := payload.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, outcome, err := s.expenses.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordResponse{Record: rec, Remote: mirrorStatusFrom(outcome)})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload recordPayload
	if err := decodeBody(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	in, err := payload.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, outcome, err := s.expenses.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse{Record: rec, Remote: mirrorStatusFrom(outcome)})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.expenses.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Remote mirrorStatus `json:"remote"`
	}{Remote: mirrorStatusFrom(outcome)})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.expenses.Filter(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var f core.Filter
	if err := decodeBody(r, &f); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := f.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.expenses.SetFilter(r.Context(), f); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.expenses.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
