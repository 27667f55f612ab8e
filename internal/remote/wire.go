package remote

import "kakeibo/internal/core"

// Wire actions accepted by the POST side of the remote contract.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSync   = "sync"
)

// mutationRequest is the POST body. Exactly one of Record, ID or
// Records is meaningful depending on Action.
type mutationRequest struct {
	Action  string       `json:"action"`
	Record  *core.Record `json:"record,omitempty"`
	ID      string       `json:"id,omitempty"`
	// No omitempty: sync must be able to send an explicitly empty
	// array, which clears the remote set.
	Records []core.Record `json:"records"`
}

// fetchResponse is the GET body: the full remote record set behind a
// success flag.
type fetchResponse struct {
	Success bool          `json:"success"`
	Records []core.Record `json:"records,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// mutationResponse is the POST body. Result carries the sync count for
// the sync action.
type mutationResponse struct {
	Success bool        `json:"success"`
	Result  *syncResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type syncResult struct {
	Synced int `json:"synced"`
}
