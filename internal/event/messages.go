package event

import (
	"encoding/json"
	"time"
)

// Mutation operations carried by record events.
const (
	OpAdded   = "record.added"
	OpUpdated = "record.updated"
	OpDeleted = "record.deleted"
)

// RecordEvent is a lightweight notification that a local mutation
// committed. Consumers that need the record body fetch it themselves;
// the event is not a sync mechanism and is never retried.
type RecordEvent struct {
	Op        string    `json:"op"`
	RecordID  string    `json:"recordId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEvent(op, recordID string) *RecordEvent {
	return &RecordEvent{Op: op, RecordID: recordID, Timestamp: time.Now()}
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
