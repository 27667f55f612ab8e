package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldRecordID   = "record_id"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentRemote  = "remote"
	ComponentEvent   = "event"
)
