package models

import (
	"time"
)

// StreamEvent is a single event pushed to session subscribers
type StreamEvent struct {
	EventType string      `json:"event_type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types
const (
	EventTypeMessageAppended = "message_appended"
	EventTypeMessageUpdated  = "message_updated"
	EventTypeStateChanged    = "state_changed"
	EventTypeFilesChanged    = "files_changed"
	EventTypePipelineLog     = "pipeline_log"
	EventTypeError           = "error"
)

// Progress actions reported while changes are applied
const (
	ProgressCreating = "Creating"
	ProgressUpdating = "Updating"
	ProgressComplete = "Complete"
)

// ProgressEvent reports the apply position within a batch of changes.
// Current is 1-based; the final event has Current == Total and CurrentFile "Complete".
type ProgressEvent struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
	Action      string `json:"action"`
}

// Log levels for LogEntry
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry is a fire-and-forget line for the UI log sink
type LogEntry struct {
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
