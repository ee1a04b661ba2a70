package models

import (
	"time"
)

// FileRecord is the current content of one project file
type FileRecord struct {
	Path           string    `json:"path"`
	Content        string    `json:"content"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	Hash           string    `json:"hash"`
}

// ChangeAction is derived from the file store at parse time
type ChangeAction string

const (
	ChangeActionCreate ChangeAction = "create"
	ChangeActionUpdate ChangeAction = "update"
)

// ChangeRecord is one parsed file edit
type ChangeRecord struct {
	Path    string       `json:"path"`
	Content string       `json:"content"`
	Action  ChangeAction `json:"action"`
	Diff    string       `json:"diff,omitempty"`
}

// RelevantFile is a (possibly truncated) file selected for prompt context
type RelevantFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}
