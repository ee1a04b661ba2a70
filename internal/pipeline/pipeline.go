// Package pipeline produces project previews, either as a simulated build with
// synthetic HTML or by installing and serving the project in a sandbox.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// Preview modes
const (
	ModeSimulated = "simulated"
	ModeRuntime   = "runtime"
)

// ErrUnknownMode is returned for a preview mode with no strategy
var ErrUnknownMode = errors.New("unknown preview mode")

// FileSource is the read side of a project file store
type FileSource interface {
	Get(path string) (models.FileRecord, bool)
	Keys() []string
}

// LogFunc receives pipeline output
type LogFunc func(models.LogEntry)

// Request identifies the project to preview
type Request struct {
	SessionID string
	Files     FileSource
}

// PreviewResult describes a finished preview
type PreviewResult struct {
	Mode     string        `json:"mode"`
	Steps    []string      `json:"steps"`
	HTML     string        `json:"html,omitempty"`
	URL      string        `json:"url,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Strategy builds a preview for one project
type Strategy interface {
	Mode() string
	Run(ctx context.Context, req Request, onLog LogFunc) (*PreviewResult, error)
}

func emit(onLog LogFunc, level, source, message string) {
	if onLog == nil {
		return
	}
	onLog(models.LogEntry{
		Level:     level,
		Source:    source,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
