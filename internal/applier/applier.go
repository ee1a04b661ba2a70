package applier

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// FileStore is the write side of the project store
type FileStore interface {
	Has(path string) bool
	Set(path, content string) error
}

// SandboxRuntime mirrors project files into a runtime filesystem
type SandboxRuntime interface {
	Mkdir(ctx context.Context, path string, recursive bool) error
	WriteFile(ctx context.Context, path, content string) error
}

// ProgressFunc receives progress events in order
type ProgressFunc func(models.ProgressEvent)

// LogFunc receives warnings that do not abort the batch
type LogFunc func(models.LogEntry)

// ApplyError reports a store write failure that stopped a batch
type ApplyError struct {
	Applied int
	Total   int
	Path    string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply %q after %d of %d changes: %v", e.Path, e.Applied, e.Total, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Applier writes change records into a file store one at a time
type Applier struct {
	store   FileStore
	sandbox SandboxRuntime
	delay   time.Duration
	onLog   LogFunc
	tracer  trace.Tracer
}

// Option configures an Applier
type Option func(*Applier)

// WithSandbox mirrors every write into the given runtime
func WithSandbox(s SandboxRuntime) Option {
	return func(a *Applier) {
		a.sandbox = s
	}
}

// WithDelay pauses between changes so progress stays visible
func WithDelay(d time.Duration) Option {
	return func(a *Applier) {
		a.delay = d
	}
}

// WithLogSink receives sandbox mirror warnings
func WithLogSink(fn LogFunc) Option {
	return func(a *Applier) {
		a.onLog = fn
	}
}

// New creates an applier for store
func New(store FileStore, opts ...Option) *Applier {
	a := &Applier{
		store:  store,
		tracer: otel.Tracer("change-applier"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes changes in order and returns how many were written. The
// progress label for each change is decided against the store as it is when
// that change is reached. A store failure or context cancellation stops the
// batch with an *ApplyError; sandbox failures are only logged.
func (a *Applier) Apply(ctx context.Context, changes []models.ChangeRecord, onProgress ProgressFunc) (int, error) {
	ctx, span := a.tracer.Start(ctx, "applier.apply")
	defer span.End()

	total := len(changes)
	span.SetAttributes(attribute.Int("changes.total", total))

	emit := func(ev models.ProgressEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	applied := 0
	for i, change := range changes {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return applied, &ApplyError{Applied: applied, Total: total, Path: change.Path, Err: err}
		}

		action := models.ProgressCreating
		if a.store.Has(change.Path) {
			action = models.ProgressUpdating
		}
		emit(models.ProgressEvent{Current: i + 1, Total: total, CurrentFile: change.Path, Action: action})

		if err := a.store.Set(change.Path, change.Content); err != nil {
			span.RecordError(err)
			return applied, &ApplyError{Applied: applied, Total: total, Path: change.Path, Err: err}
		}
		applied++

		if a.sandbox != nil {
			a.mirror(ctx, change)
		}

		if a.delay > 0 && i < total-1 {
			if err := wait(ctx, a.delay); err != nil {
				span.RecordError(err)
				next := changes[i+1].Path
				return applied, &ApplyError{Applied: applied, Total: total, Path: next, Err: err}
			}
		}
	}

	emit(models.ProgressEvent{Current: total, Total: total, CurrentFile: models.ProgressComplete, Action: models.ProgressComplete})
	span.SetAttributes(attribute.Int("changes.applied", applied))
	return applied, nil
}

func (a *Applier) mirror(ctx context.Context, change models.ChangeRecord) {
	var err error
	if dir := path.Dir(change.Path); dir != "." && dir != "/" {
		err = a.sandbox.Mkdir(ctx, dir, true)
	}
	if err == nil {
		err = a.sandbox.WriteFile(ctx, change.Path, change.Content)
	}
	if err == nil {
		return
	}

	log.Printf(`{"level":"warn","message":"Sandbox mirror failed","path":"%s","error":"%v"}`, change.Path, err)
	if a.onLog != nil {
		a.onLog(models.LogEntry{
			Level:     models.LogLevelWarn,
			Source:    "sandbox",
			Message:   fmt.Sprintf("Failed to mirror %s into sandbox: %v", change.Path, err),
			Timestamp: time.Now(),
		})
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
