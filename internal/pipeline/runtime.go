package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
	"github.com/bizmatters/agent-builder/code-editor/internal/sandbox"
)

// RuntimeConfig configures the sandboxed install and dev server
type RuntimeConfig struct {
	WorkDir        string
	InstallCommand string
	DevCommand     string
	DevServerURL   string
	Runner         sandbox.CommandRunner
}

// RuntimePipeline mirrors the project to disk, installs it and spawns a dev server
type RuntimePipeline struct {
	cfg RuntimeConfig

	mu        sync.Mutex
	processes map[string]sandbox.Process
	baseCtx   context.Context
	cancel    context.CancelFunc
}

// NewRuntime creates the runtime strategy
func NewRuntime(cfg RuntimeConfig) *RuntimePipeline {
	if cfg.Runner == nil {
		cfg.Runner = sandbox.ExecRunner{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RuntimePipeline{
		cfg:       cfg,
		processes: make(map[string]sandbox.Process),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Mode implements Strategy
func (r *RuntimePipeline) Mode() string {
	return ModeRuntime
}

// Run implements Strategy. A previous dev server for the same session is stopped first.
func (r *RuntimePipeline) Run(ctx context.Context, req Request, onLog LogFunc) (*PreviewResult, error) {
	started := time.Now()
	r.Stop(req.SessionID)

	rt, err := sandbox.NewOnDisk(filepath.Join(r.cfg.WorkDir, req.SessionID), r.cfg.Runner)
	if err != nil {
		return nil, err
	}

	emit(onLog, models.LogLevelInfo, ModeRuntime, "Writing project files")
	for _, p := range req.Files.Keys() {
		rec, _ := req.Files.Get(p)
		if dir := path.Dir(p); dir != "." {
			if err := rt.Mkdir(ctx, dir, true); err != nil {
				return nil, fmt.Errorf("failed to create directory for %s: %w", p, err)
			}
		}
		if err := rt.WriteFile(ctx, p, rec.Content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p, err)
		}
	}

	forward := func(level string) func(string) {
		return func(line string) {
			emit(onLog, level, ModeRuntime, line)
		}
	}

	emit(onLog, models.LogLevelInfo, ModeRuntime, "$ "+r.cfg.InstallCommand)
	if err := rt.Run(ctx, r.cfg.InstallCommand, forward(models.LogLevelInfo)); err != nil {
		emit(onLog, models.LogLevelError, ModeRuntime, fmt.Sprintf("install failed: %v", err))
		return nil, fmt.Errorf("failed to install dependencies: %w", err)
	}

	emit(onLog, models.LogLevelInfo, ModeRuntime, "$ "+r.cfg.DevCommand)
	proc, err := rt.Start(r.baseCtx, r.cfg.DevCommand, forward(models.LogLevelInfo))
	if err != nil {
		emit(onLog, models.LogLevelError, ModeRuntime, fmt.Sprintf("dev server failed to start: %v", err))
		return nil, fmt.Errorf("failed to start dev server: %w", err)
	}

	r.mu.Lock()
	r.processes[req.SessionID] = proc
	r.mu.Unlock()

	go func(sessionID string) {
		if err := proc.Wait(); err != nil {
			log.Printf(`{"level":"warn","message":"Dev server exited","session_id":"%s","error":"%v"}`, sessionID, err)
		}
		r.mu.Lock()
		if r.processes[sessionID] == proc {
			delete(r.processes, sessionID)
		}
		r.mu.Unlock()
	}(req.SessionID)

	emit(onLog, models.LogLevelInfo, ModeRuntime, "Dev server available at "+r.cfg.DevServerURL)
	return &PreviewResult{
		Mode:     ModeRuntime,
		Steps:    []string{r.cfg.InstallCommand, r.cfg.DevCommand},
		URL:      r.cfg.DevServerURL,
		Duration: time.Since(started),
	}, nil
}

// Stop kills the dev server started for sessionID, if any
func (r *RuntimePipeline) Stop(sessionID string) {
	r.mu.Lock()
	proc, ok := r.processes[sessionID]
	delete(r.processes, sessionID)
	r.mu.Unlock()

	if ok {
		if err := proc.Kill(); err != nil {
			log.Printf(`{"level":"warn","message":"Failed to stop dev server","session_id":"%s","error":"%v"}`, sessionID, err)
		}
	}
}

// Close stops every dev server
func (r *RuntimePipeline) Close() {
	r.cancel()
	r.mu.Lock()
	procs := r.processes
	r.processes = make(map[string]sandbox.Process)
	r.mu.Unlock()

	for sessionID, proc := range procs {
		if err := proc.Kill(); err != nil {
			log.Printf(`{"level":"warn","message":"Failed to stop dev server","session_id":"%s","error":"%v"}`, sessionID, err)
		}
	}
}
