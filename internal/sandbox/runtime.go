// Package sandbox provides the runtime filesystem that project files are
// mirrored into, and the process runner used to install and serve them.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrPathEscapesRoot is returned for paths that resolve outside the sandbox root
var ErrPathEscapesRoot = errors.New("path escapes sandbox root")

// ErrNoWorkDir is returned when spawning processes in a memory-only runtime
var ErrNoWorkDir = errors.New("sandbox has no working directory")

// Runtime is a sandboxed filesystem with optional process execution
type Runtime struct {
	fs      afero.Fs
	workDir string
	runner  CommandRunner
}

// NewMemory creates a runtime backed by an in-memory filesystem. It cannot spawn processes.
func NewMemory() *Runtime {
	return &Runtime{fs: afero.NewMemMapFs()}
}

// NewOnDisk creates a runtime rooted at workDir on the host filesystem
func NewOnDisk(workDir string, runner CommandRunner) (*Runtime, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Runtime{
		fs:      afero.NewBasePathFs(afero.NewOsFs(), workDir),
		workDir: workDir,
		runner:  runner,
	}, nil
}

// NewWithFs wraps an existing filesystem, mainly for tests
func NewWithFs(fs afero.Fs, workDir string, runner CommandRunner) *Runtime {
	return &Runtime{fs: fs, workDir: workDir, runner: runner}
}

// Fs exposes the underlying filesystem
func (r *Runtime) Fs() afero.Fs {
	return r.fs
}

// WorkDir is the host directory backing the runtime, empty for memory runtimes
func (r *Runtime) WorkDir() string {
	return r.workDir
}

// Mkdir creates a directory, with parents when recursive is set
func (r *Runtime) Mkdir(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := resolve(p)
	if err != nil {
		return err
	}
	if recursive {
		return r.fs.MkdirAll(clean, 0o755)
	}
	if err := r.fs.Mkdir(clean, 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// WriteFile writes content, replacing any existing file
func (r *Runtime) WriteFile(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := resolve(p)
	if err != nil {
		return err
	}
	return afero.WriteFile(r.fs, clean, []byte(content), 0o644)
}

// ReadFile returns the content at p
func (r *Runtime) ReadFile(p string) (string, error) {
	clean, err := resolve(p)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(r.fs, clean)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Clear removes every file under the sandbox root
func (r *Runtime) Clear() error {
	entries, err := afero.ReadDir(r.fs, "/")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := r.fs.RemoveAll("/" + e.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Run executes command in the work directory and waits for it, forwarding output lines
func (r *Runtime) Run(ctx context.Context, command string, onLine func(string)) error {
	name, args, err := r.command(command)
	if err != nil {
		return err
	}
	return r.runner.Run(ctx, r.workDir, onLine, name, args...)
}

// Start launches command in the background and returns its handle
func (r *Runtime) Start(ctx context.Context, command string, onLine func(string)) (Process, error) {
	name, args, err := r.command(command)
	if err != nil {
		return nil, err
	}
	return r.runner.Start(ctx, r.workDir, onLine, name, args...)
}

func (r *Runtime) command(command string) (string, []string, error) {
	if r.workDir == "" || r.runner == nil {
		return "", nil, ErrNoWorkDir
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return fields[0], fields[1:], nil
}

// resolve maps a project path to an absolute path under the sandbox root
func resolve(p string) (string, error) {
	rel := strings.TrimPrefix(p, "/")
	if rel == "" {
		return "", fmt.Errorf("empty sandbox path")
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, p)
	}
	return "/" + clean, nil
}
