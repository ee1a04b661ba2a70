package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Process is a handle on a background command
type Process interface {
	Wait() error
	Kill() error
}

// CommandRunner executes commands inside a directory
type CommandRunner interface {
	Run(ctx context.Context, dir string, onLine func(string), name string, args ...string) error
	Start(ctx context.Context, dir string, onLine func(string), name string, args ...string) (Process, error)
}

// ExecRunner runs host processes
type ExecRunner struct{}

// Run starts the command and waits for it to exit
func (e ExecRunner) Run(ctx context.Context, dir string, onLine func(string), name string, args ...string) error {
	p, err := e.Start(ctx, dir, onLine, name, args...)
	if err != nil {
		return err
	}
	return p.Wait()
}

// Start launches the command with stdout and stderr streamed line by line
func (ExecRunner) Start(ctx context.Context, dir string, onLine func(string), name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		// Keep the pipe flowing if a line was too long for the scanner.
		io.Copy(io.Discard, pr)
	}()
	go func() {
		err := cmd.Wait()
		pw.Close()
		<-scanned
		p.err = err
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
