package provider

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	lineBuffer      = 100
	maxStdoutLine   = 16 * 1024 * 1024
	initialLineSize = 64 * 1024
)

// Line is one line of CLI stdout, or the error that ended the stream
type Line struct {
	Text string
	Err  error
}

// Process is a running CLI. Its stdout is delivered on Lines, which is
// closed once the process has exited.
type Process struct {
	kind   Kind
	cmd    *exec.Cmd
	lines  chan Line
	done   chan struct{}
	killed atomic.Bool

	waitErr error
}

// Lines returns the stdout channel
func (p *Process) Lines() <-chan Line { return p.lines }

// Kind returns which provider started the process
func (p *Process) Kind() Kind { return p.kind }

// PID returns the child's process id
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill terminates the child and the processes it started. Killing an
// exited process is not an error.
func (p *Process) Kill() error {
	p.killed.Store(true)
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := killProcessTree(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return &ExecutorError{Kind: IOError, Err: err}
	}
	return nil
}

// Killed reports whether Kill was called
func (p *Process) Killed() bool { return p.killed.Load() }

// Wait blocks until the process has exited and all output was delivered
func (p *Process) Wait() error {
	<-p.done
	return p.waitErr
}

// Execute validates opts, starts the provider's CLI and streams its stdout.
// The child has no stdin. Cancelling ctx kills it; callers that must
// outlive a request pass a context without cancellation.
func Execute(ctx context.Context, p Provider, opts ExecuteOptions, log *zap.Logger) (*Process, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := p.ValidateOptions(opts); err != nil {
		return nil, err
	}
	path := p.CLIPath()
	if path == "" {
		return nil, &ExecutorError{Kind: CLINotFound, Detail: p.Kind().DisplayName()}
	}
	args := p.BuildArgs(opts)

	log.Debug("Executing CLI",
		zap.String("provider", string(p.Kind())),
		zap.String("path", path),
		zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = nil
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessTree(cmd.Process) }
	if opts.WorkingDirectory != "" {
		cmd.Dir = opts.WorkingDirectory
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExecutorError{Kind: SpawnFailed, Detail: "Failed to capture stdout", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ExecutorError{Kind: SpawnFailed, Detail: "Failed to capture stderr", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExecutorError{Kind: SpawnFailed, Detail: "Failed to spawn " + p.Kind().DisplayName() + " CLI: " + err.Error(), Err: err}
	}

	proc := &Process{
		kind:  p.Kind(),
		cmd:   cmd,
		lines: make(chan Line, lineBuffer),
		done:  make(chan struct{}),
	}
	go proc.stream(stdout, stderr, log.With(zap.String("provider", string(p.Kind())), zap.Int("pid", proc.PID())))
	return proc, nil
}

// stream forwards stdout, drains stderr and reaps the child
func (p *Process) stream(stdout, stderr io.Reader, log *zap.Logger) {
	defer close(p.done)
	defer close(p.lines)

	var wg sync.WaitGroup
	var lastStderr string
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			lastStderr = line
			log.Debug("CLI stderr", zap.String("line", line))
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, initialLineSize), maxStdoutLine)
	for scanner.Scan() {
		p.lines <- Line{Text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		p.lines <- Line{Err: &ExecutorError{Kind: IOError, Err: err}}
		// keep the pipe drained so the child is not blocked on write
		_, _ = io.Copy(io.Discard, stdout)
	}

	wg.Wait()
	p.waitErr = p.cmd.Wait()

	switch {
	case p.Killed():
		log.Debug("CLI killed")
	case p.waitErr != nil:
		detail := lastStderr
		if detail == "" {
			detail = p.waitErr.Error()
		}
		log.Warn("CLI exited with error", zap.Error(p.waitErr), zap.String("stderr", lastStderr))
		p.lines <- Line{Err: &ExecutorError{Kind: ProcessError, Detail: detail, Err: p.waitErr}}
	default:
		log.Debug("CLI exited")
	}
}

// Collect runs a turn to completion and returns every stdout line
func Collect(ctx context.Context, p Provider, opts ExecuteOptions, log *zap.Logger) ([]string, error) {
	proc, err := Execute(ctx, p, opts, log)
	if err != nil {
		return nil, err
	}
	var out []string
	var firstErr error
	for line := range proc.Lines() {
		if line.Err != nil {
			if firstErr == nil {
				firstErr = line.Err
			}
			continue
		}
		out = append(out, line.Text)
	}
	if firstErr != nil {
		return out, firstErr
	}
	return out, nil
}
