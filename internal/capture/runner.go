// Package capture runs a single command, captures everything it prints and
// records the output as a notebook cell.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultGracePeriod is how long an interrupted command gets to exit before
// it is killed.
const DefaultGracePeriod = 2 * time.Second

// Runner executes a command and captures its combined stdout and stderr.
type Runner struct {
	// Stdin is passed to the command unchanged.
	Stdin io.Reader

	// Stdout and Stderr receive a copy of the command's output when set.
	Stdout io.Writer
	Stderr io.Writer

	// Interrupt stops the capture. The command is asked to stop and the
	// output captured so far is still returned.
	Interrupt <-chan os.Signal

	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
}

// Result is the outcome of a captured command.
type Result struct {
	Output      []byte
	ExitCode    int
	Interrupted bool
}

// Run starts command and waits until it exits or the capture is interrupted.
// A non-zero exit code is not an error.
//
// Parameters:
//   - ctx: Context for the command; cancelling it interrupts the capture
//   - command: The program and its arguments
//
// Returns:
//   - *Result: The captured output and exit code
//   - error: If the command can't be started
func (r *Runner) Run(ctx context.Context, command []string) (*Result, error) {
	if len(command) == 0 {
		return nil, errors.New("no command given")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var interrupted atomic.Bool
	go func() {
		select {
		case <-r.Interrupt:
			log.Debug("Interrupted, stopping command", "command", command[0])
			interrupted.Store(true)
			cancel()
		case <-runCtx.Done():
		}
	}()

	grace := r.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	var out captureBuffer
	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = out.tee(r.Stdout)
	cmd.Stderr = out.tee(r.Stderr)
	cmd.Cancel = func() error { return interruptProcess(cmd.Process) }
	cmd.WaitDelay = grace

	log.Debug("Running command", "command", command)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("command not found: %s", command[0])
		}
		return nil, fmt.Errorf("failed to run command: %w", err)
	}

	err := cmd.Wait()
	result := &Result{
		Output:      out.bytes(),
		ExitCode:    cmd.ProcessState.ExitCode(),
		Interrupted: interrupted.Load() || ctx.Err() != nil,
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
	case result.Interrupted:
		log.Debug("Command stopped after interrupt", "err", err)
	default:
		return result, fmt.Errorf("wait for command: %w", err)
	}
	log.Debug("Command finished", "exit_code", result.ExitCode, "bytes", len(result.Output), "interrupted", result.Interrupted)
	return result, nil
}

// captureBuffer collects output written concurrently from stdout and stderr.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *captureBuffer) tee(w io.Writer) io.Writer {
	return &teeWriter{buf: b, out: w}
}

func (b *captureBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

type teeWriter struct {
	buf *captureBuffer
	out io.Writer
}

// Write records p and forwards it. Failures to forward are logged so a
// closed terminal never stops the capture.
func (t *teeWriter) Write(p []byte) (int, error) {
	t.buf.mu.Lock()
	t.buf.buf.Write(p)
	t.buf.mu.Unlock()

	if t.out != nil {
		if _, err := t.out.Write(p); err != nil {
			log.Debug("Failed to forward command output", "err", err)
		}
	}
	return len(p), nil
}
