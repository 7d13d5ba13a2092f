//go:build linux || darwin || freebsd || netbsd || openbsd

package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

const (
	defaultRows = 24
	defaultCols = 80
)

// HostOptions configures StartHost.
type HostOptions struct {
	// Cmd is the child to spawn. It must not be started.
	Cmd *exec.Cmd

	// Init is written to the child's input before any user input.
	Init []byte

	// Stdin is copied into the PTY. When it is nil no input is forwarded
	// and the host only ends with the child.
	Stdin io.Reader

	// Terminal is the user's controlling terminal. It is put into raw mode
	// and its size is mirrored onto the PTY. Nil disables both.
	Terminal *os.File
}

// Host runs a child process under a pseudo-terminal and forwards input and
// window size changes to it. Read returns the child's output.
type Host struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	raw    *RawGuard
	stdin  cancelreader.CancelReader
	resize chan os.Signal

	exited chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	reason error

	doneOnce  sync.Once
	closeOnce sync.Once
}

// StartHost opens a PTY sized like opts.Terminal, enters raw mode and spawns
// the child.
//
// Parameters:
//   - opts: The child and the terminal to bind it to
//
// Returns:
//   - *Host: The running host; Close must be called
//   - error: If raw mode can't be entered or the child can't be spawned
func StartHost(opts HostOptions) (*Host, error) {
	size := &pty.Winsize{Rows: defaultRows, Cols: defaultCols}
	interactive := opts.Terminal != nil && term.IsTerminal(int(opts.Terminal.Fd()))
	if interactive {
		if cols, rows, err := term.GetSize(int(opts.Terminal.Fd())); err == nil {
			size = &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
		}
	}

	h := &Host{
		cmd:    opts.Cmd,
		exited: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if interactive {
		raw, err := EnterRawMode(int(opts.Terminal.Fd()))
		if err != nil {
			return nil, err
		}
		h.raw = raw
	}

	ptmx, err := pty.StartWithSize(opts.Cmd, size)
	if err != nil {
		_ = h.raw.Restore()
		return nil, fmt.Errorf("spawn %s: %w", opts.Cmd.Path, err)
	}
	h.ptmx = ptmx
	log.Debug("Spawned child under pty", "path", opts.Cmd.Path, "pid", opts.Cmd.Process.Pid, "rows", size.Rows, "cols", size.Cols)

	go h.wait()

	if opts.Stdin != nil {
		stdin, err := cancelreader.NewReader(opts.Stdin)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("wrap stdin: %w", err)
		}
		h.stdin = stdin
	}
	go h.forwardStdin(opts.Init)

	if interactive {
		h.resize = make(chan os.Signal, 1)
		signal.Notify(h.resize, syscall.SIGWINCH)
		go h.forwardResize(opts.Terminal)
	}

	return h, nil
}

// Read reads the child's output. The EIO Linux reports once the child side
// is gone is returned as io.EOF.
func (h *Host) Read(p []byte) (int, error) {
	n, err := h.ptmx.Read(p)
	if errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

// Done is closed when the child exits, input ends, or resizing fails.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Err returns why the host stopped. It is nil for a child exit or the end
// of input.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// ExitCode returns the child's exit code, or -1 while it is running.
func (h *Host) ExitCode() int {
	select {
	case <-h.exited:
		return h.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

func (h *Host) finish(reason error) {
	h.mu.Lock()
	if h.reason == nil {
		h.reason = reason
	}
	h.mu.Unlock()
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *Host) wait() {
	err := h.cmd.Wait()
	close(h.exited)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		h.finish(fmt.Errorf("wait for child: %w", err))
		return
	}
	log.Debug("Child exited", "code", h.cmd.ProcessState.ExitCode())
	h.finish(nil)
}

func (h *Host) forwardStdin(init []byte) {
	if len(init) > 0 {
		if _, err := h.ptmx.Write(init); err != nil {
			h.finish(fmt.Errorf("initialize shell: %w", err))
			return
		}
	}
	if h.stdin == nil {
		return
	}

	_, err := io.Copy(h.ptmx, h.stdin)
	switch {
	case errors.Is(err, cancelreader.ErrCanceled):
		return
	case err != nil:
		h.finish(fmt.Errorf("forward stdin: %w", err))
	default:
		log.Debug("Stdin closed")
		h.finish(nil)
	}
}

func (h *Host) forwardResize(terminal *os.File) {
	for {
		select {
		case <-h.done:
			return
		case <-h.resize:
			if err := pty.InheritSize(terminal, h.ptmx); err != nil {
				h.finish(fmt.Errorf("resize pty: %w", err))
				return
			}
		}
	}
}

// Close stops input forwarding, kills the child if it is still running,
// closes the PTY and restores the terminal. It is idempotent.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.resize != nil {
			signal.Stop(h.resize)
		}
		if h.stdin != nil {
			h.stdin.Cancel()
		}

		select {
		case <-h.exited:
		default:
			if h.cmd.Process != nil {
				_ = h.cmd.Process.Kill()
			}
		}

		if h.ptmx != nil {
			_ = h.ptmx.Close()
		}
		h.finish(nil)
		err = h.raw.Restore()
	})
	return err
}
