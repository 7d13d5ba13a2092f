package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultFlushInterval is how often the transcript is uploaded.
	DefaultFlushInterval = 250 * time.Millisecond

	teardownTimeout = 10 * time.Second
)

// ErrDisconnected is returned when the realtime connection drops mid-session.
var ErrDisconnected = errors.New("lost connection to the notebook")

// Options configures Run.
type Options struct {
	Launcher *Launcher
	Profiles ProfileSource
	Editor   Editor

	// Disconnected is closed when the editor's connection is gone.
	Disconnected <-chan struct{}

	Stdin    io.Reader
	Stdout   io.Writer
	Terminal *os.File

	// FlushInterval defaults to DefaultFlushInterval.
	FlushInterval time.Duration

	// Setup bounds the requests made before the terminal goes raw. Ctrl-C
	// only reaches the process during that window. Defaults to Run's ctx.
	Setup context.Context
}

// Run records one shell session. It returns once the shell exits, input
// ends or the connection to the notebook is lost. The terminal is restored
// and the heading is closed on every path.
//
// Parameters:
//   - ctx: Context for the session
//   - opts: Session collaborators
//
// Returns:
//   - error: Setup errors, ErrDisconnected, or teardown errors
func Run(ctx context.Context, opts Options) error {
	cmd, err := opts.Launcher.Command()
	if err != nil {
		return err
	}

	setupCtx := opts.Setup
	if setupCtx == nil {
		setupCtx = ctx
	}
	writer, err := NewNotebookWriter(setupCtx, opts.Profiles, opts.Editor)
	if err != nil {
		return err
	}
	log.Debug("Created session cells", "heading", writer.HeadingCellID(), "code", writer.CodeCellID())

	host, err := StartHost(HostOptions{
		Cmd:      cmd,
		Init:     opts.Launcher.InitLine(),
		Stdin:    opts.Stdin,
		Terminal: opts.Terminal,
	})
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if closeErr := writer.Close(closeCtx); closeErr != nil {
			log.Debug("Failed to close heading", "err", closeErr)
		}
		return err
	}
	// Restores the terminal even if the loop or teardown panics.
	defer host.Close()

	s := newSession(writer, opts.Stdout, opts.FlushInterval)
	loopErr := s.run(ctx, host, host.Done(), opts.Disconnected)

	// Restore the terminal before anything else is printed.
	hostErr := host.Close()
	if loopErr == nil {
		loopErr = host.Err()
	}

	teardownErr := s.teardown(ctx)
	return errors.Join(loopErr, hostErr, teardownErr)
}

type session struct {
	terminal *TerminalRenderer
	text     *TextRenderer
	writer   *NotebookWriter
	interval time.Duration

	flushSlot chan struct{}
	wg        sync.WaitGroup
}

func newSession(writer *NotebookWriter, stdout io.Writer, interval time.Duration) *session {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &session{
		terminal:  NewTerminalRenderer(stdout),
		text:      NewTextRenderer(),
		writer:    writer,
		interval:  interval,
		flushSlot: make(chan struct{}, 1),
	}
}

// run pumps PTY output through both renderers until done or disconnected
// is closed or the source ends. done is checked first on every iteration so
// a dying child wins over pending output.
func (s *session) run(ctx context.Context, src io.Reader, done, disconnected <-chan struct{}) error {
	events := make(chan Event, 16)
	stop := make(chan struct{})
	defer close(stop)

	// readErr is written before events is closed.
	var readErr error
	go func() {
		defer close(events)
		extractor := NewExtractor(src)
		for {
			ev, err := extractor.Next()
			if err != nil {
				readErr = err
				return
			}
			if ev.Kind == EventData {
				ev.Data = bytes.Clone(ev.Data)
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initialized := false
	for {
		select {
		case <-done:
			return nil
		default:
		}

		select {
		case <-done:
			return nil
		case <-disconnected:
			return ErrDisconnected
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if errors.Is(readErr, io.EOF) {
					return nil
				}
				return fmt.Errorf("read pty: %w", readErr)
			}
			// Output before the first prompt is the shell running the init line.
			if !initialized {
				if ev.Kind != EventPromptStart {
					continue
				}
				initialized = true
			}
			if err := s.terminal.Handle(ev); err != nil {
				return fmt.Errorf("write terminal: %w", err)
			}
			s.text.Handle(ev)
		case <-ticker.C:
			s.flushAsync(ctx)
		}
	}
}

// flushAsync starts an upload unless one is still in flight.
func (s *session) flushAsync(ctx context.Context) {
	s.writer.Append(s.text.Take())
	if !s.writer.Pending() {
		return
	}

	select {
	case s.flushSlot <- struct{}{}:
	default:
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.flushSlot }()
		if err := s.writer.Flush(ctx); err != nil {
			log.Warn("Failed to upload transcript, will retry", "err", err)
		}
	}()
}

// teardown uploads what is left and closes the heading. It runs on a fresh
// context so an interrupted session still gets closed.
func (s *session) teardown(ctx context.Context) error {
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	s.text.Flush()
	s.writer.Append(s.text.Take())

	flushErr := s.writer.Flush(ctx)
	if flushErr != nil {
		log.Warn("Failed to upload the end of the transcript", "err", flushErr)
	}
	return errors.Join(flushErr, s.writer.Close(ctx))
}
