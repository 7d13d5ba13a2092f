//go:build linux || darwin || freebsd || netbsd || openbsd

package shell

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// RawGuard owns the terminal's raw mode. Restore puts the terminal back into
// the state it had before EnterRawMode, and does nothing if the terminal was
// already raw.
type RawGuard struct {
	fd     int
	state  *term.State
	wasRaw bool
	once   sync.Once
}

// EnterRawMode switches fd to raw mode so control keys reach the child.
func EnterRawMode(fd int) (*RawGuard, error) {
	raw, err := isRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("read terminal mode: %w", err)
	}
	if raw {
		return &RawGuard{fd: fd, wasRaw: true}, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set terminal raw mode: %w", err)
	}
	return &RawGuard{fd: fd, state: state}, nil
}

// Restore is idempotent and safe on a nil guard.
func (g *RawGuard) Restore() error {
	if g == nil || g.wasRaw {
		return nil
	}
	var err error
	g.once.Do(func() {
		err = term.Restore(g.fd, g.state)
	})
	return err
}

// isRaw reports whether canonical mode and echo are both off.
func isRaw(fd int) (bool, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return false, err
	}
	return termios.Lflag&(unix.ICANON|unix.ECHO) == 0, nil
}
