//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package shell

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

// ErrUnsupportedPlatform is returned where no native PTY is available.
var ErrUnsupportedPlatform = errors.New("shell recording requires a unix pseudo-terminal")

// HostOptions configures StartHost.
type HostOptions struct {
	Cmd      *exec.Cmd
	Init     []byte
	Stdin    io.Reader
	Terminal *os.File
}

// Host is unavailable on this platform.
type Host struct{}

// StartHost always fails on this platform.
func StartHost(HostOptions) (*Host, error) {
	return nil, ErrUnsupportedPlatform
}

func (h *Host) Read([]byte) (int, error) { return 0, io.EOF }
func (h *Host) Done() <-chan struct{}    { return nil }
func (h *Host) Err() error               { return ErrUnsupportedPlatform }
func (h *Host) ExitCode() int            { return -1 }
func (h *Host) Close() error             { return nil }
