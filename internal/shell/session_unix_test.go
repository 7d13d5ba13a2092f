//go:build linux || darwin || freebsd || netbsd || openbsd

package shell

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingTerminal panics on the first write and remembers whether the
// terminal was raw at that moment.
type failingTerminal struct {
	tty        *os.File
	rawAtWrite bool
}

func (w *failingTerminal) Write([]byte) (int, error) {
	w.rawAtWrite, _ = isRaw(int(w.tty.Fd()))
	panic("terminal write failed")
}

func TestRun_RestoresTerminalOnPanic(t *testing.T) {
	requireSh(t)

	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	out := &failingTerminal{tty: tty}
	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		_ = Run(ctx, Options{
			Launcher:      &Launcher{Type: Sh, Path: "/bin/sh", NotebookID: "nb1", Dir: t.TempDir()},
			Profiles:      fakeProfiles{},
			Editor:        &fakeEditor{},
			Stdout:        out,
			Terminal:      tty,
			FlushInterval: time.Hour,
		})
	}()

	require.Equal(t, "terminal write failed", recovered)
	assert.True(t, out.rawAtWrite, "terminal should be raw while recording")

	raw, err := isRaw(int(tty.Fd()))
	require.NoError(t, err)
	assert.False(t, raw, "terminal still raw after panic")
}
