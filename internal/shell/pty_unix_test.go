//go:build linux || darwin || freebsd || netbsd || openbsd

package shell

import (
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func TestHost_ReadsChildOutput(t *testing.T) {
	requireSh(t)

	host, err := StartHost(HostOptions{Cmd: exec.Command("/bin/sh", "-c", "printf hi; exit 3")})
	require.NoError(t, err)
	defer host.Close()

	out, err := io.ReadAll(host)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))

	select {
	case <-host.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("host did not finish after the child exited")
	}
	assert.NoError(t, host.Err())
	assert.Equal(t, 3, host.ExitCode())
}

func TestHost_WritesInitLine(t *testing.T) {
	requireSh(t)

	host, err := StartHost(HostOptions{
		Cmd:  exec.Command("/bin/sh", "-c", "read line; printf 'got:%s' \"$line\""),
		Init: []byte("hello\n"),
	})
	require.NoError(t, err)
	defer host.Close()

	out, err := io.ReadAll(host)
	require.NoError(t, err)
	// The terminal echoes the init line before the child prints.
	assert.True(t, strings.HasSuffix(string(out), "got:hello"), "output %q", out)
}

func TestHost_CloseIsIdempotent(t *testing.T) {
	requireSh(t)

	host, err := StartHost(HostOptions{Cmd: exec.Command("/bin/sh", "-c", "sleep 30")})
	require.NoError(t, err)

	assert.Equal(t, -1, host.ExitCode())
	require.NoError(t, host.Close())
	require.NoError(t, host.Close())

	select {
	case <-host.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
}
