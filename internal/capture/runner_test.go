//go:build !windows

package capture

import (
	"bytes"
	"context"
	"os"
	"sync"
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

// signalWriter closes started on its first write.
type signalWriter struct {
	once    sync.Once
	started chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.started) })
	return len(p), nil
}

func TestRunner_CapturesBothStreams(t *testing.T) {
	requireSh(t)

	var stdout, stderr bytes.Buffer
	r := &Runner{Stdout: &stdout, Stderr: &stderr}

	result, err := r.Run(context.Background(), []string{"/bin/sh", "-c", "echo out; echo err >&2; exit 3"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Interrupted)
	assert.Contains(t, string(result.Output), "out\n")
	assert.Contains(t, string(result.Output), "err\n")
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestRunner_WithoutTee(t *testing.T) {
	requireSh(t)

	result, err := (&Runner{}).Run(context.Background(), []string{"/bin/sh", "-c", "printf hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", string(result.Output))
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunner_CommandNotFound(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), []string{"definitely-not-a-command-fp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found: definitely-not-a-command-fp")
}

func TestRunner_NoCommand(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunner_InterruptKeepsOutput(t *testing.T) {
	requireSh(t)

	interrupt := make(chan os.Signal, 1)
	started := &signalWriter{started: make(chan struct{})}
	r := &Runner{Stdout: started, Interrupt: interrupt, GracePeriod: 200 * time.Millisecond}

	go func() {
		<-started.started
		interrupt <- os.Interrupt
	}()

	begin := time.Now()
	result, err := r.Run(context.Background(), []string{"/bin/sh", "-c", "echo started; exec sleep 30"})
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Equal(t, "started\n", string(result.Output))
	assert.Less(t, time.Since(begin), 10*time.Second)
}

func TestRunner_ContextCancelInterrupts(t *testing.T) {
	requireSh(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := &signalWriter{started: make(chan struct{})}
	go func() {
		<-started.started
		cancel()
	}()

	result, err := (&Runner{Stdout: started, GracePeriod: 200 * time.Millisecond}).Run(ctx, []string{"/bin/sh", "-c", "echo started; exec sleep 30"})
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Equal(t, "started\n", string(result.Output))
}
