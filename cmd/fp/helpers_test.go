package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplane/fp-sub000/internal/api"
	"github.com/fiberplane/fp-sub000/internal/auth"
	"github.com/fiberplane/fp-sub000/internal/notebook"
	"github.com/fiberplane/fp-sub000/internal/shell"
	"github.com/fiberplane/fp-sub000/internal/tui"
)

// isolate points profiles at a temp dir and clears the environment the CLI reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(auth.TokenEnv, "")
	t.Setenv(auth.ProfileEnv, "")
	t.Setenv("FP_BASE_URL", "")
	t.Setenv(shell.NotebookIDEnv, "")

	prev := newProfileManager
	newProfileManager = func() *auth.Manager { return auth.NewManagerWithDir(dir) }
	t.Cleanup(func() { newProfileManager = prev })
	return dir
}

func stubPicker(t *testing.T, interactive bool, pick func(context.Context, tui.NotebookLister, string) (api.NotebookSummary, error)) {
	t.Helper()
	prevInteractive, prevPick := isInteractive, pickNotebook
	isInteractive = func() bool { return interactive }
	pickNotebook = pick
	t.Cleanup(func() {
		isInteractive = prevInteractive
		pickNotebook = prevPick
	})
}

func TestResolveNotebookID_Precedence(t *testing.T) {
	isolate(t)
	stubPicker(t, true, func(_ context.Context, _ tui.NotebookLister, workspaceID string) (api.NotebookSummary, error) {
		return api.NotebookSummary{ID: "picked-" + workspaceID}, nil
	})

	id, err := resolveNotebookID(context.Background(), nil, " flag-id ", "")
	require.NoError(t, err)
	assert.Equal(t, "flag-id", id)

	t.Setenv(shell.NotebookIDEnv, "env-id")
	id, err = resolveNotebookID(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "env-id", id)

	t.Setenv(shell.NotebookIDEnv, "")
	id, err = resolveNotebookID(context.Background(), nil, "", "ws1")
	require.NoError(t, err)
	assert.Equal(t, "picked-ws1", id)
}

func TestResolveNotebookID_NonInteractive(t *testing.T) {
	isolate(t)
	stubPicker(t, false, func(context.Context, tui.NotebookLister, string) (api.NotebookSummary, error) {
		t.Fatal("picker must not run without a terminal")
		return api.NotebookSummary{}, nil
	})

	_, err := resolveNotebookID(context.Background(), nil, "", "")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestResolveNotebookID_PickerClosed(t *testing.T) {
	isolate(t)
	stubPicker(t, true, func(context.Context, tui.NotebookLister, string) (api.NotebookSummary, error) {
		return api.NotebookSummary{}, tui.ErrNoSelection
	})

	_, err := resolveNotebookID(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, errInterrupted)

	stubPicker(t, true, func(context.Context, tui.NotebookLister, string) (api.NotebookSummary, error) {
		return api.NotebookSummary{}, errors.New("list failed")
	})
	_, err = resolveNotebookID(context.Background(), nil, "", "")
	assert.EqualError(t, err, "list failed")
}

func TestInterruptGuard_CancelsSetup(t *testing.T) {
	guard := newInterruptGuard(context.Background())
	defer guard.Stop()

	assert.NoError(t, guard.Check(nil))
	failed := errors.New("get profile: context canceled")
	assert.Equal(t, failed, guard.Check(failed))

	guard.sig <- os.Interrupt
	select {
	case <-guard.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("setup context not cancelled")
	}

	assert.ErrorIs(t, guard.Check(failed), errInterrupted)
	assert.NoError(t, guard.Check(nil))
	assert.Equal(t, 130, exitCode(guard.Check(failed)))
}

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("profile", "", "")
	cmd.Flags().String("token", "", "")
	cmd.Flags().String("base-url", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestNewAPIClient(t *testing.T) {
	dir := isolate(t)

	_, err := newAPIClient(newFlagCommand(t))
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	require.NoError(t, auth.NewManagerWithDir(dir).SaveProfile(&auth.Profile{
		Name:    "work",
		Token:   "stored",
		BaseURL: "https://fp.example.com/",
	}))

	client, err := newAPIClient(newFlagCommand(t, "--profile", "work"))
	require.NoError(t, err)
	assert.Equal(t, "stored", client.Token())
	assert.Equal(t, "https://fp.example.com", client.BaseURL())

	client, err = newAPIClient(newFlagCommand(t, "--profile", "work", "--token", "flag", "--base-url", "http://localhost:3000"))
	require.NoError(t, err)
	assert.Equal(t, "flag", client.Token())
	assert.Equal(t, "http://localhost:3000", client.BaseURL())
}

func TestRunCommand_WritesCellAndReportsJSON(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	isolate(t)

	var (
		mu   sync.Mutex
		sent []notebook.Cell
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/notebooks/nb1/cells" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var cells []notebook.Cell
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&cells)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		mu.Lock()
		sent = append(sent, cells...)
		mu.Unlock()
		for i := range cells {
			cells[i].ID = "cell-1"
		}
		_ = json.NewEncoder(w).Encode(cells)
	}))
	defer server.Close()

	var out strings.Builder
	prev := stdout
	stdout = &out
	t.Cleanup(func() { stdout = prev })

	rootCmd.SetArgs([]string{
		"run",
		"--token", "secret",
		"--base-url", server.URL,
		"--notebook-id", "nb1",
		"--output", "json",
		"--trace-file", filepath.Join(t.TempDir(), "trace.jsonl"),
		"--", "/bin/sh", "-c", "echo hello",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	require.NoError(t, shutdownTracing(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Equal(t, notebook.CellTypeCode, sent[0].Type)
	assert.True(t, strings.HasSuffix(sent[0].Content, "/bin/sh -c echo hello\nhello\n"))

	var reported notebook.Cell
	require.NoError(t, json.Unmarshal([]byte(out.String()), &reported))
	assert.Equal(t, "cell-1", reported.ID)
}
