package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fiberplane/fp-sub000/internal/api"
	"github.com/fiberplane/fp-sub000/internal/auth"
	"github.com/fiberplane/fp-sub000/internal/config"
	"github.com/fiberplane/fp-sub000/internal/shell"
	"github.com/fiberplane/fp-sub000/internal/tui"
)

// Overridden in tests.
var (
	newProfileManager = auth.NewManager
	isInteractive     = tui.IsInteractive
	pickNotebook      = tui.PickNotebook
)

// globalFlags reads the connection flags shared by every command.
type globalFlags struct {
	profile string
	token   string
	baseURL string
}

func readGlobalFlags(cmd *cobra.Command) globalFlags {
	var g globalFlags
	g.profile, _ = cmd.Flags().GetString("profile")
	g.token, _ = cmd.Flags().GetString("token")
	g.baseURL, _ = cmd.Flags().GetString("base-url")
	return g
}

// newAPIClient resolves the active profile and creates an API client for it.
//
// Parameters:
//   - cmd: The running command, for the global flags
//
// Returns:
//   - *api.Client: A client with the resolved token and base URL
//   - error: auth.ErrNotAuthenticated when no token is configured
func newAPIClient(cmd *cobra.Command) (*api.Client, error) {
	flags := readGlobalFlags(cmd)
	name := auth.ProfileName(flags.profile)

	profile, err := newProfileManager().Resolve(name, flags.token)
	if err != nil {
		return nil, err
	}

	baseURL := config.ResolveBaseURL(flags.baseURL, profile.BaseURL)
	log.Debug("Resolved profile", "profile", name, "base_url", baseURL)
	return api.NewClientWithBaseURL(profile.Token, baseURL), nil
}

// resolveNotebookID picks the notebook to write to: the flag, then
// NOTEBOOK_ID, then the interactive picker.
//
// Parameters:
//   - ctx: Context for the picker
//   - lister: Lists notebooks for the picker
//   - flagValue: The value of --notebook-id
//   - workspaceID: Narrows the picker to one workspace (may be empty)
//
// Returns:
//   - string: The notebook id
//   - error: A usage error without a terminal, or errInterrupted when the
//     picker is closed
func resolveNotebookID(ctx context.Context, lister tui.NotebookLister, flagValue, workspaceID string) (string, error) {
	if id := strings.TrimSpace(flagValue); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(os.Getenv(shell.NotebookIDEnv)); id != "" {
		log.Debug("Using notebook from environment", "notebook_id", id)
		return id, nil
	}
	if !isInteractive() {
		return "", newUsageError("--notebook-id is required when not running in a terminal")
	}

	nb, err := pickNotebook(ctx, lister, workspaceID)
	if err != nil {
		if errors.Is(err, tui.ErrNoSelection) {
			return "", errInterrupted
		}
		return "", err
	}
	return nb.ID, nil
}

// interruptGuard cancels a setup context on the first Ctrl-C.
type interruptGuard struct {
	ctx    context.Context
	cancel context.CancelFunc
	sig    chan os.Signal
	fired  atomic.Bool
}

// newInterruptGuard starts watching for Ctrl-C. Stop must be called.
func newInterruptGuard(parent context.Context) *interruptGuard {
	ctx, cancel := context.WithCancel(parent)
	g := &interruptGuard{ctx: ctx, cancel: cancel, sig: make(chan os.Signal, 1)}
	signal.Notify(g.sig, os.Interrupt)

	go func() {
		select {
		case <-g.sig:
			g.fired.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()
	return g
}

// Context returns the setup context.
func (g *interruptGuard) Context() context.Context {
	return g.ctx
}

// Check replaces err with errInterrupted once Ctrl-C was pressed.
func (g *interruptGuard) Check(err error) error {
	if err != nil && g.fired.Load() {
		return errInterrupted
	}
	return err
}

// Stop ends the watch. Later interrupts are not handled by the guard.
func (g *interruptGuard) Stop() {
	signal.Stop(g.sig)
	g.cancel()
}
