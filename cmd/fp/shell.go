package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fiberplane/fp-sub000/internal/config"
	"github.com/fiberplane/fp-sub000/internal/realtime"
	"github.com/fiberplane/fp-sub000/internal/shell"
	"github.com/fiberplane/fp-sub000/internal/ui"
)

// shellCmd records an interactive shell session.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Record a shell session into a notebook",
	Long: `Start a recorded copy of your current shell.

Everything printed between prompts is streamed into a read-only code cell
of the notebook, under a heading with your name and the session's start and
end times. Exit the shell to stop recording.

The notebook is taken from --notebook-id, then NOTEBOOK_ID. When neither is
set an interactive picker is shown.

EXAMPLES:
  fp shell
  fp shell --notebook-id 6d8mZyVhT3yLqXb5rHn2aQ`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().String("notebook-id", "", "Notebook to record into (env NOTEBOOK_ID)")
}

func runShell(cmd *cobra.Command, args []string) error {
	if err := shell.CheckNotNested(); err != nil {
		return err
	}

	ctx := cmd.Context()
	guard := newInterruptGuard(ctx)
	defer guard.Stop()
	setupCtx := guard.Context()

	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	flagID, _ := cmd.Flags().GetString("notebook-id")
	notebookID, err := resolveNotebookID(setupCtx, client, flagID, "")
	if err != nil {
		return guard.Check(err)
	}

	launcher, err := shell.NewLauncher(notebookID)
	if err != nil {
		return err
	}

	nb, err := client.GetNotebook(setupCtx, notebookID)
	if err != nil {
		return guard.Check(fmt.Errorf("fetch notebook: %w", err))
	}

	wsURL, err := config.WebSocketURL(client.BaseURL())
	if err != nil {
		return err
	}
	rt, err := realtime.Dial(setupCtx, realtime.Options{
		URL:      wsURL,
		Token:    client.Token(),
		Notebook: nb,
	})
	if err != nil {
		return guard.Check(err)
	}
	defer rt.Close()

	link := config.NotebookURL(client.BaseURL(), notebookID, "")
	ui.PrintInfo("Recording %s session into %s", launcher.Type, nb.Title)
	ui.PrintLink("Notebook", link)
	ui.PrintDim("Exit the shell to stop recording.")
	ui.Println()

	restoreLog := withLogOutput(io.Discard)
	err = shell.Run(ctx, shell.Options{
		Launcher:     launcher,
		Profiles:     client,
		Editor:       rt,
		Disconnected: rt.Done(),
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Terminal:     os.Stdin,
		Setup:        setupCtx,
	})
	restoreLog()
	err = guard.Check(err)

	ui.Println()
	if err != nil {
		if errors.Is(err, shell.ErrDisconnected) {
			if rtErr := rt.Err(); rtErr != nil {
				return fmt.Errorf("%w: %w", err, rtErr)
			}
		}
		return err
	}

	ui.PrintSuccess("Recording ended")
	ui.PrintLink("Notebook", link)
	return nil
}
