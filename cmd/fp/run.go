package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fiberplane/fp-sub000/internal/capture"
	"github.com/fiberplane/fp-sub000/internal/config"
	"github.com/fiberplane/fp-sub000/internal/ui"
)

// stdout receives the command's output and the report. Overridden in tests.
var stdout io.Writer = os.Stdout

// runCmd runs one command and records its output.
var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command and add its output to a notebook",
	Long: `Run a command and add its output to a notebook.

Output containing structured logs (JSON lines, nginx access logs, GitHub
Actions step logs) becomes a log cell. Any other output becomes a code cell
headed by the time, directory and command.

Pressing Ctrl-C stops the command; what it printed until then is still
recorded.

OUTPUT:
  command  Show the command's output, then a link to the new cell (default)
  table    Show the new cell as a table
  json     Show the new cell as JSON

EXAMPLES:
  fp run -- kubectl logs deploy/api --since 10m
  fp run --notebook-id 6d8mZyVhT3yLqXb5rHn2aQ -- df -h
  fp run --output json -- ./healthcheck.sh`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return newUsageError("missing command to run")
		}
		return nil
	},
	RunE: runCapture,
}

func init() {
	runCmd.Flags().String("notebook-id", "", "Notebook to add the output to (env NOTEBOOK_ID)")
	runCmd.Flags().String("workspace-id", "", "Workspace offered by the notebook picker")
	runCmd.Flags().StringP("output", "o", string(capture.OutputCommand), "Output format: command, table or json")
	runCmd.Flags().Bool("copy-url", false, "Copy the link to the new cell to the clipboard")
}

func runCapture(cmd *cobra.Command, args []string) error {
	outputFlag, _ := cmd.Flags().GetString("output")
	mode, err := capture.ParseOutputMode(outputFlag)
	if err != nil {
		return usageError{err: err}
	}

	if mode == capture.OutputJSON {
		ui.Output = os.Stderr
	}

	ctx := cmd.Context()
	guard := newInterruptGuard(ctx)

	client, err := newAPIClient(cmd)
	if err != nil {
		guard.Stop()
		return err
	}

	flagID, _ := cmd.Flags().GetString("notebook-id")
	workspaceID, _ := cmd.Flags().GetString("workspace-id")
	notebookID, err := resolveNotebookID(guard.Context(), client, flagID, workspaceID)
	guard.Stop()
	if err != nil {
		return guard.Check(err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	runner := &capture.Runner{Stdin: os.Stdin, Interrupt: interrupt}
	if mode.Tee() {
		runner.Stdout = stdout
		runner.Stderr = os.Stderr
	}

	result, err := runner.Run(ctx, args)
	if err != nil {
		return err
	}
	log.Debug("Command finished", "exit_code", result.ExitCode, "interrupted", result.Interrupted, "bytes", len(result.Output))

	cell, err := capture.NewCellWriter(client, notebookID, args).Write(ctx, result.Output)
	if err != nil {
		return err
	}
	if cell == nil {
		ui.PrintWarning("The command printed nothing; no cell was created")
		return nil
	}

	cellURL := config.NotebookURL(client.BaseURL(), notebookID, cell.ID)
	if err := capture.Report(stdout, mode, *cell, cellURL); err != nil {
		return fmt.Errorf("print result: %w", err)
	}

	copyURL, _ := cmd.Flags().GetBool("copy-url")
	if copyURL {
		if err := clipboard.WriteAll(cellURL); err != nil {
			ui.PrintWarning("Failed to copy link: %v", err)
		} else if mode == capture.OutputCommand {
			ui.PrintDim("Link copied to clipboard")
		}
	}
	return nil
}
