package capture

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/fiberplane/fp-sub000/internal/logs"
	"github.com/fiberplane/fp-sub000/internal/notebook"
)

// CellAppender appends cells to the end of a notebook.
type CellAppender interface {
	AppendCells(ctx context.Context, notebookID string, cells ...notebook.Cell) ([]notebook.Cell, error)
}

// CellWriter records a command's output in a notebook.
type CellWriter struct {
	appender   CellAppender
	notebookID string
	command    []string
	dir        string
	now        func() time.Time
}

// NewCellWriter creates a writer for the output of command.
//
// Parameters:
//   - appender: The notebook API
//   - notebookID: The notebook to write to
//   - command: The program and its arguments, shown in the prompt line
//
// Returns:
//   - *CellWriter: The writer
func NewCellWriter(appender CellAppender, notebookID string, command []string) *CellWriter {
	dir, err := os.Getwd()
	if err != nil {
		log.Debug("Failed to get working directory", "err", err)
	}
	return &CellWriter{
		appender:   appender,
		notebookID: notebookID,
		command:    command,
		dir:        dir,
		now:        time.Now,
	}
}

// PromptLine renders the time, directory and command the way a shell prompt
// would have shown them.
func (w *CellWriter) PromptLine() string {
	return fmt.Sprintf("%s\n%s ❯ %s", w.now().UTC().Format(time.RFC3339), w.dir, strings.Join(w.command, " "))
}

// Write stores output in the notebook. Output containing recognized log
// lines becomes a text cell with the prompt line followed by a log cell.
// Anything else becomes a code cell starting with the prompt line. Empty
// output writes nothing and returns nil.
//
// Parameters:
//   - ctx: Context for the request
//   - output: Everything the command printed
//
// Returns:
//   - *notebook.Cell: The cell holding the output, as stored by the server
//   - error: If the cells can't be created
func (w *CellWriter) Write(ctx context.Context, output []byte) (*notebook.Cell, error) {
	if len(output) == 0 {
		return nil, nil
	}

	var cells []notebook.Cell
	if utf8.Valid(output) && logs.ContainsLogs(string(output)) {
		log.Debug("Detected logs")
		logCell, err := notebook.NewLogCell("", logs.Parse(string(output)))
		if err != nil {
			return nil, err
		}
		cells = []notebook.Cell{notebook.NewTextCell("", w.PromptLine()), logCell}
	} else {
		log.Debug("No logs detected, using a code cell")
		text := strings.ToValidUTF8(string(output), "\uFFFD")
		code := notebook.NewCodeCell("", w.PromptLine()+"\n"+text)
		cells = []notebook.Cell{code}
	}

	created, err := w.appender.AppendCells(ctx, w.notebookID, cells...)
	if err != nil {
		return nil, fmt.Errorf("error appending cell to notebook: %w", err)
	}
	cell := created[len(created)-1]
	return &cell, nil
}
