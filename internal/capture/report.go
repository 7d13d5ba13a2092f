package capture

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fiberplane/fp-sub000/internal/notebook"
	"github.com/fiberplane/fp-sub000/internal/ui"
)

// OutputMode selects what run prints.
type OutputMode string

const (
	// OutputCommand shows the command's output live and a link at the end.
	OutputCommand OutputMode = "command"

	// OutputTable prints the created cell as key/value rows.
	OutputTable OutputMode = "table"

	// OutputJSON prints the created cell as JSON.
	OutputJSON OutputMode = "json"
)

// ParseOutputMode validates an --output value.
func ParseOutputMode(s string) (OutputMode, error) {
	switch mode := OutputMode(strings.ToLower(s)); mode {
	case OutputCommand, OutputTable, OutputJSON:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid output %q: expected command, table or json", s)
	}
}

// Tee reports whether the command's output is shown while it runs.
func (m OutputMode) Tee() bool {
	return m == OutputCommand
}

// Report prints the created cell.
//
// Parameters:
//   - w: Where to print
//   - mode: The output mode
//   - cell: The created cell
//   - cellURL: Link to the cell in the notebook
//
// Returns:
//   - error: If the cell can't be encoded or written
func Report(w io.Writer, mode OutputMode, cell notebook.Cell, cellURL string) error {
	switch mode {
	case OutputJSON:
		data, err := json.MarshalIndent(cell, "", "  ")
		if err != nil {
			return fmt.Errorf("encode cell: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case OutputTable:
		table := ui.NewTable("KEY", "VALUE")
		table.SetMaxWidth(1, 80)
		table.AddRow("ID", cell.ID)
		table.AddRow("Type", string(cell.Type))
		if cell.Type == notebook.CellTypeLog {
			events, err := cell.LogEvents()
			if err != nil {
				return err
			}
			table.AddRow("Events", strconv.Itoa(len(events)))
		} else {
			table.AddRow("Content", firstLine(cell.Content))
		}
		table.AddRow("URL", cellURL)
		table.RenderTo(w)
		return nil

	default:
		_, err := fmt.Fprintf(w, "\n   --> %s %s\n", ui.DimStyle.Render("Created cell:"), ui.LinkStyle.Render(cellURL))
		return err
	}
}

func firstLine(s string) string {
	line, rest, found := strings.Cut(s, "\n")
	if found && rest != "" {
		return line + " ..."
	}
	return line
}
