package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fiberplane/fp-sub000/internal/api"
)

// ErrNoSelection is returned when the picker is closed without choosing a notebook.
var ErrNoSelection = errors.New("no notebook selected")

// listTimeout bounds the notebook list request.
const listTimeout = 10 * time.Second

// visibleRows is how many notebooks are shown at once.
const visibleRows = 12

// NotebookLister lists the notebooks the picker offers.
type NotebookLister interface {
	ListNotebooks(ctx context.Context, workspaceID string) ([]api.NotebookSummary, error)
}

// notebookListMsg carries the fetched notebooks.
type notebookListMsg struct {
	Notebooks []api.NotebookSummary
	Err       error
}

// fetchNotebooksCmd fetches the notebooks of a workspace.
//
// Parameters:
//   - ctx: parent context of the request
//   - lister: the API client
//   - workspaceID: the workspace, or "" for the default one
//
// Returns:
//   - tea.Cmd: command producing notebookListMsg
func fetchNotebooksCmd(ctx context.Context, lister NotebookLister, workspaceID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, listTimeout)
		defer cancel()
		notebooks, err := lister.ListNotebooks(ctx, workspaceID)
		return notebookListMsg{Notebooks: notebooks, Err: err}
	}
}

// pickerModel is the Bubble Tea model of the notebook picker.
type pickerModel struct {
	ctx         context.Context
	lister      NotebookLister
	workspaceID string

	spinner spinner.Model
	filter  textinput.Model
	width   int

	loading   bool
	err       error
	notebooks []api.NotebookSummary
	filtered  []api.NotebookSummary
	cursor    int

	selected *api.NotebookSummary
}

func newPickerModel(ctx context.Context, lister NotebookLister, workspaceID string) pickerModel {
	filter := textinput.New()
	filter.Prompt = filterPromptStyle.Render("/ ")
	filter.Placeholder = "type to filter"
	filter.Focus()

	return pickerModel{
		ctx:         ctx,
		lister:      lister,
		workspaceID: workspaceID,
		spinner:     newSpinner(),
		filter:      filter,
		loading:     true,
	}
}

// Init starts loading notebooks.
func (m pickerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, fetchNotebooksCmd(m.ctx, m.lister, m.workspaceID))
}

// Update handles list results and key presses.
func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case notebookListMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, tea.Quit
		}
		m.notebooks = msg.Notebooks
		m.applyFilter()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

// handleKey processes key events.
//
// Parameters:
//   - msg: the key message
//
// Returns:
//   - tea.Model: updated model
//   - tea.Cmd: next command
func (m pickerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor < len(m.filtered) {
			chosen := m.filtered[m.cursor]
			m.selected = &chosen
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter narrows the list to notebooks matching the filter text and
// keeps the cursor in range.
func (m *pickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	var filtered []api.NotebookSummary
	for _, nb := range m.notebooks {
		if query == "" || matches(nb, query) {
			filtered = append(filtered, nb)
		}
	}
	m.filtered = filtered
	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
}

// matches reports whether a notebook's title, id or labels contain query.
func matches(nb api.NotebookSummary, query string) bool {
	if strings.Contains(strings.ToLower(nb.Title), query) || strings.Contains(strings.ToLower(nb.ID), query) {
		return true
	}
	for _, label := range nb.Labels {
		text := label.Key
		if label.Value != "" {
			text += "=" + label.Value
		}
		if strings.Contains(strings.ToLower(text), query) {
			return true
		}
	}
	return false
}

// View renders the picker.
func (m pickerModel) View() string {
	var b strings.Builder
	w := m.width
	if w == 0 {
		w = 80
	}
	innerW := min(w-4, 70)

	b.WriteString("  " + titleStyle.Render("Select a notebook") + "\n")
	b.WriteString("  " + separator(innerW) + "\n")

	if m.loading {
		b.WriteString("  " + m.spinner.View() + " Loading notebooks...\n")
		return b.String()
	}
	if m.err != nil {
		b.WriteString("  " + errorStyle.Render("Failed to load notebooks: "+m.err.Error()) + "\n")
		return b.String()
	}

	b.WriteString("  " + m.filter.View() + "\n\n")

	if len(m.filtered) == 0 {
		b.WriteString("  " + dimStyle.Render("No notebooks found") + "\n")
	} else {
		start, end := scrollWindow(m.cursor, len(m.filtered), visibleRows)
		for i := start; i < end; i++ {
			nb := m.filtered[i]
			cursor := "  "
			title := fmt.Sprintf("%-40s", truncate(nb.Title, 40))
			if i == m.cursor {
				cursor = selectedStyle.Render("▸ ")
				title = selectedStyle.Render(title)
			} else {
				title = normalStyle.Render(title)
			}
			updated := ""
			if !nb.UpdatedAt.IsZero() {
				updated = dimStyle.Render(nb.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			b.WriteString(fmt.Sprintf("  %s%s  %s\n", cursor, title, updated))
		}
		if len(m.filtered) > visibleRows {
			b.WriteString("  " + dimStyle.Render(fmt.Sprintf("%d of %d", m.cursor+1, len(m.filtered))) + "\n")
		}
	}

	b.WriteString("\n  " + separator(innerW) + "\n")
	keys := []string{
		helpKeyRender("↑/↓", "move"),
		helpKeyRender("enter", "select"),
		helpKeyRender("esc", "cancel"),
	}
	b.WriteString("  " + strings.Join(keys, "  ") + "\n")
	return b.String()
}

// PickNotebook shows the notebook picker on the terminal. It renders to
// stderr so stdout stays free for command output.
//
// Parameters:
//   - ctx: cancels the picker
//   - lister: the API client
//   - workspaceID: the workspace to list, or "" for the default one
//
// Returns:
//   - api.NotebookSummary: the chosen notebook
//   - error: ErrNoSelection if the picker was closed, or the list error
func PickNotebook(ctx context.Context, lister NotebookLister, workspaceID string) (api.NotebookSummary, error) {
	p := tea.NewProgram(
		newPickerModel(ctx, lister, workspaceID),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
	)
	final, err := p.Run()
	if err != nil {
		return api.NotebookSummary{}, fmt.Errorf("notebook picker: %w", err)
	}

	m := final.(pickerModel)
	if m.err != nil {
		return api.NotebookSummary{}, fmt.Errorf("list notebooks: %w", m.err)
	}
	if m.selected == nil {
		return api.NotebookSummary{}, ErrNoSelection
	}
	return *m.selected, nil
}
