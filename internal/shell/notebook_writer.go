package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fiberplane/fp-sub000/internal/api"
	"github.com/fiberplane/fp-sub000/internal/notebook"
)

// Editor is the part of the realtime client the writer needs.
type Editor interface {
	AddCells(ctx context.Context, cells ...notebook.Cell) ([]notebook.Cell, error)
	AppendText(ctx context.Context, cellID, text string, formatting notebook.Formatting) error
}

// ProfileSource returns the authenticated user.
type ProfileSource interface {
	GetProfile(ctx context.Context) (*api.Profile, error)
}

// NotebookWriter streams a session transcript into a read-only code cell
// under a heading naming the user and the session's start and end.
type NotebookWriter struct {
	editor    Editor
	headingID string
	codeID    string
	now       func() time.Time

	// flushMu serialises appends so the transcript keeps its order.
	flushMu sync.Mutex

	mu  sync.Mutex
	buf []byte
}

// NewNotebookWriter fetches the user's profile and appends the heading and
// the empty code cell the transcript goes into.
//
// Parameters:
//   - ctx: Context for the setup calls
//   - profiles: Source of the user's name and id
//   - editor: Realtime editor subscribed to the target notebook
//
// Returns:
//   - *NotebookWriter: A writer for the new code cell
//   - error: Any error from the setup calls
func NewNotebookWriter(ctx context.Context, profiles ProfileSource, editor Editor) (*NotebookWriter, error) {
	return newNotebookWriter(ctx, profiles, editor, time.Now)
}

func newNotebookWriter(ctx context.Context, profiles ProfileSource, editor Editor, now func() time.Time) (*NotebookWriter, error) {
	user, err := profiles.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	started := now().UTC()
	ts := formatTimestamp(started)
	content := fmt.Sprintf("@%s's shell session\n🟢 Started at:\t%s", user.Name, ts)
	heading := notebook.NewHeadingCell("", notebook.HeadingH3, content, notebook.Formatting{
		notebook.Mention(0, user.Name, user.ID),
		notebook.Timestamp(uint32(utf8.RuneCountInString(content)-utf8.RuneCountInString(ts)), started),
	})
	heading.ReadOnly = true

	headingCells, err := editor.AddCells(ctx, heading)
	if err != nil {
		return nil, fmt.Errorf("add heading cell: %w", err)
	}

	code := notebook.NewCodeCell("", "")
	code.ReadOnly = true
	codeCells, err := editor.AddCells(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("add code cell: %w", err)
	}

	return &NotebookWriter{
		editor:    editor,
		headingID: headingCells[0].ID,
		codeID:    codeCells[0].ID,
		now:       now,
	}, nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// HeadingCellID returns the id of the session heading.
func (w *NotebookWriter) HeadingCellID() string {
	return w.headingID
}

// CodeCellID returns the id of the transcript cell.
func (w *NotebookWriter) CodeCellID() string {
	return w.codeID
}

// Append buffers transcript bytes for the next Flush.
func (w *NotebookWriter) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	w.mu.Unlock()
}

// Pending reports whether there are buffered bytes.
func (w *NotebookWriter) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf) > 0
}

// Flush appends the buffered text to the transcript cell. On failure the
// text is put back in front of anything appended meanwhile.
func (w *NotebookWriter) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	data := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	if err := w.editor.AppendText(ctx, w.codeID, text, nil); err != nil {
		w.mu.Lock()
		w.buf = append(data, w.buf...)
		w.mu.Unlock()
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Close appends the end line to the heading.
func (w *NotebookWriter) Close(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	ended := w.now().UTC()
	ts := formatTimestamp(ended)
	content := "\n🔴 Ended at: \t" + ts
	formatting := notebook.Formatting{
		notebook.Timestamp(uint32(utf8.RuneCountInString(content)-utf8.RuneCountInString(ts)), ended),
	}
	if err := w.editor.AppendText(ctx, w.headingID, content, formatting); err != nil {
		return fmt.Errorf("close heading: %w", err)
	}
	return nil
}
