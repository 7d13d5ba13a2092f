package shell

import "io"

// RecordingBadge replaces the prompt markers on the user's terminal. Its
// visible width equals the characters taken by both markers, so shells that
// reposition the cursor relative to the prompt stay aligned.
const RecordingBadge = "\x1b[31mREC\x1b[0m "

type flusher interface {
	Flush() error
}

// TerminalRenderer writes extractor events to the user's terminal.
type TerminalRenderer struct {
	w io.Writer
}

// NewTerminalRenderer returns a renderer writing to w.
func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w}
}

// Handle writes data verbatim and a badge for every prompt start.
func (r *TerminalRenderer) Handle(ev Event) error {
	switch ev.Kind {
	case EventData:
		if _, err := r.w.Write(ev.Data); err != nil {
			return err
		}
		if f, ok := r.w.(flusher); ok {
			return f.Flush()
		}
	case EventPromptStart:
		_, err := io.WriteString(r.w, RecordingBadge)
		return err
	}
	return nil
}
