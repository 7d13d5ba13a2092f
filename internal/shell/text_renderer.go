package shell

import (
	"bytes"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// DEC private modes that switch to the alternate screen.
var alternateScreenModes = map[int]bool{
	47:                                  true,
	ansi.ModeAltScreen.Mode():           true,
	ansi.ModeAltScreenSaveCursor.Mode(): true,
}

// TextRenderer turns terminal output into plain text. Escape sequences are
// dropped, backspaces are applied to the current line and everything printed
// while a program holds the alternate screen is discarded.
//
// Completed lines are appended to an internal buffer which the caller drains
// with Take.
type TextRenderer struct {
	parser    *ansi.Parser
	alternate bool
	line      []byte
	caret     int
	out       bytes.Buffer
}

// NewTextRenderer returns an empty renderer.
func NewTextRenderer() *TextRenderer {
	r := &TextRenderer{parser: ansi.NewParser()}
	r.parser.SetHandler(ansi.Handler{
		Print:     r.print,
		Execute:   r.execute,
		HandleCsi: r.csi,
	})
	return r
}

// Handle feeds data events to the parser. Other events are ignored.
func (r *TextRenderer) Handle(ev Event) {
	if ev.Kind == EventData {
		r.Write(ev.Data)
	}
}

// Write parses p. Sequences split across calls are carried over.
func (r *TextRenderer) Write(p []byte) (int, error) {
	for _, b := range p {
		r.parser.Advance(b)
	}
	return len(p), nil
}

// Flush moves the unfinished current line to the output buffer.
func (r *TextRenderer) Flush() {
	r.out.Write(r.line)
	r.line = r.line[:0]
	r.caret = 0
}

// Len returns the number of buffered output bytes.
func (r *TextRenderer) Len() int {
	return r.out.Len()
}

// Take returns and clears the buffered output.
func (r *TextRenderer) Take() []byte {
	if r.out.Len() == 0 {
		return nil
	}
	out := bytes.Clone(r.out.Bytes())
	r.out.Reset()
	return out
}

func (r *TextRenderer) print(c rune) {
	if r.alternate {
		return
	}
	var enc [utf8.UTFMax]byte
	n := utf8.EncodeRune(enc[:], c)
	r.insert(enc[:n])
}

func (r *TextRenderer) insert(p []byte) {
	r.line = append(r.line[:r.caret], append(p, r.line[r.caret:]...)...)
	r.caret += len(p)
}

func (r *TextRenderer) execute(b byte) {
	if r.alternate {
		return
	}
	switch b {
	case ansi.HT:
		r.insert([]byte{'\t'})
	case ansi.LF:
		r.insert([]byte{'\n'})
		r.Flush()
	case ansi.BS:
		if r.caret == 0 {
			return
		}
		_, size := utf8.DecodeLastRune(r.line[:r.caret])
		r.line = append(r.line[:r.caret-size], r.line[r.caret:]...)
		r.caret -= size
	}
}

func (r *TextRenderer) csi(cmd ansi.Cmd, params ansi.Params) {
	if cmd.Prefix() != '?' || (cmd.Final() != 'h' && cmd.Final() != 'l') {
		return
	}
	params.ForEach(-1, func(_, mode int, _ bool) {
		if alternateScreenModes[mode] {
			r.alternate = cmd.Final() == 'h'
		}
	})
}
