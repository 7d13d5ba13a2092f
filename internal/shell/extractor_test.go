package shell

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// fataler is satisfied by *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func collect(t fataler, src io.Reader) []Event {
	t.Helper()

	var events []Event
	extractor := NewExtractor(src)
	for {
		ev, err := extractor.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.Kind == EventData {
			ev.Data = bytes.Clone(ev.Data)
		}
		events = append(events, ev)
	}
}

// merged joins adjacent data events.
func merged(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		if n := len(out); n > 0 && ev.Kind == EventData && out[n-1].Kind == EventData {
			out[n-1].Data = append(out[n-1].Data, ev.Data...)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func data(s string) Event { return Event{Kind: EventData, Data: []byte(s)} }

var (
	promptStart = Event{Kind: EventPromptStart}
	promptEnd   = Event{Kind: EventPromptEnd}
)

func TestExtractor_PromptMarkers(t *testing.T) {
	events := collect(t, bytes.NewReader([]byte("hello\u200b\u200b$ \u200e\u200e")))
	assert.Equal(t, []Event{data("hello"), promptStart, data("$ "), promptEnd}, events)
}

func TestExtractor_MarkerSplitAcrossReads(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{
		[]byte("abc\u200b"),
		[]byte("\u200b$ \u200e\u200e"),
	}}
	events := collect(t, src)
	assert.Equal(t, []Event{data("abc"), promptStart, data("$ "), promptEnd}, events)
}

func TestExtractor_OneByteReads(t *testing.T) {
	input := "some initial output here\u200b\u200bMy fancy prompt>\u200e\u200e"
	events := merged(collect(t, iotest.OneByteReader(bytes.NewReader([]byte(input)))))
	assert.Equal(t, []Event{data("some initial output here"), promptStart, data("My fancy prompt>"), promptEnd}, events)
}

func TestExtractor_PartialMarkerAtEOF(t *testing.T) {
	events := collect(t, bytes.NewReader([]byte("tail\xe2\x80")))
	assert.Equal(t, []Event{data("tail"), data("\xe2\x80")}, events)
}

func TestExtractor_ReadError(t *testing.T) {
	boom := errors.New("boom")
	extractor := NewExtractor(io.MultiReader(bytes.NewReader([]byte("x")), iotest.ErrReader(boom)))

	ev, err := extractor.Next()
	require.NoError(t, err)
	assert.Equal(t, data("x"), Event{Kind: ev.Kind, Data: bytes.Clone(ev.Data)})

	_, err = extractor.Next()
	assert.ErrorIs(t, err, boom)
}

func TestPartialMarkerLen(t *testing.T) {
	assert.Equal(t, 0, partialMarkerLen([]byte("data"), StartMarker))
	for i := 0; i < len(StartMarker); i++ {
		assert.Equal(t, i, partialMarkerLen(StartMarker[:i], StartMarker), "prefix %d", i)
	}
	// An end marker fragment is not a start marker prefix.
	assert.Equal(t, 0, partialMarkerLen([]byte("a\u200e"), StartMarker))
}

// genTerminalOutput draws byte strings rich in marker fragments.
func genTerminalOutput() *rapid.Generator[[]byte] {
	pieces := []string{
		"\u200b\u200b", "\u200e\u200e", "\u200b", "\u200e", "\xe2", "\xe2\x80",
		"$ ", "ls\r\n", "é", "\x1b[31m", "x",
	}
	return rapid.Custom(func(t *rapid.T) []byte {
		parts := rapid.SliceOfN(rapid.SampledFrom(pieces), 0, 30).Draw(t, "parts")
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	})
}

func TestExtractor_PreservesBytes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := genTerminalOutput().Draw(t, "input")

		var rebuilt []byte
		for _, ev := range collect(t, bytes.NewReader(input)) {
			switch ev.Kind {
			case EventData:
				if bytes.Contains(ev.Data, StartMarker) || bytes.Contains(ev.Data, EndMarker) {
					t.Fatalf("data event contains a marker: %q", ev.Data)
				}
				rebuilt = append(rebuilt, ev.Data...)
			case EventPromptStart:
				rebuilt = append(rebuilt, StartMarker...)
			case EventPromptEnd:
				rebuilt = append(rebuilt, EndMarker...)
			}
		}
		if !bytes.Equal(input, rebuilt) {
			t.Fatalf("rebuilt %q from %q", rebuilt, input)
		}
	})
}

func TestExtractor_SplitReadsMatchWholeInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := genTerminalOutput().Draw(t, "input")
		split := rapid.IntRange(0, len(input)).Draw(t, "split")

		whole := merged(collect(t, bytes.NewReader(input)))
		parts := merged(collect(t, &chunkReader{chunks: [][]byte{
			bytes.Clone(input[:split]),
			bytes.Clone(input[split:]),
		}}))

		if len(whole) != len(parts) {
			t.Fatalf("whole %v, split %v", whole, parts)
		}
		for i := range whole {
			if whole[i].Kind != parts[i].Kind || !bytes.Equal(whole[i].Data, parts[i].Data) {
				t.Fatalf("event %d: whole %v, split %v", i, whole[i], parts[i])
			}
		}
	})
}
