package shell

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalRenderer(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	for _, ev := range []Event{promptStart, data("$ "), promptEnd, data("ls\r\n")} {
		require.NoError(t, r.Handle(ev))
	}

	assert.Equal(t, RecordingBadge+"$ ls\r\n", out.String())
}

func TestRecordingBadge_WidthMatchesMarkers(t *testing.T) {
	assert.Equal(t, markerRunes, ansi.StringWidth(RecordingBadge))
	assert.Equal(t, markerRunes, len([]rune(string(StartMarker)+string(EndMarker))))
}
