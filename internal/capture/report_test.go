package capture

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputMode
		wantErr bool
	}{
		{in: "command", want: OutputCommand},
		{in: "Table", want: OutputTable},
		{in: "JSON", want: OutputJSON},
		{in: "yaml", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, OutputCommand.Tee())
	assert.False(t, OutputJSON.Tee())
	assert.False(t, OutputTable.Tee())
}

func TestReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	cell := notebook.NewCodeCell("c1", "ls\nfile")

	require.NoError(t, Report(&buf, OutputJSON, cell, "https://studio.fiberplane.com/notebook/nb1#c1"))

	var decoded notebook.Cell
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, cell, decoded)
}

func TestReport_TableCodeCell(t *testing.T) {
	var buf bytes.Buffer
	cell := notebook.NewCodeCell("c1", "ls\nfile")

	require.NoError(t, Report(&buf, OutputTable, cell, "https://example.com/c1"))

	out := ansi.Strip(buf.String())
	assert.Contains(t, out, "ID       c1")
	assert.Contains(t, out, "Type     code")
	assert.Contains(t, out, "Content  ls ...")
	assert.Contains(t, out, "URL      https://example.com/c1")
}

func TestReport_TableLogCell(t *testing.T) {
	var buf bytes.Buffer
	events := []notebook.Event{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Title: "a"},
		{Time: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), Title: "b"},
	}
	cell, err := notebook.NewLogCell("c2", events)
	require.NoError(t, err)

	require.NoError(t, Report(&buf, OutputTable, cell, "https://example.com/c2"))

	out := ansi.Strip(buf.String())
	assert.Contains(t, out, "Type    log")
	assert.Contains(t, out, "Events  2")
	assert.NotContains(t, out, "Content")
}

func TestReport_Command(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, OutputCommand, notebook.NewCodeCell("c1", "x"), "https://example.com/c1"))
	assert.Equal(t, "\n   --> Created cell: https://example.com/c1\n", ansi.Strip(buf.String()))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one"))
	assert.Equal(t, "one", firstLine("one\n"))
	assert.Equal(t, "one ...", firstLine("one\ntwo"))
}
