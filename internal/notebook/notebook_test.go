package notebook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testNotebook() *Notebook {
	return &Notebook{
		ID:       "nb1",
		Title:    "Incident",
		Revision: 5,
		Cells: []Cell{
			NewTextCell("c1", "hello"),
			NewCodeCell("c2", "$ ls\n"),
		},
	}
}

func TestApplyOperation_ReplaceTextAppends(t *testing.T) {
	nb := testNotebook()

	err := nb.ApplyOperation(ReplaceTextOperation{CellID: "c2", Offset: 5, NewText: "README.md\n"})
	require.NoError(t, err)

	cell, ok := nb.Cell("c2")
	require.True(t, ok)
	assert.Equal(t, "$ ls\nREADME.md\n", cell.Content)
	assert.Equal(t, uint32(5), nb.Revision, "ApplyOperation must not touch the revision")
}

func TestApplyOperation_OffsetsCountCharacters(t *testing.T) {
	nb := &Notebook{Cells: []Cell{NewTextCell("c1", "🟢 go")}}

	err := nb.ApplyOperation(ReplaceTextOperation{CellID: "c1", Offset: 2, OldText: "go", NewText: "stop"})
	require.NoError(t, err)

	cell, _ := nb.Cell("c1")
	assert.Equal(t, "🟢 stop", cell.Content)
}

func TestApplyOperation_RejectsMismatchedOldText(t *testing.T) {
	nb := testNotebook()
	before := nb.Clone()

	err := nb.ApplyOperation(ReplaceTextOperation{CellID: "c1", Offset: 0, OldText: "jello", NewText: "x"})
	require.ErrorIs(t, err, ErrTextMismatch)
	assert.Equal(t, before, nb, "failed operations leave the notebook untouched")
}

func TestApplyOperation_DuplicateCellID(t *testing.T) {
	nb := testNotebook()

	err := nb.ApplyOperation(AddCellsOperation{Cells: []CellWithIndex{{Cell: NewTextCell("c1", "again"), Index: 2}}})
	require.ErrorIs(t, err, ErrDuplicateCell)
}

func TestApplyOperation_AddMoveRemove(t *testing.T) {
	nb := testNotebook()

	require.NoError(t, nb.ApplyOperation(AddCellsOperation{Cells: []CellWithIndex{{Cell: NewTextCell("c3", "third"), Index: 2}}}))
	require.NoError(t, nb.ApplyOperation(MoveCellsOperation{CellIDs: []string{"c3"}, FromIndex: 2, ToIndex: 0}))
	assert.Equal(t, []string{"c3", "c1", "c2"}, cellIDs(nb))

	require.NoError(t, nb.ApplyOperation(RemoveCellsOperation{RemovedCells: []CellWithIndex{{Cell: NewTextCell("c1", "hello"), Index: 1}}}))
	assert.Equal(t, []string{"c3", "c2"}, cellIDs(nb))
}

func TestApplyOperation_ShiftsFormatting(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	nb := &Notebook{Cells: []Cell{NewHeadingCell("h", HeadingH3, "@ann started", Formatting{
		Mention(0, "ann", "u1"),
		Timestamp(5, ts),
	})}}

	err := nb.ApplyOperation(ReplaceTextOperation{CellID: "h", Offset: 4, NewText: "!!"})
	require.NoError(t, err)

	cell, _ := nb.Cell("h")
	assert.Equal(t, "@ann!! started", cell.Content)
	require.Len(t, cell.Formatting, 2)
	assert.Equal(t, uint32(0), cell.Formatting[0].Offset)
	assert.Equal(t, uint32(7), cell.Formatting[1].Offset)
}

func TestStateFor_OnlyRelevantCells(t *testing.T) {
	nb := testNotebook()

	state := nb.StateFor(ReplaceTextOperation{CellID: "c2"})
	require.Len(t, state.Cells, 1)
	assert.Equal(t, "c2", state.Cells[0].Cell.ID)
	assert.Equal(t, uint32(1), state.Cells[0].Index)

	assert.Empty(t, nb.StateFor(UpdateNotebookTitleOperation{Title: "x"}).Cells)
}

func TestOperationJSON(t *testing.T) {
	op := ReplaceTextOperation{CellID: "c2", Offset: 3, NewText: "b", OldText: "a"}

	data, err := MarshalOperation(op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"replace_text","cellId":"c2","offset":3,"newText":"b","oldText":"a"}`, string(data))

	decoded, err := UnmarshalOperation(data)
	require.NoError(t, err)
	assert.Equal(t, op, decoded)

	_, err = UnmarshalOperation([]byte(`{"type":"teleport"}`))
	assert.Error(t, err)
}

func TestCellJSON_EmptyCodeCellKeepsContent(t *testing.T) {
	data, err := json.Marshal(Cell{Type: CellTypeCode, ID: "x", ReadOnly: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"code","id":"x","content":"","readOnly":true}`, string(data))
}

func TestInvert_RestoresNotebook(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		content := rapid.StringMatching(`[a-zé🟢 ]{0,20}`).Draw(t, "content")
		runes := []rune(content)
		start := rapid.IntRange(0, len(runes)).Draw(t, "start")
		end := rapid.IntRange(start, len(runes)).Draw(t, "end")
		newText := rapid.StringMatching(`[a-z\n]{0,8}`).Draw(t, "newText")

		nb := &Notebook{Cells: []Cell{NewCodeCell("c", content)}}
		before := nb.Clone()

		op := ReplaceTextOperation{CellID: "c", Offset: uint32(start), OldText: string(runes[start:end]), NewText: newText}
		if err := nb.ApplyOperation(op); err != nil {
			t.Fatalf("apply: %v", err)
		}
		inverse, err := Invert(op)
		if err != nil {
			t.Fatalf("invert: %v", err)
		}
		if err := nb.ApplyOperation(inverse); err != nil {
			t.Fatalf("apply inverse: %v", err)
		}
		if got := nb.Cells[0].Content; got != before.Cells[0].Content {
			t.Fatalf("content = %q, want %q", got, before.Cells[0].Content)
		}
	})
}

type customOperation struct{}

func (customOperation) Kind() OperationKind { return "custom" }

type customChange struct{}

func (customChange) isChange() {}

func TestUnknownEditsReturnErrors(t *testing.T) {
	_, err := Invert(customOperation{})
	assert.ErrorIs(t, err, ErrUnsupported)

	nb := testNotebook()
	assert.ErrorIs(t, nb.ApplyOperation(customOperation{}), ErrUnsupported)
	assert.ErrorIs(t, nb.applyChange(customChange{}), ErrUnsupported)
	assert.Equal(t, testNotebook(), nb)
}

func TestLogCellRoundTrip(t *testing.T) {
	events := []Event{{
		Time:   time.Date(2022, 7, 12, 9, 47, 33, 0, time.UTC),
		Title:  "hello",
		Labels: map[string]string{},
		Otel:   OtelMetadata{Attributes: map[string]any{"thing": json.Number("1")}, Resource: map[string]any{}},
	}}

	cell, err := NewLogCell("log", events)
	require.NoError(t, err)
	assert.True(t, cell.ReadOnly)

	decoded, err := cell.LogEvents()
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "hello", decoded[0].Title)
	assert.True(t, decoded[0].Time.Equal(events[0].Time))
}

func cellIDs(nb *Notebook) []string {
	ids := make([]string, len(nb.Cells))
	for i, c := range nb.Cells {
		ids[i] = c.ID
	}
	return ids
}
