package notebook

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// OperationKind is the wire tag of an operation.
type OperationKind string

const (
	KindAddCells                OperationKind = "add_cells"
	KindUpdateCell              OperationKind = "update_cell"
	KindReplaceText             OperationKind = "replace_text"
	KindMoveCells               OperationKind = "move_cells"
	KindRemoveCells             OperationKind = "remove_cells"
	KindUpdateNotebookTitle     OperationKind = "update_notebook_title"
	KindUpdateNotebookTimeRange OperationKind = "update_notebook_time_range"
	KindAddLabel                OperationKind = "add_label"
	KindReplaceLabel            OperationKind = "replace_label"
	KindRemoveLabel             OperationKind = "remove_label"
)

// Operation is a notebook edit. Every operation carries both the old and the
// new payload so it can be inverted.
type Operation interface {
	Kind() OperationKind
}

// AddCellsOperation inserts cells at the given indices.
type AddCellsOperation struct {
	Cells []CellWithIndex `json:"cells"`
}

// UpdateCellOperation replaces a cell wholesale.
type UpdateCellOperation struct {
	OldCell     Cell `json:"oldCell"`
	UpdatedCell Cell `json:"updatedCell"`
}

// ReplaceTextOperation replaces OldText at Offset with NewText. Offsets are in
// Unicode scalar values. Formatting offsets are relative to Offset.
type ReplaceTextOperation struct {
	CellID        string     `json:"cellId"`
	Offset        uint32     `json:"offset"`
	NewText       string     `json:"newText"`
	NewFormatting Formatting `json:"newFormatting,omitempty"`
	OldText       string     `json:"oldText"`
	OldFormatting Formatting `json:"oldFormatting,omitempty"`
}

// MoveCellsOperation moves a contiguous run of cells.
type MoveCellsOperation struct {
	CellIDs   []string `json:"cellIds"`
	FromIndex uint32   `json:"fromIndex"`
	ToIndex   uint32   `json:"toIndex"`
}

// RemoveCellsOperation deletes cells.
type RemoveCellsOperation struct {
	RemovedCells []CellWithIndex `json:"removedCells"`
}

// UpdateNotebookTitleOperation changes the title.
type UpdateNotebookTitleOperation struct {
	OldTitle string `json:"oldTitle"`
	Title    string `json:"title"`
}

// UpdateNotebookTimeRangeOperation changes the time range.
type UpdateNotebookTimeRangeOperation struct {
	OldTimeRange TimeRange `json:"oldTimeRange"`
	TimeRange    TimeRange `json:"timeRange"`
}

// AddLabelOperation adds a label.
type AddLabelOperation struct {
	Label Label `json:"label"`
}

// ReplaceLabelOperation replaces the label with OldLabel's key.
type ReplaceLabelOperation struct {
	OldLabel Label `json:"oldLabel"`
	NewLabel Label `json:"newLabel"`
}

// RemoveLabelOperation removes a label.
type RemoveLabelOperation struct {
	Label Label `json:"label"`
}

func (AddCellsOperation) Kind() OperationKind                { return KindAddCells }
func (UpdateCellOperation) Kind() OperationKind              { return KindUpdateCell }
func (ReplaceTextOperation) Kind() OperationKind             { return KindReplaceText }
func (MoveCellsOperation) Kind() OperationKind               { return KindMoveCells }
func (RemoveCellsOperation) Kind() OperationKind             { return KindRemoveCells }
func (UpdateNotebookTitleOperation) Kind() OperationKind     { return KindUpdateNotebookTitle }
func (UpdateNotebookTimeRangeOperation) Kind() OperationKind { return KindUpdateNotebookTimeRange }
func (AddLabelOperation) Kind() OperationKind                { return KindAddLabel }
func (ReplaceLabelOperation) Kind() OperationKind            { return KindReplaceLabel }
func (RemoveLabelOperation) Kind() OperationKind             { return KindRemoveLabel }

// MarshalOperation encodes op as a JSON object tagged with its "type".
func MarshalOperation(op Operation) ([]byte, error) {
	if op == nil {
		return nil, fmt.Errorf("notebook: nil operation")
	}
	data, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(data, "type", string(op.Kind()))
}

// UnmarshalOperation decodes a "type"-tagged JSON operation.
func UnmarshalOperation(data []byte) (Operation, error) {
	kind := OperationKind(gjson.GetBytes(data, "type").String())

	var op Operation
	var err error
	switch kind {
	case KindAddCells:
		op, err = decodeAs[AddCellsOperation](data)
	case KindUpdateCell:
		op, err = decodeAs[UpdateCellOperation](data)
	case KindReplaceText:
		op, err = decodeAs[ReplaceTextOperation](data)
	case KindMoveCells:
		op, err = decodeAs[MoveCellsOperation](data)
	case KindRemoveCells:
		op, err = decodeAs[RemoveCellsOperation](data)
	case KindUpdateNotebookTitle:
		op, err = decodeAs[UpdateNotebookTitleOperation](data)
	case KindUpdateNotebookTimeRange:
		op, err = decodeAs[UpdateNotebookTimeRangeOperation](data)
	case KindAddLabel:
		op, err = decodeAs[AddLabelOperation](data)
	case KindReplaceLabel:
		op, err = decodeAs[ReplaceLabelOperation](data)
	case KindRemoveLabel:
		op, err = decodeAs[RemoveLabelOperation](data)
	default:
		return nil, fmt.Errorf("notebook: unknown operation type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("notebook: decode %s: %w", kind, err)
	}
	return op, nil
}

func decodeAs[T Operation](data []byte) (Operation, error) {
	var op T
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}
	return op, nil
}

// RelevantCellIDs lists the ids of the cells op reads or writes.
func RelevantCellIDs(op Operation) []string {
	switch o := op.(type) {
	case AddCellsOperation:
		ids := make([]string, 0, len(o.Cells))
		for _, c := range o.Cells {
			ids = append(ids, c.Cell.ID)
		}
		return ids
	case UpdateCellOperation:
		return []string{o.OldCell.ID}
	case ReplaceTextOperation:
		return []string{o.CellID}
	case MoveCellsOperation:
		return append([]string(nil), o.CellIDs...)
	case RemoveCellsOperation:
		ids := make([]string, 0, len(o.RemovedCells))
		for _, c := range o.RemovedCells {
			ids = append(ids, c.Cell.ID)
		}
		return ids
	default:
		return nil
	}
}

// Invert returns the operation that undoes op.
func Invert(op Operation) (Operation, error) {
	var inverse Operation
	switch o := op.(type) {
	case AddCellsOperation:
		inverse = RemoveCellsOperation{RemovedCells: o.Cells}
	case RemoveCellsOperation:
		inverse = AddCellsOperation{Cells: o.RemovedCells}
	case UpdateCellOperation:
		inverse = UpdateCellOperation{OldCell: o.UpdatedCell, UpdatedCell: o.OldCell}
	case ReplaceTextOperation:
		inverse = ReplaceTextOperation{
			CellID:        o.CellID,
			Offset:        o.Offset,
			NewText:       o.OldText,
			NewFormatting: o.OldFormatting,
			OldText:       o.NewText,
			OldFormatting: o.NewFormatting,
		}
	case MoveCellsOperation:
		inverse = MoveCellsOperation{CellIDs: o.CellIDs, FromIndex: o.ToIndex, ToIndex: o.FromIndex}
	case UpdateNotebookTitleOperation:
		inverse = UpdateNotebookTitleOperation{OldTitle: o.Title, Title: o.OldTitle}
	case UpdateNotebookTimeRangeOperation:
		inverse = UpdateNotebookTimeRangeOperation{OldTimeRange: o.TimeRange, TimeRange: o.OldTimeRange}
	case AddLabelOperation:
		inverse = RemoveLabelOperation{Label: o.Label}
	case RemoveLabelOperation:
		inverse = AddLabelOperation{Label: o.Label}
	case ReplaceLabelOperation:
		inverse = ReplaceLabelOperation{OldLabel: o.NewLabel, NewLabel: o.OldLabel}
	default:
		return nil, fmt.Errorf("%w: cannot invert %T", ErrUnsupported, op)
	}
	return inverse, nil
}
