package notebook

import (
	"errors"
	"fmt"
)

var (
	// ErrCellNotFound is returned when an operation refers to a missing cell.
	ErrCellNotFound = errors.New("cell not found")

	// ErrDuplicateCell is returned when an inserted cell id already exists.
	ErrDuplicateCell = errors.New("duplicate cell id")

	// ErrTextMismatch is returned when ReplaceText's old text does not match.
	ErrTextMismatch = errors.New("old text does not match cell content")

	// ErrUnsupported is returned for operation or change types this package
	// does not know.
	ErrUnsupported = errors.New("unsupported notebook edit")
)

// State is the part of a notebook an operation needs: the cells returned by
// RelevantCellIDs plus the notebook metadata.
type State struct {
	Cells     []CellWithIndex
	Title     string
	TimeRange TimeRange
	Labels    []Label
}

func (s State) cell(id string) (CellWithIndex, bool) {
	for _, c := range s.Cells {
		if c.Cell.ID == id {
			return c, true
		}
	}
	return CellWithIndex{}, false
}

// Change is a single mutation produced by Apply.
type Change interface {
	isChange()
}

type (
	InsertCellChange struct {
		Cell  Cell
		Index uint32
	}
	DeleteCellChange struct {
		CellID string
	}
	MoveCellsChange struct {
		CellIDs []string
		Index   uint32
	}
	UpdateCellChange struct {
		Cell Cell
	}
	UpdateCellTextChange struct {
		CellID     string
		Text       string
		Formatting Formatting
	}
	UpdateTitleChange struct {
		Title string
	}
	UpdateTimeRangeChange struct {
		TimeRange TimeRange
	}
	AddLabelChange struct {
		Label Label
	}
	ReplaceLabelChange struct {
		Key   string
		Label Label
	}
	RemoveLabelChange struct {
		Label Label
	}
)

func (InsertCellChange) isChange()      {}
func (DeleteCellChange) isChange()      {}
func (MoveCellsChange) isChange()       {}
func (UpdateCellChange) isChange()      {}
func (UpdateCellTextChange) isChange()  {}
func (UpdateTitleChange) isChange()     {}
func (UpdateTimeRangeChange) isChange() {}
func (AddLabelChange) isChange()        {}
func (ReplaceLabelChange) isChange()    {}
func (RemoveLabelChange) isChange()     {}

// Apply computes the changes op makes to state. It does not mutate state.
func Apply(state State, op Operation) ([]Change, error) {
	switch o := op.(type) {
	case AddCellsOperation:
		changes := make([]Change, 0, len(o.Cells))
		for _, c := range o.Cells {
			if _, exists := state.cell(c.Cell.ID); exists {
				return nil, fmt.Errorf("add cell %q: %w", c.Cell.ID, ErrDuplicateCell)
			}
			changes = append(changes, InsertCellChange{Cell: c.Cell, Index: c.Index})
		}
		return changes, nil

	case RemoveCellsOperation:
		changes := make([]Change, 0, len(o.RemovedCells))
		for _, c := range o.RemovedCells {
			if _, ok := state.cell(c.Cell.ID); !ok {
				return nil, fmt.Errorf("remove cell %q: %w", c.Cell.ID, ErrCellNotFound)
			}
			changes = append(changes, DeleteCellChange{CellID: c.Cell.ID})
		}
		return changes, nil

	case UpdateCellOperation:
		if _, ok := state.cell(o.OldCell.ID); !ok {
			return nil, fmt.Errorf("update cell %q: %w", o.OldCell.ID, ErrCellNotFound)
		}
		return []Change{UpdateCellChange{Cell: o.UpdatedCell}}, nil

	case ReplaceTextOperation:
		return applyReplaceText(state, o)

	case MoveCellsOperation:
		for _, id := range o.CellIDs {
			if _, ok := state.cell(id); !ok {
				return nil, fmt.Errorf("move cell %q: %w", id, ErrCellNotFound)
			}
		}
		return []Change{MoveCellsChange{CellIDs: o.CellIDs, Index: o.ToIndex}}, nil

	case UpdateNotebookTitleOperation:
		return []Change{UpdateTitleChange{Title: o.Title}}, nil

	case UpdateNotebookTimeRangeOperation:
		return []Change{UpdateTimeRangeChange{TimeRange: o.TimeRange}}, nil

	case AddLabelOperation:
		for _, l := range state.Labels {
			if l.Key == o.Label.Key {
				return nil, fmt.Errorf("add label %q: label exists", o.Label.Key)
			}
		}
		return []Change{AddLabelChange{Label: o.Label}}, nil

	case ReplaceLabelOperation:
		return []Change{ReplaceLabelChange{Key: o.OldLabel.Key, Label: o.NewLabel}}, nil

	case RemoveLabelOperation:
		return []Change{RemoveLabelChange{Label: o.Label}}, nil

	default:
		return nil, fmt.Errorf("%w: operation %T", ErrUnsupported, op)
	}
}

func applyReplaceText(state State, o ReplaceTextOperation) ([]Change, error) {
	c, ok := state.cell(o.CellID)
	if !ok {
		return nil, fmt.Errorf("replace text in %q: %w", o.CellID, ErrCellNotFound)
	}
	if !c.Cell.HasText() {
		return nil, fmt.Errorf("replace text in %q: %s cell has no text", o.CellID, c.Cell.Type)
	}

	runes := []rune(c.Cell.Content)
	oldRunes := []rune(o.OldText)
	start := int(o.Offset)
	end := start + len(oldRunes)
	if end > len(runes) {
		return nil, fmt.Errorf("replace text in %q at %d: offset out of range (length %d)", o.CellID, o.Offset, len(runes))
	}
	if string(runes[start:end]) != o.OldText {
		return nil, fmt.Errorf("replace text in %q at %d: %w", o.CellID, o.Offset, ErrTextMismatch)
	}

	newRunes := []rune(o.NewText)
	text := make([]rune, 0, len(runes)-len(oldRunes)+len(newRunes))
	text = append(text, runes[:start]...)
	text = append(text, newRunes...)
	text = append(text, runes[end:]...)

	formatting := c.Cell.Formatting.replaceRange(o.Offset, uint32(len(oldRunes)), uint32(len(newRunes)), o.NewFormatting)
	return []Change{UpdateCellTextChange{CellID: o.CellID, Text: string(text), Formatting: formatting}}, nil
}
