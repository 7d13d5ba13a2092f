// Package notebook models the collaboratively edited notebook document.
//
// It contains the cell and formatting types exchanged with the API, the
// operation variants used by the realtime protocol, and a pure operation
// applier that keeps a local mirror in step with the server.
package notebook

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tidwall/sjson"
)

// CellType discriminates the cell variants.
type CellType string

const (
	CellTypeText    CellType = "text"
	CellTypeCode    CellType = "code"
	CellTypeHeading CellType = "heading"
	CellTypeLog     CellType = "log"
)

// HeadingType is the level of a heading cell.
type HeadingType string

const (
	HeadingH1 HeadingType = "h1"
	HeadingH2 HeadingType = "h2"
	HeadingH3 HeadingType = "h3"
)

// Cell is a single notebook cell.
//
// Text, code and heading cells carry Content and optional Formatting. Log
// cells carry their events encoded as data links (see NewLogCell).
type Cell struct {
	Type        CellType    `json:"type"`
	ID          string      `json:"id"`
	Content     string      `json:"content,omitempty"`
	Formatting  Formatting  `json:"formatting,omitempty"`
	HeadingType HeadingType `json:"headingType,omitempty"`
	Syntax      string      `json:"syntax,omitempty"`
	DataLinks   []string    `json:"dataLinks,omitempty"`
	ReadOnly    bool        `json:"readOnly,omitempty"`
}

// HasText reports whether the cell variant carries text content.
func (c Cell) HasText() bool {
	switch c.Type {
	case CellTypeText, CellTypeCode, CellTypeHeading:
		return true
	default:
		return false
	}
}

// CharCount returns the content length in Unicode scalar values, which is the
// unit used by text offsets.
func (c Cell) CharCount() int {
	return utf8.RuneCountInString(c.Content)
}

// MarshalJSON always emits "content" for text-bearing cells, even when empty.
func (c Cell) MarshalJSON() ([]byte, error) {
	type plain Cell
	data, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	if c.HasText() && c.Content == "" {
		return sjson.SetBytes(data, "content", "")
	}
	return data, nil
}

// clone returns a deep copy so mirrors never share slices.
func (c Cell) clone() Cell {
	out := c
	if c.Formatting != nil {
		out.Formatting = append(Formatting(nil), c.Formatting...)
	}
	if c.DataLinks != nil {
		out.DataLinks = append([]string(nil), c.DataLinks...)
	}
	return out
}

// NewTextCell creates a text cell.
func NewTextCell(id, content string) Cell {
	return Cell{Type: CellTypeText, ID: id, Content: content}
}

// NewCodeCell creates a code cell.
func NewCodeCell(id, content string) Cell {
	return Cell{Type: CellTypeCode, ID: id, Content: content}
}

// NewHeadingCell creates a heading cell.
func NewHeadingCell(id string, level HeadingType, content string, formatting Formatting) Cell {
	return Cell{Type: CellTypeHeading, ID: id, HeadingType: level, Content: content, Formatting: formatting}
}

// CellWithIndex pairs a cell with its position in the notebook.
type CellWithIndex struct {
	Cell  Cell   `json:"cell"`
	Index uint32 `json:"index"`
}

// TimeRange is the absolute time range of a notebook.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Label is a key/value notebook label.
type Label struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Notebook is the in-memory document. It is the mirror the realtime client
// keeps in step with the server.
type Notebook struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Revision  uint32    `json:"revision"`
	Cells     []Cell    `json:"cells"`
	TimeRange TimeRange `json:"timeRange"`
	Labels    []Label   `json:"labels,omitempty"`
}

// Clone returns a deep copy of the notebook.
func (nb *Notebook) Clone() *Notebook {
	out := *nb
	out.Cells = make([]Cell, len(nb.Cells))
	for i, cell := range nb.Cells {
		out.Cells[i] = cell.clone()
	}
	out.Labels = append([]Label(nil), nb.Labels...)
	return &out
}

// Cell returns a copy of the cell with the given id.
func (nb *Notebook) Cell(id string) (Cell, bool) {
	if i := nb.cellIndex(id); i >= 0 {
		return nb.Cells[i].clone(), true
	}
	return Cell{}, false
}

func (nb *Notebook) cellIndex(id string) int {
	for i := range nb.Cells {
		if nb.Cells[i].ID == id {
			return i
		}
	}
	return -1
}

// StateFor returns a snapshot containing only the cells the operation refers to.
func (nb *Notebook) StateFor(op Operation) State {
	ids := RelevantCellIDs(op)
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var state State
	for i, cell := range nb.Cells {
		if _, ok := wanted[cell.ID]; ok {
			state.Cells = append(state.Cells, CellWithIndex{Cell: cell.clone(), Index: uint32(i)})
		}
	}
	state.Title = nb.Title
	state.TimeRange = nb.TimeRange
	state.Labels = append([]Label(nil), nb.Labels...)
	return state
}

// ApplyOperation applies op to the notebook. The notebook is left untouched
// when the operation does not apply. The revision is not changed; callers own
// revision bookkeeping.
func (nb *Notebook) ApplyOperation(op Operation) error {
	changes, err := Apply(nb.StateFor(op), op)
	if err != nil {
		return err
	}
	next := nb.Clone()
	for _, change := range changes {
		if err := next.applyChange(change); err != nil {
			return err
		}
	}
	*nb = *next
	return nil
}

func (nb *Notebook) applyChange(change Change) error {
	switch ch := change.(type) {
	case InsertCellChange:
		index := int(ch.Index)
		if index > len(nb.Cells) {
			index = len(nb.Cells)
		}
		nb.Cells = append(nb.Cells, Cell{})
		copy(nb.Cells[index+1:], nb.Cells[index:])
		nb.Cells[index] = ch.Cell.clone()
	case DeleteCellChange:
		if i := nb.cellIndex(ch.CellID); i >= 0 {
			nb.Cells = append(nb.Cells[:i], nb.Cells[i+1:]...)
		}
	case MoveCellsChange:
		for i, id := range ch.CellIDs {
			old := nb.cellIndex(id)
			if old < 0 {
				continue
			}
			cell := nb.Cells[old]
			nb.Cells = append(nb.Cells[:old], nb.Cells[old+1:]...)
			index := int(ch.Index) + i
			if index > len(nb.Cells) {
				index = len(nb.Cells)
			}
			nb.Cells = append(nb.Cells, Cell{})
			copy(nb.Cells[index+1:], nb.Cells[index:])
			nb.Cells[index] = cell
		}
	case UpdateCellChange:
		if i := nb.cellIndex(ch.Cell.ID); i >= 0 {
			nb.Cells[i] = ch.Cell.clone()
		}
	case UpdateCellTextChange:
		if i := nb.cellIndex(ch.CellID); i >= 0 {
			nb.Cells[i].Content = ch.Text
			nb.Cells[i].Formatting = ch.Formatting
		}
	case UpdateTitleChange:
		nb.Title = ch.Title
	case UpdateTimeRangeChange:
		nb.TimeRange = ch.TimeRange
	case AddLabelChange:
		nb.Labels = append(nb.Labels, ch.Label)
	case ReplaceLabelChange:
		for i := range nb.Labels {
			if nb.Labels[i].Key == ch.Key {
				nb.Labels[i] = ch.Label
			}
		}
	case RemoveLabelChange:
		kept := nb.Labels[:0]
		for _, label := range nb.Labels {
			if label.Key != ch.Label.Key {
				kept = append(kept, label)
			}
		}
		nb.Labels = kept
	default:
		return fmt.Errorf("%w: change %T", ErrUnsupported, change)
	}
	return nil
}
