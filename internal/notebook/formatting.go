package notebook

import (
	"sort"
	"time"
)

// AnnotationType discriminates inline formatting annotations.
type AnnotationType string

const (
	AnnotationMention        AnnotationType = "mention"
	AnnotationTimestamp      AnnotationType = "timestamp"
	AnnotationStartBold      AnnotationType = "start_bold"
	AnnotationEndBold        AnnotationType = "end_bold"
	AnnotationStartItalics   AnnotationType = "start_italics"
	AnnotationEndItalics     AnnotationType = "end_italics"
	AnnotationStartHighlight AnnotationType = "start_highlight"
	AnnotationEndHighlight   AnnotationType = "end_highlight"
	AnnotationStartLink      AnnotationType = "start_link"
	AnnotationEndLink        AnnotationType = "end_link"
)

// AnnotationWithOffset is an inline annotation anchored at a character offset.
type AnnotationWithOffset struct {
	Type   AnnotationType `json:"type"`
	Offset uint32         `json:"offset"`

	// Mention
	Name   string `json:"name,omitempty"`
	UserID string `json:"userId,omitempty"`

	// Timestamp
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// StartLink
	URL string `json:"url,omitempty"`
}

// Formatting is the ordered list of annotations of a cell.
type Formatting []AnnotationWithOffset

// Mention creates a mention annotation.
func Mention(offset uint32, name, userID string) AnnotationWithOffset {
	return AnnotationWithOffset{Type: AnnotationMention, Offset: offset, Name: name, UserID: userID}
}

// Timestamp creates a timestamp annotation.
func Timestamp(offset uint32, ts time.Time) AnnotationWithOffset {
	ts = ts.UTC()
	return AnnotationWithOffset{Type: AnnotationTimestamp, Offset: offset, Timestamp: &ts}
}

// shifted returns the formatting with every offset moved by delta.
func (f Formatting) shifted(delta int) Formatting {
	if len(f) == 0 {
		return nil
	}
	out := make(Formatting, len(f))
	for i, a := range f {
		a.Offset = uint32(int(a.Offset) + delta)
		out[i] = a
	}
	return out
}

// replaceRange removes annotations in [offset, offset+oldLen), shifts later
// ones by newLen-oldLen and inserts replacement (relative to offset).
func (f Formatting) replaceRange(offset, oldLen, newLen uint32, replacement Formatting) Formatting {
	var out Formatting
	for _, a := range f {
		switch {
		case a.Offset < offset:
			out = append(out, a)
		case a.Offset < offset+oldLen:
			// replaced along with the text
		default:
			a.Offset = a.Offset - oldLen + newLen
			out = append(out, a)
		}
	}
	out = append(out, replacement.shifted(int(offset))...)
	sortFormatting(out)
	return out
}

func sortFormatting(f Formatting) {
	sort.SliceStable(f, func(i, j int) bool { return f[i].Offset < f[j].Offset })
}
