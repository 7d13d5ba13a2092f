package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// The prompt markers are two repeated zero-width characters each. They must
// never occur in legitimate shell output.
var (
	StartMarker = []byte("\u200b\u200b")
	EndMarker   = []byte("\u200e\u200e")
)

// markerRunes is the number of characters both markers occupy together.
const markerRunes = 4

const extractorBufferSize = 16 * 1024

// EventKind tags an extractor Event.
type EventKind int

const (
	EventData EventKind = iota
	EventPromptStart
	EventPromptEnd
	EventPromptContinue
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "Data"
	case EventPromptStart:
		return "PromptStart"
	case EventPromptEnd:
		return "PromptEnd"
	case EventPromptContinue:
		return "PromptContinue"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one item of the extractor's output. Data aliases the extractor's
// buffer and is only valid until the next call to Next.
type Event struct {
	Kind EventKind
	Data []byte
}

func (e Event) String() string {
	if e.Kind == EventData {
		return fmt.Sprintf("Data(%q)", e.Data)
	}
	return e.Kind.String()
}

type extractorState int

const (
	stateRead extractorState = iota
	stateProcess
	stateConsume
)

// Extractor splits PTY output into data and prompt marker events.
//
// It never emits marker bytes as data and never splits a marker across two
// data events: a trailing partial marker is held back until the next read
// completes or rejects it.
type Extractor struct {
	src     io.Reader
	buf     []byte
	r, w    int
	state   extractorState
	consume int
	err     error
}

// NewExtractor returns an extractor reading from src.
func NewExtractor(src io.Reader) *Extractor {
	return &Extractor{
		src: src,
		buf: make([]byte, extractorBufferSize),
	}
}

// Next returns the next event. At the end of the input any held back bytes
// are returned as data before the reader's error.
func (e *Extractor) Next() (Event, error) {
	for {
		switch e.state {
		case stateRead:
			if e.err != nil {
				if e.w > e.r {
					data := e.buf[e.r:e.w]
					e.r = e.w
					return Event{Kind: EventData, Data: data}, nil
				}
				return Event{}, e.err
			}
			e.fill()
			e.state = stateProcess

		case stateProcess:
			data := e.buf[e.r:e.w]
			if len(data) == 0 {
				e.state = stateRead
				continue
			}

			start := bytes.Index(data, StartMarker)
			end := bytes.Index(data, EndMarker)
			switch {
			case start == 0:
				e.consumeNext(len(StartMarker))
				return Event{Kind: EventPromptStart}, nil
			case end == 0:
				e.consumeNext(len(EndMarker))
				return Event{Kind: EventPromptEnd}, nil
			case start > 0 || end > 0:
				n := nearest(start, end)
				e.consumeNext(n)
				return Event{Kind: EventData, Data: data[:n]}, nil
			}

			held := max(partialMarkerLen(data, StartMarker), partialMarkerLen(data, EndMarker))
			n := len(data) - held
			if n == 0 {
				e.state = stateRead
				continue
			}
			e.consumeNext(n)
			return Event{Kind: EventData, Data: data[:n]}, nil

		case stateConsume:
			e.r += e.consume
			e.consume = 0
			if e.w-e.r >= min(len(StartMarker), len(EndMarker)) {
				e.state = stateProcess
			} else {
				e.state = stateRead
			}
		}
	}
}

func (e *Extractor) consumeNext(n int) {
	e.consume = n
	e.state = stateConsume
}

// fill compacts the unread bytes to the front of the buffer and reads once.
func (e *Extractor) fill() {
	if e.r > 0 {
		e.w = copy(e.buf, e.buf[e.r:e.w])
		e.r = 0
	}
	n, err := e.src.Read(e.buf[e.w:])
	e.w += n
	if err != nil {
		e.err = err
	} else if n == 0 && e.w == len(e.buf) {
		// Unreachable while the held back tail is shorter than the buffer.
		e.err = errors.New("extractor buffer full")
	}
}

// nearest returns the smaller of the non-negative positions.
func nearest(a, b int) int {
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	default:
		return min(a, b)
	}
}

// partialMarkerLen returns the length of the longest suffix of data that is
// a proper prefix of marker.
func partialMarkerLen(data, marker []byte) int {
	for n := min(len(marker)-1, len(data)); n > 0; n-- {
		if bytes.HasPrefix(marker, data[len(data)-n:]) {
			return n
		}
	}
	return 0
}
