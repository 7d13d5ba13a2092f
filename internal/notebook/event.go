package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// EventsMimeType is the media type of the data links carried by log cells.
const EventsMimeType = "application/vnd.fiberplane.events+json"

// Event is a single log event shown in a log cell.
type Event struct {
	Time        time.Time         `json:"time"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels"`
	Otel        OtelMetadata      `json:"otel"`
}

// OtelMetadata is the OpenTelemetry part of an event.
type OtelMetadata struct {
	TraceID    *trace.TraceID `json:"traceId,omitempty"`
	SpanID     *trace.SpanID  `json:"spanId,omitempty"`
	Attributes map[string]any `json:"attributes"`
	Resource   map[string]any `json:"resource"`
}

// NewLogCell creates a read-only log cell carrying events as an inline data link.
func NewLogCell(id string, events []Event) (Cell, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return Cell{}, fmt.Errorf("encode log events: %w", err)
	}
	return Cell{
		Type:      CellTypeLog,
		ID:        id,
		DataLinks: []string{"data:" + EventsMimeType + "," + string(data)},
		ReadOnly:  true,
	}, nil
}

// LogEvents decodes the events of a log cell's inline data links.
func (c Cell) LogEvents() ([]Event, error) {
	if c.Type != CellTypeLog {
		return nil, fmt.Errorf("%s cell has no log events", c.Type)
	}
	var events []Event
	prefix := "data:" + EventsMimeType + ","
	for _, link := range c.DataLinks {
		payload, ok := strings.CutPrefix(link, prefix)
		if !ok {
			continue
		}
		var batch []Event
		if err := json.Unmarshal([]byte(payload), &batch); err != nil {
			return nil, fmt.Errorf("decode log events: %w", err)
		}
		events = append(events, batch...)
	}
	return events, nil
}

// UnmarshalJSON decodes the hex-encoded trace and span ids written by
// trace.TraceID.MarshalJSON.
func (m *OtelMetadata) UnmarshalJSON(data []byte) error {
	var wire struct {
		TraceID    string         `json:"traceId"`
		SpanID     string         `json:"spanId"`
		Attributes map[string]any `json:"attributes"`
		Resource   map[string]any `json:"resource"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = OtelMetadata{Attributes: wire.Attributes, Resource: wire.Resource}
	if wire.TraceID != "" {
		id, err := trace.TraceIDFromHex(wire.TraceID)
		if err != nil {
			return fmt.Errorf("trace id: %w", err)
		}
		m.TraceID = &id
	}
	if wire.SpanID != "" {
		id, err := trace.SpanIDFromHex(wire.SpanID)
		if err != nil {
			return fmt.Errorf("span id: %w", err)
		}
		m.SpanID = &id
	}
	return nil
}
