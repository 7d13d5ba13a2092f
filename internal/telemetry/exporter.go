package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// FileExporter writes finished spans as OTLP/JSON TracesData, one batch per line.
type FileExporter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewFileExporter creates an exporter writing to w. If w is also an
// io.Closer it is closed on Shutdown.
func NewFileExporter(w io.Writer) *FileExporter {
	e := &FileExporter{w: w}
	if c, ok := w.(io.Closer); ok {
		e.closer = c
	}
	return e
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *FileExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := protojson.Marshal(tracesData(spans))
	if err != nil {
		return fmt.Errorf("encode spans: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("exporter is shut down")
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write spans: %w", err)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *FileExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// tracesData groups spans by instrumentation scope under the resource of
// the first span. A tracer provider has a single resource.
func tracesData(spans []sdktrace.ReadOnlySpan) *tracepb.TracesData {
	rs := &tracepb.ResourceSpans{}
	if res := spans[0].Resource(); res != nil {
		rs.Resource = &resourcepb.Resource{Attributes: keyValues(res.Attributes())}
		rs.SchemaUrl = res.SchemaURL()
	}

	scopes := map[string]*tracepb.ScopeSpans{}
	for _, span := range spans {
		scope := span.InstrumentationScope()
		key := scope.Name + "@" + scope.Version
		ss, ok := scopes[key]
		if !ok {
			ss = &tracepb.ScopeSpans{
				Scope:     &commonpb.InstrumentationScope{Name: scope.Name, Version: scope.Version},
				SchemaUrl: scope.SchemaURL,
			}
			scopes[key] = ss
			rs.ScopeSpans = append(rs.ScopeSpans, ss)
		}
		ss.Spans = append(ss.Spans, spanProto(span))
	}

	return &tracepb.TracesData{ResourceSpans: []*tracepb.ResourceSpans{rs}}
}

func spanProto(span sdktrace.ReadOnlySpan) *tracepb.Span {
	sc := span.SpanContext()
	traceID := sc.TraceID()
	spanID := sc.SpanID()

	out := &tracepb.Span{
		TraceId:           traceID[:],
		SpanId:            spanID[:],
		TraceState:        sc.TraceState().String(),
		Name:              span.Name(),
		Kind:              tracepb.Span_SpanKind(span.SpanKind()),
		StartTimeUnixNano: uint64(span.StartTime().UnixNano()),
		EndTimeUnixNano:   uint64(span.EndTime().UnixNano()),
		Attributes:        keyValues(span.Attributes()),
		Status:            statusProto(span.Status()),
	}
	if parent := span.Parent(); parent.IsValid() {
		parentID := parent.SpanID()
		out.ParentSpanId = parentID[:]
	}
	for _, event := range span.Events() {
		out.Events = append(out.Events, &tracepb.Span_Event{
			TimeUnixNano: uint64(event.Time.UnixNano()),
			Name:         event.Name,
			Attributes:   keyValues(event.Attributes),
		})
	}
	return out
}

func statusProto(status sdktrace.Status) *tracepb.Status {
	out := &tracepb.Status{Message: status.Description}
	switch status.Code {
	case codes.Ok:
		out.Code = tracepb.Status_STATUS_CODE_OK
	case codes.Error:
		out.Code = tracepb.Status_STATUS_CODE_ERROR
	default:
		out.Code = tracepb.Status_STATUS_CODE_UNSET
	}
	return out
}

func keyValues(attrs []attribute.KeyValue) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, &commonpb.KeyValue{Key: string(kv.Key), Value: anyValue(kv.Value)})
	}
	return out
}

func anyValue(v attribute.Value) *commonpb.AnyValue {
	switch v.Type() {
	case attribute.BOOL:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	case attribute.INT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attribute.FLOAT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attribute.STRING:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.AsString()}}
	case attribute.BOOLSLICE:
		return arrayValue(v.AsBoolSlice(), attribute.BoolValue)
	case attribute.INT64SLICE:
		return arrayValue(v.AsInt64Slice(), attribute.Int64Value)
	case attribute.FLOAT64SLICE:
		return arrayValue(v.AsFloat64Slice(), attribute.Float64Value)
	case attribute.STRINGSLICE:
		return arrayValue(v.AsStringSlice(), attribute.StringValue)
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.Emit()}}
	}
}

func arrayValue[T any](items []T, value func(T) attribute.Value) *commonpb.AnyValue {
	values := make([]*commonpb.AnyValue, 0, len(items))
	for _, item := range items {
		values = append(values, anyValue(value(item)))
	}
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: values}}}
}
