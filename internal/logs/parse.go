// Package logs recognizes structured log lines in command output and turns
// them into events for a notebook log cell.
package logs

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

var (
	// TimestampFields are tried in order for a record's time.
	TimestampFields = []string{"@timestamp", "timestamp", "fields.timestamp", "ts"}

	// BodyFields are tried in order for a record's title.
	BodyFields = []string{"body", "message", "fields.body", "fields.message", "log", "msg"}

	// Elastic Common Schema fields that map to the OpenTelemetry resource.
	resourcePrefixes   = []string{"agent.", "cloud.", "container.", "host.", "service."}
	resourceExceptions = map[string]bool{"container.labels": true, "host.uptime": true, "service.state": true}
)

// Building blocks of the standard grok patterns.
const (
	grokIPOrHost = `[0-9A-Za-z](?:[0-9A-Za-z._:-]*[0-9A-Za-z])?`
	grokUser     = `[a-zA-Z0-9._-]+`
	grokHTTPDate = `\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}`
	grokNumber   = `[+-]?(?:\d+(?:\.\d+)?|\.\d+)`
	grokQS       = `"(?:[^"\\]|\\.)*"`
	grokISO8601  = `\d{4}-\d{2}-\d{2}[T ]\d{2}:?\d{2}(?::?\d{2}(?:[.,]\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?`
	grokWord     = `\b\w+\b`
	grokSpace    = `\s*`
	grokData     = `.*?`
	grokGreedy   = `.*`
	grokNotSpace = `\S+`
)

var (
	nginxPattern = regexp.MustCompile(
		`(?P<clientip>` + grokIPOrHost + `) (?P<ident>` + grokUser + `) (?P<auth>` + grokUser + `) ` +
			`\[(?P<timestamp>` + grokHTTPDate + `)\] ` +
			`"(?:(?P<verb>\w+) (?P<request>` + grokNotSpace + `)(?: HTTP/(?P<httpversion>` + grokNumber + `))?|(?P<rawrequest>` + grokData + `))" ` +
			`(?P<response>` + grokNumber + `) (?:(?P<bytes>` + grokNumber + `)|-) ` +
			`(?P<referrer>` + grokQS + `) (?P<agent>` + grokQS + `)`)

	githubActionsPattern = regexp.MustCompile(
		`(?P<job>` + grokWord + `)` + grokSpace + `(?P<step>` + grokData + `)` + grokSpace +
			`(?P<timestamp>` + grokISO8601 + `)` + grokSpace + `(?P<body>` + grokGreedy + `)`)
)

// Parse turns every non-blank line of output into an event. Lines that are
// not recognized are dated with the most recent recognized line, or with the
// next one when none came before. If no line carries a time, the current
// time is used.
func Parse(output string) []notebook.Event {
	return parse(output, time.Now)
}

func parse(output string, now func() time.Time) []notebook.Event {
	var (
		events  []notebook.Event
		latest  *time.Time
		pending []string
	)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		event, ok := parseLine(line)
		if !ok {
			if latest != nil {
				events = append(events, newEvent(*latest, line))
			} else {
				pending = append(pending, line)
			}
			continue
		}

		for _, p := range pending {
			events = append(events, newEvent(event.Time, p))
		}
		pending = nil

		latest = &event.Time
		events = append(events, event)
	}

	if len(pending) > 0 {
		t := now().UTC()
		for _, p := range pending {
			events = append(events, newEvent(t, p))
		}
	}
	return events
}

func newEvent(t time.Time, title string) notebook.Event {
	return notebook.Event{
		Time:   t,
		Title:  title,
		Labels: map[string]string{},
		Otel: notebook.OtelMetadata{
			Attributes: map[string]any{},
			Resource:   map[string]any{},
		},
	}
}

// ContainsLogs reports whether any line of output is a recognized log line.
func ContainsLogs(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := parseLine(line); ok {
			return true
		}
	}
	return false
}

// parseLine recognizes a JSON object, then an nginx access log line, then a
// GitHub Actions step log line. Lines without a usable time are rejected.
func parseLine(line string) (notebook.Event, bool) {
	if gjson.Valid(line) {
		if root := gjson.Parse(line); root.IsObject() {
			fields := map[string]gjson.Result{}
			root.ForEach(func(key, value gjson.Result) bool {
				flatten(fields, key.String(), value)
				return true
			})
			return fromFields(fields)
		}
	}

	for _, pattern := range []*regexp.Regexp{nginxPattern, githubActionsPattern} {
		if fields, ok := matchGrok(pattern, line); ok {
			return fromFields(fields)
		}
	}
	return notebook.Event{}, false
}

// flatten joins nested object keys with "." and suffixes array elements
// with "[index]".
func flatten(out map[string]gjson.Result, key string, value gjson.Result) {
	switch {
	case value.IsObject():
		value.ForEach(func(k, v gjson.Result) bool {
			flatten(out, key+"."+k.String(), v)
			return true
		})
	case value.IsArray():
		for i, v := range value.Array() {
			flatten(out, key+"["+strconv.Itoa(i)+"]", v)
		}
	default:
		out[key] = value
	}
}

func matchGrok(pattern *regexp.Regexp, line string) (map[string]gjson.Result, bool) {
	m := pattern.FindStringSubmatchIndex(line)
	if m == nil {
		return nil, false
	}

	fields := map[string]gjson.Result{}
	for i, name := range pattern.SubexpNames() {
		if name == "" || m[2*i] < 0 {
			continue
		}
		value := strings.Trim(line[m[2*i]:m[2*i+1]], `"`)
		fields[name] = gjson.Result{Type: gjson.String, Str: value, Raw: strconv.Quote(value)}
	}
	return fields, true
}

func fromFields(fields map[string]gjson.Result) (notebook.Event, bool) {
	traceValue, ok := take(fields, "trace_id")
	if !ok {
		traceValue, _ = take(fields, "trace.id")
	}
	spanValue, ok := take(fields, "span_id")
	if !ok {
		spanValue, _ = take(fields, "span.id")
	}

	var (
		ts    time.Time
		found bool
	)
	for _, name := range TimestampFields {
		v, ok := take(fields, name)
		if !ok {
			continue
		}
		t, err := ParseTimestamp(v)
		if err != nil {
			log.Debug("Unable to parse timestamp", "field", name, "err", err)
			continue
		}
		ts, found = t, true
		break
	}
	if !found {
		return notebook.Event{}, false
	}

	var title string
	for _, name := range BodyFields {
		if v, ok := take(fields, name); ok {
			if v.Type == gjson.String {
				title = v.Str
			} else {
				title = v.Raw
			}
			break
		}
	}

	event := newEvent(ts, title)
	for key, value := range fields {
		if isResource(key) {
			event.Otel.Resource[key] = jsonValue(value)
		} else {
			event.Otel.Attributes[key] = jsonValue(value)
		}
	}

	if id := []byte(traceValue.Str); traceValue.Type == gjson.String && len(id) == len(trace.TraceID{}) {
		traceID := trace.TraceID(id)
		event.Otel.TraceID = &traceID
	}
	if id := []byte(spanValue.Str); spanValue.Type == gjson.String && len(id) == len(trace.SpanID{}) {
		spanID := trace.SpanID(id)
		event.Otel.SpanID = &spanID
	}
	return event, true
}

func take(fields map[string]gjson.Result, key string) (gjson.Result, bool) {
	v, ok := fields[key]
	if ok {
		delete(fields, key)
	}
	return v, ok
}

func isResource(key string) bool {
	if resourceExceptions[key] {
		return false
	}
	for _, prefix := range resourcePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// jsonValue keeps numbers in their original spelling.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return nil
	}
}
