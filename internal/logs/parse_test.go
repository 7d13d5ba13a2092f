package logs

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, value)
	require.NoError(t, err)
	return ts.UTC()
}

func TestParse_JSONLines(t *testing.T) {
	output := `{"ts":"2018-01-01T00:00:00.000Z","body":"test"}
	{"timestamp":"1657619253","message":"hello","trace_id":"1234567890123456","thing":1,"host.name":"blah"}`

	events := Parse(output)
	require.Len(t, events, 2)

	assert.Equal(t, "test", events[0].Title)
	assert.True(t, mustTime(t, "2018-01-01T00:00:00Z").Equal(events[0].Time))

	assert.Equal(t, "hello", events[1].Title)
	assert.True(t, mustTime(t, "2022-07-12T09:47:33Z").Equal(events[1].Time))
	require.NotNil(t, events[1].Otel.TraceID)
	assert.Equal(t, trace.TraceID([]byte("1234567890123456")), *events[1].Otel.TraceID)
	assert.Nil(t, events[1].Otel.SpanID)
	assert.Equal(t, map[string]any{"thing": json.Number("1")}, events[1].Otel.Attributes)
	assert.Equal(t, map[string]any{"host.name": "blah"}, events[1].Otel.Resource)
}

func TestParse_NestedJSONIsFlattened(t *testing.T) {
	events := Parse(`{"@timestamp":1657619253,"msg":"hi","http":{"status":200,"tags":["a","b"]},"service":{"name":"api","state":"ok"},"span":{"id":"abcdefgh"}}`)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "hi", ev.Title)
	assert.Equal(t, map[string]any{
		"http.status":   json.Number("200"),
		"http.tags[0]":  "a",
		"http.tags[1]":  "b",
		"service.state": "ok",
	}, ev.Otel.Attributes)
	assert.Equal(t, map[string]any{"service.name": "api"}, ev.Otel.Resource)
	require.NotNil(t, ev.Otel.SpanID)
	assert.Equal(t, trace.SpanID([]byte("abcdefgh")), *ev.Otel.SpanID)
}

func TestParse_NonStringBodyKeepsJSON(t *testing.T) {
	events := Parse(`{"ts":1657619253,"body":{"a":1}}`)
	require.Len(t, events, 1)
	// The nested body is flattened before body lookup, so "body" itself is gone.
	assert.Equal(t, "", events[0].Title)
	assert.Equal(t, json.Number("1"), events[0].Otel.Attributes["body.a"])

	events = Parse(`{"ts":1657619253,"msg":12.50}`)
	require.Len(t, events, 1)
	assert.Equal(t, "12.50", events[0].Title)
}

func TestParse_Nginx(t *testing.T) {
	output := `
192.0.7.128 - - [11/Jul/2022:13:04:26 +0000] "GET / HTTP/1.1" 200 472 "-" "ELB-HealthChecker/2.0" "-"
192.0.6.198 - - [11/Jul/2022:13:04:27 +0000] "GET / HTTP/1.1" 200 472 "-" "ELB-HealthChecker/2.0" "-"`

	events := Parse(output)
	require.Len(t, events, 2)

	want := map[string]any{
		"clientip":    "192.0.7.128",
		"ident":       "-",
		"auth":        "-",
		"verb":        "GET",
		"request":     "/",
		"httpversion": "1.1",
		"response":    "200",
		"bytes":       "472",
		"referrer":    "-",
		"agent":       "ELB-HealthChecker/2.0",
	}
	assert.True(t, mustTime(t, "2022-07-11T13:04:26Z").Equal(events[0].Time))
	assert.Equal(t, want, events[0].Otel.Attributes)

	want["clientip"] = "192.0.6.198"
	assert.Equal(t, want, events[1].Otel.Attributes)
}

func TestParse_GitHubActions(t *testing.T) {
	output := `
build   Set up job      2022-07-11T15:12:28.2324317Z Packages: write
build   Set up job      2022-07-11T15:12:28.2324660Z Pages: write
build   Set up job      2022-07-11T15:12:28.2325020Z PullRequests: write`

	events := Parse(output)
	require.Len(t, events, 3)

	assert.True(t, mustTime(t, "2022-07-11T15:12:28.2324317Z").Equal(events[0].Time))
	assert.Equal(t, "Packages: write", events[0].Title)
	assert.Equal(t, "build", events[0].Otel.Attributes["job"])
	assert.Equal(t, "Set up job", events[0].Otel.Attributes["step"])
}

func TestParse_NoTimestamps(t *testing.T) {
	output := `
/docker-entrypoint.sh: Launching /docker-entrypoint.d/20-envsubst-on-templates.sh
/docker-entrypoint.sh: Launching /docker-entrypoint.d/30-tune-worker-processes.sh
/docker-entrypoint.sh: Configuration complete; ready for start up`

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	events := parse(output, func() time.Time { return now })
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, now, ev.Time)
	}
	assert.False(t, ContainsLogs(output))
}

func TestParse_LinesBeforeFirstTimestamp(t *testing.T) {
	output := `
/docker-entrypoint.sh: Launching /docker-entrypoint.d/20-envsubst-on-templates.sh
/docker-entrypoint.sh: Launching /docker-entrypoint.d/30-tune-worker-processes.sh
/docker-entrypoint.sh: Configuration complete; ready for start up
192.0.7.128 - - [11/Jul/2022:13:04:26 +0000] "GET / HTTP/1.1" 200 472 "-" "ELB-HealthChecker/2.0" "-"
192.0.6.198 - - [11/Jul/2022:13:04:26 +0000] "GET / HTTP/1.1" 200 472 "-" "ELB-HealthChecker/2.0" "-"
trailing line`

	events := Parse(output)
	require.Len(t, events, 6)

	first := mustTime(t, "2022-07-11T13:04:26Z")
	assert.True(t, first.Equal(events[0].Time))
	assert.Equal(t, "/docker-entrypoint.sh: Launching /docker-entrypoint.d/20-envsubst-on-templates.sh", events[0].Title)
	assert.Equal(t, "/docker-entrypoint.sh: Launching /docker-entrypoint.d/30-tune-worker-processes.sh", events[1].Title)
	assert.Equal(t, "192.0.7.128", events[3].Otel.Attributes["clientip"])

	assert.Equal(t, "trailing line", events[5].Title)
	assert.True(t, first.Equal(events[5].Time))
	assert.True(t, ContainsLogs(output))
}

func TestParse_JSONWithoutTimestampIsPlainLine(t *testing.T) {
	assert.False(t, ContainsLogs(`{"message":"no time here"}`))
	assert.False(t, ContainsLogs(`{"ts":"yesterday","message":"bad time"}`))
	assert.False(t, ContainsLogs(`["not","an","object"]`))
}

func TestParse_EncodesIntoLogCell(t *testing.T) {
	events := Parse(`{"ts":1657619253,"body":"x","trace_id":"1234567890123456"}`)

	cell, err := notebook.NewLogCell("log", events)
	require.NoError(t, err)
	require.Len(t, cell.DataLinks, 1)

	payload, ok := strings.CutPrefix(cell.DataLinks[0], "data:application/vnd.fiberplane.events+json,")
	require.True(t, ok)
	require.True(t, gjson.Valid(payload))

	first := gjson.Get(payload, "0")
	assert.Equal(t, "x", first.Get("title").String())
	assert.Equal(t, "2022-07-12T09:47:33Z", first.Get("time").String())
	assert.Equal(t, "31323334353637383930313233343536", first.Get("otel.traceId").String())
	assert.True(t, first.Get("labels").IsObject())
	assert.True(t, first.Get("otel.attributes").IsObject())

	decoded, err := cell.LogEvents()
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, *events[0].Otel.TraceID, *decoded[0].Otel.TraceID)
}
