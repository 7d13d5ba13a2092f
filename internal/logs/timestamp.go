package logs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// NginxTimeLayout is the time layout of nginx access logs.
const NginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

var (
	iso8601Layouts = []string{
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02T15:04Z07:00",
		"20060102T150405.999999999Z0700",
		"20060102T150405.999999999Z07:00",
	}

	rfc2822Layouts = []string{
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC1123,
	}
)

// maxUnixSeconds is the end of year 9999.
const maxUnixSeconds = 253402300799

var errNotTimestamp = errors.New("not a recognized timestamp")

// ParseTimestamp interprets a JSON value as a point in time. Formats are
// tried in order: Unix seconds, RFC 3339, ISO 8601, RFC 2822, the nginx
// access log format, then fractional Unix seconds. The result is in UTC.
//
// Parameters:
//   - v: A JSON number or string
//
// Returns:
//   - time.Time: The parsed time
//   - error: If no format matches
func ParseTimestamp(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Number:
		if isInteger(v.Raw) {
			if secs, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return time.Unix(secs, 0).UTC(), nil
			}
		}
		return parseUnixFloat(v.Raw)
	case gjson.String:
		return parseTimestampString(v.Str)
	default:
		return time.Time{}, fmt.Errorf("%w: %s", errNotTimestamp, v.Raw)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range rfc2822Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(NginxTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	return parseUnixFloat(s)
}

func parseUnixFloat(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errNotTimestamp, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxUnixSeconds {
		return time.Time{}, fmt.Errorf("%w: %q is out of range", errNotTimestamp, s)
	}
	secs, frac := math.Modf(f)
	return time.Unix(int64(secs), int64(math.Round(frac*1e9))).UTC(), nil
}

func isInteger(raw string) bool {
	return !strings.ContainsAny(raw, ".eE")
}
