package task

import (
	"fmt"
	"time"
)

// TimeLayout is the wire format for every timestamp in a task document.
// It is fixed-width UTC with millisecond precision, so the lexicographic
// order of serialized values equals their chronological order. The
// storage engines compare timestamps as text and depend on this.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Time is a UTC wall-clock timestamp as carried in task documents.
type Time struct {
	time.Time
}

// Now returns the current wall clock truncated to document precision.
func Now() Time {
	return At(time.Now())
}

// At converts a time.Time to document precision.
func At(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Millisecond)}
}

// String returns the wire representation.
func (t Time) String() string {
	return t.UTC().Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler using TimeLayout.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("task: malformed timestamp %q", b)
	}
	parsed, err := time.Parse(TimeLayout, string(b[1:len(b)-1]))
	if err != nil {
		// Documents written by older builds may carry RFC 3339 with
		// arbitrary fractional digits.
		parsed, err = time.Parse(time.RFC3339Nano, string(b[1:len(b)-1]))
		if err != nil {
			return fmt.Errorf("task: malformed timestamp %q: %w", b, err)
		}
	}
	*t = At(parsed)
	return nil
}
