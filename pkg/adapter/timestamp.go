package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order for textual timestamps. Layouts without
// a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// minIntegerTimestamp bounds integer timestamps from below. Unix seconds or
// milliseconds read as nanoseconds land before it.
var minIntegerTimestamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseTimestamp accepts RFC3339 text (with or without zone) or an integer
// count of Unix nanoseconds. Integers that decode to a time before 2000 are
// rejected.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(0, ns).UTC()
		if t.Before(minIntegerTimestamp) {
			return time.Time{}, fmt.Errorf("integer timestamp %s decodes to %s; expected Unix nanoseconds", s, t.Format(time.RFC3339))
		}
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
