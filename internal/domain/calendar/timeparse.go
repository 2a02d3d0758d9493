package calendar

import (
	"fmt"
	"strings"
	"time"
)

// inputLayouts are the accepted timestamp forms, most specific first.
// Layouts without a zone are read as UTC.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a client-supplied timestamp.
// PRE: none
// POST: returns the instant in UTC, or an error naming the accepted forms
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or YYYY-MM-DD[ HH:MM]")
}
