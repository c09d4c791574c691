// ABOUTME: Timestamp parsing for user-supplied times.
// ABOUTME: Accepts RFC 3339 plus short local forms; empty input means a caller default.
package models

import (
	"fmt"
	"time"
)

var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s. RFC 3339 keeps its offset, the short forms are
// read in loc. An empty s returns def.
func ParseTimestamp(s string, def time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
