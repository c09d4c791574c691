// ABOUTME: Tests for user timestamp parsing.
// ABOUTME: Covers RFC 3339, local short forms and the empty default.
package models

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	def := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", def, false},
		{"2024-03-10T08:30:00Z", time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC), false},
		{"2024-03-10 08:30", time.Date(2024, 3, 10, 8, 30, 0, 0, berlin), false},
		{"2024-03-10T08:30", time.Date(2024, 3, 10, 8, 30, 0, 0, berlin), false},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, berlin), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in, def, berlin)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
