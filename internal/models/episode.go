// ABOUTME: Episode model for migraine events with intensity history.
// ABOUTME: Episodes carry triggers, medicines, symptoms and an append-only intensity log.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intensity bounds on the 1-10 pain scale.
const (
	MinIntensity = 1
	MaxIntensity = 10
)

var (
	// ErrEpisodeClosed is returned when mutating the history of an ended episode.
	ErrEpisodeClosed = errors.New("episode is closed")
	// ErrOutOfOrder is returned when an intensity entry predates the last one.
	ErrOutOfOrder = errors.New("intensity entry predates last entry")
)

// IntensityEntry is one pain-level sample within an episode.
type IntensityEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Intensity int       `json:"intensity" yaml:"intensity"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// Symptoms holds the fixed symptom flags plus free-text extras.
type Symptoms struct {
	Nausea      bool     `json:"nausea,omitempty" yaml:"nausea,omitempty"`
	Vomiting    bool     `json:"vomiting,omitempty" yaml:"vomiting,omitempty"`
	Photophobia bool     `json:"photophobia,omitempty" yaml:"photophobia,omitempty"`
	Phonophobia bool     `json:"phonophobia,omitempty" yaml:"phonophobia,omitempty"`
	Aura        bool     `json:"aura,omitempty" yaml:"aura,omitempty"`
	Dizziness   bool     `json:"dizziness,omitempty" yaml:"dizziness,omitempty"`
	NeckPain    bool     `json:"neck_pain,omitempty" yaml:"neck_pain,omitempty"`
	Custom      []string `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// SymptomNames lists the fixed flags in display order.
var SymptomNames = []string{"nausea", "vomiting", "photophobia", "phonophobia", "aura", "dizziness", "neck_pain"}

// Set turns a named symptom on. Unknown names are kept as custom symptoms.
func (s *Symptoms) Set(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nausea":
		s.Nausea = true
	case "vomiting":
		s.Vomiting = true
	case "photophobia":
		s.Photophobia = true
	case "phonophobia":
		s.Phonophobia = true
	case "aura":
		s.Aura = true
	case "dizziness":
		s.Dizziness = true
	case "neck_pain", "neckpain", "neck pain":
		s.NeckPain = true
	case "":
	default:
		s.Custom = appendUnique(s.Custom, name)
	}
}

// List returns the active symptoms, fixed flags first.
func (s Symptoms) List() []string {
	flags := []bool{s.Nausea, s.Vomiting, s.Photophobia, s.Phonophobia, s.Aura, s.Dizziness, s.NeckPain}
	var out []string
	for i, on := range flags {
		if on {
			out = append(out, SymptomNames[i])
		}
	}
	return append(out, s.Custom...)
}

// Episode represents one migraine event.
type Episode struct {
	ID               uuid.UUID        `json:"id" yaml:"id"`
	StartTime        time.Time        `json:"start_time" yaml:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Intensity        int              `json:"intensity" yaml:"intensity"`
	IntensityHistory []IntensityEntry `json:"intensity_history" yaml:"intensity_history"`
	Triggers         []string         `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Medicines        []string         `json:"medicines,omitempty" yaml:"medicines,omitempty"`
	Symptoms         Symptoms         `json:"symptoms" yaml:"symptoms"`
	Notes            *string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" yaml:"updated_at"`
}

// NewEpisode creates an episode starting at start with an "Initial" history entry.
func NewEpisode(start time.Time, intensity int) *Episode {
	now := time.Now()
	return &Episode{
		ID:        uuid.New(),
		StartTime: start,
		Intensity: intensity,
		IntensityHistory: []IntensityEntry{
			{Timestamp: start, Intensity: intensity, Note: "Initial"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidIntensity reports whether v is on the 1-10 scale.
func ValidIntensity(v int) bool {
	return v >= MinIntensity && v <= MaxIntensity
}

// LogIntensity appends a history entry and makes it the current intensity.
func (e *Episode) LogIntensity(at time.Time, intensity int, note string) error {
	if !ValidIntensity(intensity) {
		return fmt.Errorf("intensity %d out of range %d-%d", intensity, MinIntensity, MaxIntensity)
	}
	if e.EndTime != nil {
		return ErrEpisodeClosed
	}
	if n := len(e.IntensityHistory); n > 0 && at.Before(e.IntensityHistory[n-1].Timestamp) {
		return ErrOutOfOrder
	}
	e.IntensityHistory = append(e.IntensityHistory, IntensityEntry{
		Timestamp: at,
		Intensity: intensity,
		Note:      note,
	})
	e.Intensity = intensity
	e.UpdatedAt = time.Now()
	return nil
}

// Close ends the episode at the given time.
func (e *Episode) Close(at time.Time) error {
	if e.EndTime != nil {
		return ErrEpisodeClosed
	}
	if at.Before(e.StartTime) {
		return fmt.Errorf("end time %s before start %s", at.Format(time.RFC3339), e.StartTime.Format(time.RFC3339))
	}
	e.EndTime = &at
	e.UpdatedAt = time.Now()
	return nil
}

// IsOngoing reports whether the episode has not been closed.
func (e *Episode) IsOngoing() bool {
	return e.EndTime == nil
}

// Duration returns how long the episode lasted, or has lasted so far at now.
func (e *Episode) Duration(now time.Time) time.Duration {
	if e.EndTime != nil {
		return e.EndTime.Sub(e.StartTime)
	}
	return now.Sub(e.StartTime)
}

// AddTrigger records a trigger label once.
func (e *Episode) AddTrigger(label string) *Episode {
	e.Triggers = appendUnique(e.Triggers, label)
	return e
}

// AddMedicine records a medicine label once.
func (e *Episode) AddMedicine(label string) *Episode {
	e.Medicines = appendUnique(e.Medicines, label)
	return e
}

// WithNotes sets notes on the episode.
func (e *Episode) WithNotes(notes string) *Episode {
	e.Notes = &notes
	return e
}

// DateKey is the calendar day the episode started on.
func (e *Episode) DateKey() string {
	return DateKey(e.StartTime)
}

// NormalizeLabel folds a free-text label for comparison.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func appendUnique(list []string, label string) []string {
	label = strings.TrimSpace(label)
	if label == "" {
		return list
	}
	key := NormalizeLabel(label)
	for _, existing := range list {
		if NormalizeLabel(existing) == key {
			return list
		}
	}
	return append(list, label)
}
