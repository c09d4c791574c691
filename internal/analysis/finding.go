// ABOUTME: Correlation finding type and the usable-sample accounting behind it.
// ABOUTME: Percentage and p-value are computed here so every analyzer agrees on them.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// FindingType identifies the analyzer that produced a finding.
type FindingType string

const (
	TypeSleep       FindingType = "sleep"
	TypeStress      FindingType = "stress"
	TypeHRV         FindingType = "hrv"
	TypeBodyBattery FindingType = "bodyBattery"
	TypeTrigger     FindingType = "trigger"
	TypePressure    FindingType = "pressure"
	TypeTemperature FindingType = "temperature"
	TypeHumidity    FindingType = "humidity"
	TypeWeather     FindingType = "weather"
)

// Finding is a condition that co-occurred with episodes above its
// significance threshold.
type Finding struct {
	Type        FindingType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Percentage  int         `json:"percentage"`
	SampleSize  int         `json:"sample_size"`
	Excluded    int         `json:"excluded"`
	Condition   string      `json:"condition,omitempty"`
	Baseline    *int        `json:"baseline,omitempty"`
	PValue      *float64    `json:"p_value,omitempty"`
}

// Sample is the denominator bookkeeping for one analyzer run.
type Sample struct {
	Usable        int `json:"usable"`
	Matched       int `json:"matched"`
	Missing       int `json:"missing"`
	NotApplicable int `json:"not_applicable"`
}

// Excluded counts episodes left out of the denominator.
func (s Sample) Excluded() int {
	return s.Missing + s.NotApplicable
}

// Percentage is the rounded share of usable episodes that matched.
func (s Sample) Percentage() int {
	return percent(s.Matched, s.Usable)
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// binomialPValue is P(X >= matched) for X ~ Binomial(n, rate).
func binomialPValue(matched, n int, rate float64) float64 {
	if matched <= 0 {
		return 1
	}
	switch {
	case rate <= 0:
		return 0
	case rate >= 1:
		return 1
	}
	dist := distuv.Binomial{N: float64(n), P: rate}
	return dist.Survival(float64(matched - 1))
}

// SortByPercentage orders findings by percentage, highest first. Ties keep
// their relative order.
func SortByPercentage(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Percentage > findings[j].Percentage
	})
}
