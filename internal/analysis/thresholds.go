// ABOUTME: Named threshold table for the correlation analyzers.
// ABOUTME: Defaults match the clinical cut-offs; a TOML file can override any field.
package analysis

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Significance holds the minimum percentage of usable episodes that must
// show a condition before an analyzer reports it.
type Significance struct {
	Sleep       int `toml:"sleep" json:"sleep"`
	Stress      int `toml:"stress" json:"stress"`
	HRV         int `toml:"hrv" json:"hrv"`
	BodyBattery int `toml:"body_battery" json:"body_battery"`
	Pressure    int `toml:"pressure" json:"pressure"`
	Temperature int `toml:"temperature" json:"temperature"`
	Humidity    int `toml:"humidity" json:"humidity"`
}

// Thresholds configures every classifier and significance rule.
type Thresholds struct {
	MinSampleSize   int          `toml:"min_sample_size" json:"min_sample_size"`
	LowSleepMinutes int          `toml:"low_sleep_minutes" json:"low_sleep_minutes"`
	HighStress      int          `toml:"high_stress" json:"high_stress"`
	LowHRV          float64      `toml:"low_hrv" json:"low_hrv"`
	LowBodyBattery  int          `toml:"low_body_battery" json:"low_body_battery"`
	PressureDrop    float64      `toml:"pressure_drop" json:"pressure_drop"`
	HeatMaxC        float64      `toml:"heat_max_c" json:"heat_max_c"`
	HighHumidity    float64      `toml:"high_humidity" json:"high_humidity"`
	MinTriggerCount int          `toml:"min_trigger_count" json:"min_trigger_count"`
	Significance    Significance `toml:"significance" json:"significance"`
}

// DefaultThresholds returns the standard threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSampleSize:   5,
		LowSleepMinutes: 360,
		HighStress:      65,
		LowHRV:          30,
		LowBodyBattery:  30,
		PressureDrop:    -10,
		HeatMaxC:        30,
		HighHumidity:    85,
		MinTriggerCount: 3,
		Significance: Significance{
			Sleep:       50,
			Stress:      60,
			HRV:         50,
			BodyBattery: 50,
			Pressure:    50,
			Temperature: 50,
			Humidity:    50,
		},
	}
}

// LoadThresholds reads a TOML file over the defaults. Fields missing from
// the file keep their default value. An empty path returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds: %w", err)
	}
	if err := toml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return th, nil
}

// Validate checks that counts are positive and percentages are in 1-100.
func (th Thresholds) Validate() error {
	var errs []error
	if th.MinSampleSize < 1 {
		errs = append(errs, fmt.Errorf("min_sample_size must be at least 1, got %d", th.MinSampleSize))
	}
	if th.MinTriggerCount < 1 {
		errs = append(errs, fmt.Errorf("min_trigger_count must be at least 1, got %d", th.MinTriggerCount))
	}
	if th.PressureDrop > 0 {
		errs = append(errs, fmt.Errorf("pressure_drop must be negative, got %g", th.PressureDrop))
	}
	percents := map[string]int{
		"sleep":        th.Significance.Sleep,
		"stress":       th.Significance.Stress,
		"hrv":          th.Significance.HRV,
		"body_battery": th.Significance.BodyBattery,
		"pressure":     th.Significance.Pressure,
		"temperature":  th.Significance.Temperature,
		"humidity":     th.Significance.Humidity,
	}
	for _, name := range []string{"sleep", "stress", "hrv", "body_battery", "pressure", "temperature", "humidity"} {
		if p := percents[name]; p < 1 || p > 100 {
			errs = append(errs, fmt.Errorf("significance.%s must be 1-100, got %d", name, p))
		}
	}
	return errors.Join(errs...)
}
