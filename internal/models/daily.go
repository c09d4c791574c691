// ABOUTME: Daily biometric and weather summaries keyed by calendar date.
// ABOUTME: Every measurement is optional; nil means no data, never zero.
package models

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used as the daily record key.
const DateLayout = "2006-01-02"

// DateKey formats t as a calendar date key in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey validates and parses a date key.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", key, err)
	}
	return t, nil
}

// ShiftDateKey moves a date key by days. Invalid keys are returned unchanged.
func ShiftDateKey(key string, days int) string {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return key
	}
	return t.AddDate(0, 0, days).Format(DateLayout)
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// SleepStages holds minutes spent in each sleep stage.
type SleepStages struct {
	Deep  *int `json:"deep,omitempty" yaml:"deep,omitempty"`
	Light *int `json:"light,omitempty" yaml:"light,omitempty"`
	REM   *int `json:"rem,omitempty" yaml:"rem,omitempty"`
	Awake *int `json:"awake,omitempty" yaml:"awake,omitempty"`
}

// BodyBattery is the wearable's energy reserve estimate.
type BodyBattery struct {
	Charged *int `json:"charged,omitempty" yaml:"charged,omitempty"`
	Drained *int `json:"drained,omitempty" yaml:"drained,omitempty"`
	Current *int `json:"current,omitempty" yaml:"current,omitempty"`
}

// DailyMetric is one day's wearable summary. Date is the key.
type DailyMetric struct {
	Date            string      `json:"date" yaml:"date"`
	SleepScore      *int        `json:"sleep_score,omitempty" yaml:"sleep_score,omitempty"`
	Sleep           SleepStages `json:"sleep" yaml:"sleep"`
	StressAvg       *int        `json:"stress_avg,omitempty" yaml:"stress_avg,omitempty"`
	StressMax       *int        `json:"stress_max,omitempty" yaml:"stress_max,omitempty"`
	RestingHR       *int        `json:"resting_hr,omitempty" yaml:"resting_hr,omitempty"`
	MaxHR           *int        `json:"max_hr,omitempty" yaml:"max_hr,omitempty"`
	HRV             *float64    `json:"hrv,omitempty" yaml:"hrv,omitempty"`
	BodyBattery     BodyBattery `json:"body_battery" yaml:"body_battery"`
	Steps           *int        `json:"steps,omitempty" yaml:"steps,omitempty"`
	Hydration       *float64    `json:"hydration_ml,omitempty" yaml:"hydration_ml,omitempty"`
	RespirationRate *float64    `json:"respiration_rate,omitempty" yaml:"respiration_rate,omitempty"`
	SpO2            *float64    `json:"spo2,omitempty" yaml:"spo2,omitempty"`
	SyncedAt        time.Time   `json:"synced_at" yaml:"synced_at"`
}

// NewDailyMetric creates an empty metric record for date.
func NewDailyMetric(date string) *DailyMetric {
	return &DailyMetric{Date: date, SyncedAt: time.Now()}
}

// TotalSleepMinutes sums deep, light and REM sleep. ok is false when no
// stage was recorded.
func (m *DailyMetric) TotalSleepMinutes() (minutes int, ok bool) {
	for _, stage := range []*int{m.Sleep.Deep, m.Sleep.Light, m.Sleep.REM} {
		if stage != nil {
			minutes += *stage
			ok = true
		}
	}
	return minutes, ok
}

// DailyWeather is one day's weather summary at the home location.
type DailyWeather struct {
	Date           string    `json:"date" yaml:"date"`
	TempMin        *float64  `json:"temp_min,omitempty" yaml:"temp_min,omitempty"`
	TempMax        *float64  `json:"temp_max,omitempty" yaml:"temp_max,omitempty"`
	TempAvg        *float64  `json:"temp_avg,omitempty" yaml:"temp_avg,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty" yaml:"humidity,omitempty"`
	Pressure       *float64  `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	PressureChange *float64  `json:"pressure_change,omitempty" yaml:"pressure_change,omitempty"`
	Precipitation  *float64  `json:"precipitation,omitempty" yaml:"precipitation,omitempty"`
	WeatherCode    *int      `json:"weather_code,omitempty" yaml:"weather_code,omitempty"`
	CloudCover     *float64  `json:"cloud_cover,omitempty" yaml:"cloud_cover,omitempty"`
	WindSpeed      *float64  `json:"wind_speed,omitempty" yaml:"wind_speed,omitempty"`
	UVIndex        *float64  `json:"uv_index,omitempty" yaml:"uv_index,omitempty"`
	FetchedAt      time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// NewDailyWeather creates an empty weather record for date.
func NewDailyWeather(date string) *DailyWeather {
	return &DailyWeather{Date: date, FetchedAt: time.Now()}
}
