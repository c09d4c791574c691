// ABOUTME: Threshold classifiers over daily metric and weather fields.
// ABOUTME: Each returns whether the condition holds and whether the field was present.
package analysis

import (
	"github.com/harperreed/migraine/internal/models"
)

// IsLowSleep reports total sleep under the threshold.
func IsLowSleep(m *models.DailyMetric, th Thresholds) (match, applicable bool) {
	total, ok := m.TotalSleepMinutes()
	if !ok {
		return false, false
	}
	return total < th.LowSleepMinutes, true
}

// IsHighStress reports average stress at or above the threshold.
func IsHighStress(m *models.DailyMetric, th Thresholds) (match, applicable bool) {
	if m.StressAvg == nil {
		return false, false
	}
	return *m.StressAvg >= th.HighStress, true
}

// IsLowHRV reports overnight HRV under the threshold.
func IsLowHRV(m *models.DailyMetric, th Thresholds) (match, applicable bool) {
	if m.HRV == nil {
		return false, false
	}
	return *m.HRV < th.LowHRV, true
}

// IsLowBodyBattery reports a current body battery under the threshold.
func IsLowBodyBattery(m *models.DailyMetric, th Thresholds) (match, applicable bool) {
	if m.BodyBattery.Current == nil {
		return false, false
	}
	return *m.BodyBattery.Current < th.LowBodyBattery, true
}

// IsPressureDrop reports a day-over-day pressure fall at least as large as the threshold.
func IsPressureDrop(w *models.DailyWeather, th Thresholds) (match, applicable bool) {
	if w.PressureChange == nil {
		return false, false
	}
	return *w.PressureChange <= th.PressureDrop, true
}

// IsHeat reports a daily maximum above the threshold.
func IsHeat(w *models.DailyWeather, th Thresholds) (match, applicable bool) {
	if w.TempMax == nil {
		return false, false
	}
	return *w.TempMax > th.HeatMaxC, true
}

// IsHighHumidity reports relative humidity above the threshold.
func IsHighHumidity(w *models.DailyWeather, th Thresholds) (match, applicable bool) {
	if w.Humidity == nil {
		return false, false
	}
	return *w.Humidity > th.HighHumidity, true
}
