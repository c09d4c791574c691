// ABOUTME: Metric joiner pairing episodes with daily records by date key.
// ABOUTME: Offset 1 reads the prior calendar day, offset 0 the onset day.
package analysis

import (
	"github.com/harperreed/migraine/internal/models"
)

// Join offsets by signal.
const (
	SameDay  = 0
	PriorDay = 1
)

// Join returns the record for the episode's onset day shifted back by
// offsetDays. ok is false when the table has no row for that day.
func Join[T any](e *models.Episode, table map[string]T, offsetDays int) (rec T, ok bool) {
	rec, ok = table[models.ShiftDateKey(e.DateKey(), -offsetDays)]
	return rec, ok
}

// episodeSpan returns the date range that covers every episode and the day
// before the earliest one.
func episodeSpan(episodes []*models.Episode) (from, to string) {
	for _, e := range episodes {
		key := e.DateKey()
		if from == "" || key < from {
			from = key
		}
		if key > to {
			to = key
		}
	}
	if from == "" {
		return "", ""
	}
	return models.ShiftDateKey(from, -PriorDay), to
}

func indexMetrics(rows []*models.DailyMetric) map[string]*models.DailyMetric {
	table := make(map[string]*models.DailyMetric, len(rows))
	for _, m := range rows {
		table[m.Date] = m
	}
	return table
}

func indexWeather(rows []*models.DailyWeather) map[string]*models.DailyWeather {
	table := make(map[string]*models.DailyWeather, len(rows))
	for _, w := range rows {
		table[w.Date] = w
	}
	return table
}
