// ABOUTME: Intensity-pattern aggregation over one episode's history and across episodes.
// ABOUTME: Trend and improvement rate compare the first and last samples by time.
package analysis

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/harperreed/migraine/internal/models"
)

// Trend is the direction of an episode's intensity.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// IntensityStats summarizes one intensity history.
type IntensityStats struct {
	Average         float64    `json:"average"`
	Peak            int        `json:"peak"`
	Current         int        `json:"current"`
	Trend           Trend      `json:"trend"`
	PeakTime        *time.Time `json:"peak_time"`
	ImprovementRate float64    `json:"improvement_rate"`
	Samples         int        `json:"samples"`
}

// IntensityPatternSummary describes a typical episode.
type IntensityPatternSummary struct {
	AvgInitial               float64 `json:"avg_initial"`
	AvgPeak                  float64 `json:"avg_peak"`
	AvgFinal                 float64 `json:"avg_final"`
	AvgDurationToPeakMinutes float64 `json:"avg_duration_to_peak_minutes"`
	AvgImprovementRate       float64 `json:"avg_improvement_rate"`
	EpisodesWithHistory      int     `json:"episodes_with_history"`
	EpisodesAnalyzed         int     `json:"episodes_analyzed"`
}

func sortedHistory(history []models.IntensityEntry) []models.IntensityEntry {
	sorted := slices.Clone(history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// CalculateIntensityStats summarizes a history. The input is not modified.
func CalculateIntensityStats(history []models.IntensityEntry) IntensityStats {
	if len(history) == 0 {
		return IntensityStats{Trend: TrendStable}
	}
	sorted := sortedHistory(history)

	values := make(stats.Float64Data, len(sorted))
	for i, h := range sorted {
		values[i] = float64(h.Intensity)
	}
	avg, _ := stats.Mean(values)
	peak, _ := stats.Max(values)

	first := sorted[0].Intensity
	last := sorted[len(sorted)-1].Intensity

	st := IntensityStats{
		Average:         avg,
		Peak:            int(peak),
		Current:         last,
		Trend:           TrendStable,
		ImprovementRate: improvementRate(first, last),
		Samples:         len(sorted),
	}
	switch {
	case last < first:
		st.Trend = TrendImproving
	case last > first:
		st.Trend = TrendWorsening
	}
	for _, h := range sorted {
		if h.Intensity == st.Peak {
			at := h.Timestamp
			st.PeakTime = &at
			break
		}
	}
	return st
}

func improvementRate(first, last int) float64 {
	if first == 0 {
		return 0
	}
	return 100 * float64(first-last) / float64(first)
}

// AnalyzeTypicalIntensityPattern averages initial, peak and final
// intensity over all episodes. Time to peak and improvement rate are
// averaged over episodes with more than one sample only.
func (e *Engine) AnalyzeTypicalIntensityPattern(ctx context.Context) (*IntensityPatternSummary, error) {
	episodes, err := e.loadEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	summary := &IntensityPatternSummary{}
	if len(episodes) == 0 {
		return summary, nil
	}

	var initial, peak, final, toPeak, rates stats.Float64Data
	for _, ep := range episodes {
		history := ep.IntensityHistory
		if len(history) == 0 {
			history = []models.IntensityEntry{{Timestamp: ep.StartTime, Intensity: ep.Intensity}}
		}
		st := CalculateIntensityStats(history)
		sorted := sortedHistory(history)
		initial = append(initial, float64(sorted[0].Intensity))
		peak = append(peak, float64(st.Peak))
		final = append(final, float64(st.Current))

		if len(sorted) > 1 {
			toPeak = append(toPeak, st.PeakTime.Sub(sorted[0].Timestamp).Minutes())
			rates = append(rates, st.ImprovementRate)
		}
	}

	summary.EpisodesAnalyzed = len(episodes)
	summary.EpisodesWithHistory = len(toPeak)
	summary.AvgInitial = mean(initial)
	summary.AvgPeak = mean(peak)
	summary.AvgFinal = mean(final)
	summary.AvgDurationToPeakMinutes = mean(toPeak)
	summary.AvgImprovementRate = mean(rates)

	e.log.Debug("typical intensity pattern",
		zap.Int("episodes", summary.EpisodesAnalyzed),
		zap.Int("with_history", summary.EpisodesWithHistory),
	)
	return summary, nil
}

// mean is 0 for empty input.
func mean(data stats.Float64Data) float64 {
	if len(data) == 0 {
		return 0
	}
	m, _ := stats.Mean(data)
	return m
}
