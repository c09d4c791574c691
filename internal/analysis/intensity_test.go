// ABOUTME: Tests for per-episode intensity stats and the typical-pattern summary.
// ABOUTME: Covers trend direction, improvement rate edges and peak timing.
package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/migraine/internal/models"
)

func history(start time.Time, step time.Duration, values ...int) []models.IntensityEntry {
	out := make([]models.IntensityEntry, len(values))
	for i, v := range values {
		out[i] = models.IntensityEntry{Timestamp: start.Add(time.Duration(i) * step), Intensity: v}
	}
	return out
}

func TestCalculateIntensityStatsEmpty(t *testing.T) {
	st := CalculateIntensityStats(nil)
	assert.Equal(t, IntensityStats{Trend: TrendStable}, st)
	assert.Nil(t, st.PeakTime)
}

func TestCalculateIntensityStats(t *testing.T) {
	start := day(1)
	tests := []struct {
		name      string
		values    []int
		average   float64
		peak      int
		current   int
		trend     Trend
		rate      float64
		peakIndex int
	}{
		{"mean", []int{2, 4, 6, 8}, 5, 8, 8, TrendWorsening, -300, 3},
		{"decreasing", []int{9, 7, 4, 2}, 5.5, 9, 2, TrendImproving, 100 * 7.0 / 9, 0},
		{"increasing", []int{1, 3, 5}, 3, 5, 5, TrendWorsening, -400, 2},
		{"equal ends", []int{5, 9, 5}, 19.0 / 3, 9, 5, TrendStable, 0, 1},
		{"halved", []int{10, 5}, 7.5, 10, 5, TrendImproving, 50, 0},
		{"doubled", []int{5, 10}, 7.5, 10, 10, TrendWorsening, -100, 1},
		{"zero start", []int{0, 4}, 2, 4, 4, TrendWorsening, 0, 1},
		{"tied peak", []int{3, 8, 6, 8}, 6.25, 8, 8, TrendWorsening, -100 * 5.0 / 3, 1},
		{"single", []int{6}, 6, 6, 6, TrendStable, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := history(start, 30*time.Minute, tt.values...)
			st := CalculateIntensityStats(h)

			assert.InDelta(t, tt.average, st.Average, 1e-9)
			assert.Equal(t, tt.peak, st.Peak)
			assert.Equal(t, tt.current, st.Current)
			assert.Equal(t, tt.trend, st.Trend)
			assert.InDelta(t, tt.rate, st.ImprovementRate, 1e-9)
			assert.Equal(t, len(tt.values), st.Samples)
			require.NotNil(t, st.PeakTime)
			assert.True(t, st.PeakTime.Equal(h[tt.peakIndex].Timestamp))
		})
	}
}

func TestCalculateIntensityStatsSortsByTime(t *testing.T) {
	start := day(1)
	h := []models.IntensityEntry{
		{Timestamp: start.Add(2 * time.Hour), Intensity: 3},
		{Timestamp: start, Intensity: 8},
		{Timestamp: start.Add(time.Hour), Intensity: 5},
	}
	st := CalculateIntensityStats(h)

	assert.Equal(t, 3, st.Current)
	assert.Equal(t, TrendImproving, st.Trend)
	assert.InDelta(t, 62.5, st.ImprovementRate, 1e-9)
	// Input order untouched.
	assert.Equal(t, 3, h[0].Intensity)
}

func TestAnalyzeTypicalIntensityPattern(t *testing.T) {
	a := models.NewEpisode(day(1), 4)
	require.NoError(t, a.LogIntensity(day(1).Add(time.Hour), 8, ""))
	require.NoError(t, a.LogIntensity(day(1).Add(3*time.Hour), 2, ""))

	b := models.NewEpisode(day(5), 6)
	require.NoError(t, b.LogIntensity(day(5).Add(30*time.Minute), 9, ""))
	require.NoError(t, b.LogIntensity(day(5).Add(2*time.Hour), 3, ""))

	// Single sample: counts for initial/peak/final only.
	c := models.NewEpisode(day(9), 5)

	engine := newTestEngine(&fakeSource{episodes: []*models.Episode{a, b, c}})
	summary, err := engine.AnalyzeTypicalIntensityPattern(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.EpisodesAnalyzed)
	assert.Equal(t, 2, summary.EpisodesWithHistory)
	assert.InDelta(t, 5.0, summary.AvgInitial, 1e-9)
	assert.InDelta(t, 22.0/3, summary.AvgPeak, 1e-9)
	assert.InDelta(t, 10.0/3, summary.AvgFinal, 1e-9)
	assert.InDelta(t, 45.0, summary.AvgDurationToPeakMinutes, 1e-9)
	assert.InDelta(t, 50.0, summary.AvgImprovementRate, 1e-9)
}

func TestAnalyzeTypicalIntensityPatternEmpty(t *testing.T) {
	summary, err := newTestEngine(&fakeSource{}).AnalyzeTypicalIntensityPattern(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &IntensityPatternSummary{}, summary)
}
