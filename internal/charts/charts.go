// ABOUTME: Interactive HTML charts for intensity histories, findings and episode frequency.
// ABOUTME: Rendered with go-echarts to any io.Writer.
package charts

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/models"
)

// Config holds shared chart settings.
type Config struct {
	Width  string
	Height string
	Theme  string
}

// DefaultConfig returns the standard chart size and theme.
func DefaultConfig() Config {
	return Config{Width: "900px", Height: "500px", Theme: "light"}
}

func (c Config) global(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:     c.Width,
			Height:    c.Height,
			Theme:     c.Theme,
			PageTitle: title,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
	}
}

// IntensityLine renders an episode's intensity history.
func IntensityLine(w io.Writer, e *models.Episode, cfg Config) error {
	if len(e.IntensityHistory) == 0 {
		return fmt.Errorf("episode %s has no intensity history", e.ID)
	}
	history := append([]models.IntensityEntry(nil), e.IntensityHistory...)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	layout := "15:04"
	if models.DateKey(history[0].Timestamp) != models.DateKey(history[len(history)-1].Timestamp) {
		layout = "Jan 02 15:04"
	}
	labels := make([]string, len(history))
	points := make([]opts.LineData, len(history))
	for i, h := range history {
		labels[i] = h.Timestamp.Format(layout)
		points[i] = opts.LineData{Value: h.Intensity, Name: h.Note}
	}

	st := analysis.CalculateIntensityStats(history)
	subtitle := fmt.Sprintf("%s · peak %d · avg %.1f · %s",
		e.StartTime.Format("2006-01-02 15:04"), st.Peak, st.Average, st.Trend)

	line := charts.NewLine()
	line.SetGlobalOptions(append(cfg.global("Intensity", subtitle),
		charts.WithYAxisOpts(opts.YAxis{Name: "Intensity", Min: models.MinIntensity, Max: models.MaxIntensity}),
	)...)
	line.SetXAxis(labels).
		AddSeries("Intensity", points).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
		)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render intensity chart: %w", err)
	}
	return nil
}

// FindingsBar renders finding percentages next to their baselines.
func FindingsBar(w io.Writer, findings []analysis.Finding, cfg Config) error {
	if len(findings) == 0 {
		return fmt.Errorf("no findings to chart")
	}
	labels := make([]string, len(findings))
	pcts := make([]opts.BarData, len(findings))
	baselines := make([]opts.BarData, len(findings))
	for i, f := range findings {
		labels[i] = f.Title
		pcts[i] = opts.BarData{Value: f.Percentage}
		if f.Baseline != nil {
			baselines[i] = opts.BarData{Value: *f.Baseline}
		} else {
			baselines[i] = opts.BarData{Value: "-"}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(cfg.global("Correlations", "share of episodes vs. all days"),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
	)...)
	bar.SetXAxis(labels).
		AddSeries("Episodes", pcts).
		AddSeries("Baseline", baselines)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render findings chart: %w", err)
	}
	return nil
}

// MonthlyFrequency renders episode counts per calendar month, including
// months with no episodes between the first and last.
func MonthlyFrequency(w io.Writer, episodes []*models.Episode, cfg Config) error {
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes to chart")
	}
	counts := make(map[string]int)
	first, last := episodes[0].StartTime, episodes[0].StartTime
	for _, e := range episodes {
		counts[e.StartTime.Format("2006-01")]++
		if e.StartTime.Before(first) {
			first = e.StartTime
		}
		if e.StartTime.After(last) {
			last = e.StartTime
		}
	}

	var labels []string
	var data []opts.BarData
	month := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		key := month.Format("2006-01")
		labels = append(labels, key)
		data = append(data, opts.BarData{Value: counts[key]})
		month = month.AddDate(0, 1, 0)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(cfg.global("Episodes per month", fmt.Sprintf("%d episodes", len(episodes)))...)
	bar.SetXAxis(labels).AddSeries("Episodes", data)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render frequency chart: %w", err)
	}
	return nil
}
