// ABOUTME: Tests for the correlation analyzers and the AnalyzeAll facade.
// ABOUTME: Uses an in-memory fake source so each test controls the exact data.
package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/migraine/internal/models"
)

type fakeSource struct {
	episodes   []*models.Episode
	metrics    []*models.DailyMetric
	weather    []*models.DailyWeather
	episodeErr error
	metricErr  error
	weatherErr error
	panicOn    string
}

func (f *fakeSource) ListEpisodes(limit int) ([]*models.Episode, error) {
	return f.episodes, f.episodeErr
}

func (f *fakeSource) ListDailyMetrics(from, to string) ([]*models.DailyMetric, error) {
	if f.panicOn == "metrics" {
		panic("metrics exploded")
	}
	if f.metricErr != nil {
		return nil, f.metricErr
	}
	var out []*models.DailyMetric
	for _, m := range f.metrics {
		if m.Date >= from && m.Date <= to {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) ListDailyWeather(from, to string) ([]*models.DailyWeather, error) {
	if f.weatherErr != nil {
		return nil, f.weatherErr
	}
	var out []*models.DailyWeather
	for _, w := range f.weather {
		if w.Date >= from && w.Date <= to {
			out = append(out, w)
		}
	}
	return out, nil
}

// day returns 09:00 UTC on the given day of March 2024.
func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
}

func dateKey(d int) string {
	return models.DateKey(day(d))
}

// episodesOn creates one episode per given day.
func episodesOn(days ...int) []*models.Episode {
	out := make([]*models.Episode, 0, len(days))
	for _, d := range days {
		out = append(out, models.NewEpisode(day(d), 6))
	}
	return out
}

func stressMetric(d, stress int) *models.DailyMetric {
	m := models.NewDailyMetric(dateKey(d))
	m.StressAvg = models.Int(stress)
	return m
}

func sleepMetric(d, deep, light, rem int) *models.DailyMetric {
	m := models.NewDailyMetric(dateKey(d))
	m.Sleep.Deep = models.Int(deep)
	m.Sleep.Light = models.Int(light)
	m.Sleep.REM = models.Int(rem)
	return m
}

func pressureWeather(d int, change float64) *models.DailyWeather {
	w := models.NewDailyWeather(dateKey(d))
	w.PressureChange = models.Float(change)
	return w
}

func codeWeather(d, code int) *models.DailyWeather {
	w := models.NewDailyWeather(dateKey(d))
	w.WeatherCode = models.Int(code)
	return w
}

func newTestEngine(src Source) *Engine {
	return NewEngine(src, DefaultThresholds())
}

func TestAnalyzersReturnNilBelowMinimumSample(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{episodes: episodesOn(10, 11, 12, 13)}
	for _, d := range []int{9, 10, 11, 12, 13} {
		m := stressMetric(d, 90)
		m.Sleep.Deep = models.Int(10)
		m.Sleep.Light = models.Int(10)
		m.Sleep.REM = models.Int(10)
		m.HRV = models.Float(10)
		m.BodyBattery.Current = models.Int(5)
		src.metrics = append(src.metrics, m)

		w := codeWeather(d, 95)
		w.PressureChange = models.Float(-20)
		w.TempMax = models.Float(35)
		w.Humidity = models.Float(95)
		src.weather = append(src.weather, w)
	}
	for _, ep := range src.episodes {
		ep.AddTrigger("wine")
	}
	engine := newTestEngine(src)

	singles := map[string]func(context.Context) (*Finding, error){
		"sleep":       engine.AnalyzeSleepCorrelation,
		"stress":      engine.AnalyzeStressCorrelation,
		"hrv":         engine.AnalyzeHRVCorrelation,
		"bodyBattery": engine.AnalyzeBodyBatteryCorrelation,
		"pressure":    engine.AnalyzePressureCorrelation,
		"temperature": engine.AnalyzeTemperatureCorrelation,
		"humidity":    engine.AnalyzeHumidityCorrelation,
		"weather":     engine.AnalyzeWeatherCodeCorrelation,
	}
	for name, fn := range singles {
		t.Run(name, func(t *testing.T) {
			f, err := fn(ctx)
			require.NoError(t, err)
			assert.Nil(t, f)
		})
	}

	triggers, err := engine.AnalyzeTriggerPatterns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, triggers)
	assert.Empty(t, triggers)
}

func TestStressCorrelationAllQualifying(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 3, 5, 7, 9)}
	for _, d := range []int{1, 3, 5, 7, 9} {
		src.metrics = append(src.metrics, stressMetric(d, 70))
	}

	f, err := newTestEngine(src).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, TypeStress, f.Type)
	assert.Equal(t, 100, f.Percentage)
	assert.Equal(t, 5, f.SampleSize)
	assert.Equal(t, 0, f.Excluded)
	assert.Equal(t, "Hoher Stress", f.Title)
	assert.Contains(t, f.Description, "100%")
}

func TestStressUsesSameDay(t *testing.T) {
	// High stress only on the day before each episode.
	src := &fakeSource{episodes: episodesOn(2, 4, 6, 8, 10)}
	for _, d := range []int{2, 4, 6, 8, 10} {
		src.metrics = append(src.metrics, stressMetric(d-1, 90), stressMetric(d, 20))
	}

	f, err := newTestEngine(src).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestSleepUsesPriorDay(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(2, 4, 6, 8, 10)}
	for _, d := range []int{2, 4, 6, 8, 10} {
		// Short night before, long sleep on the episode day itself.
		src.metrics = append(src.metrics, sleepMetric(d-1, 60, 150, 60), sleepMetric(d, 120, 300, 100))
	}

	f, err := newTestEngine(src).AnalyzeSleepCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, TypeSleep, f.Type)
	assert.Equal(t, 100, f.Percentage)
	assert.Equal(t, "Schlafmangel", f.Title)
	assert.Contains(t, f.Description, "6 Stunden")
}

func TestMissingAndInapplicableRecordsLeaveDenominator(t *testing.T) {
	// Seven episodes: five with stress data (three high), one day without a
	// metric row, one row without a stress value.
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5, 6, 7)}
	src.metrics = []*models.DailyMetric{
		stressMetric(1, 80),
		stressMetric(2, 80),
		stressMetric(3, 80),
		stressMetric(4, 10),
		stressMetric(5, 10),
		models.NewDailyMetric(dateKey(7)),
	}

	th := DefaultThresholds()
	from, to := episodeSpan(src.episodes)
	rows, err := src.ListDailyMetrics(from, to)
	require.NoError(t, err)
	s := Measure(src.episodes, indexMetrics(rows), SameDay, IsHighStress, th)
	assert.Equal(t, Sample{Usable: 5, Matched: 3, Missing: 1, NotApplicable: 1}, s)
	assert.Equal(t, 2, s.Excluded())
	assert.Equal(t, 60, s.Percentage())

	f, err := NewEngine(src, th).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 60, f.Percentage)
	assert.Equal(t, 5, f.SampleSize)
	assert.Equal(t, 2, f.Excluded)
}

func TestSignificanceThresholdPerAnalyzer(t *testing.T) {
	// 3 of 5 is 60%: enough for stress (60) but not if the bar is raised.
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5)}
	src.metrics = []*models.DailyMetric{
		stressMetric(1, 80), stressMetric(2, 80), stressMetric(3, 80),
		stressMetric(4, 10), stressMetric(5, 10),
	}

	f, err := newTestEngine(src).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f)

	th := DefaultThresholds()
	th.Significance.Stress = 61
	f, err = NewEngine(src, th).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestSignificanceUsesExactRatio(t *testing.T) {
	th := DefaultThresholds()
	th.Significance.Stress = 50

	build := func(total, high int) *fakeSource {
		src := &fakeSource{}
		for i := 0; i < total; i++ {
			start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, i)
			src.episodes = append(src.episodes, models.NewEpisode(start, 6))
			m := models.NewDailyMetric(models.DateKey(start))
			m.StressAvg = models.Int(10)
			if i < high {
				m.StressAvg = models.Int(80)
			}
			src.metrics = append(src.metrics, m)
		}
		return src
	}

	// 50 of 101 rounds to 50% but is below it.
	f, err := NewEngine(build(101, 50), th).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = NewEngine(build(100, 50), th).AnalyzeStressCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 50, f.Percentage)
	assert.Equal(t, 100, f.SampleSize)
}

func TestThresholdAnalyzersProduceFindings(t *testing.T) {
	metric := func(set func(m *models.DailyMetric, match bool)) func(d int, match bool) *models.DailyMetric {
		return func(d int, match bool) *models.DailyMetric {
			m := models.NewDailyMetric(dateKey(d))
			set(m, match)
			return m
		}
	}
	weather := func(set func(w *models.DailyWeather, match bool)) func(d int, match bool) *models.DailyWeather {
		return func(d int, match bool) *models.DailyWeather {
			w := models.NewDailyWeather(dateKey(d))
			set(w, match)
			return w
		}
	}
	pick := func(match bool, yes, no int) int {
		if match {
			return yes
		}
		return no
	}
	pickF := func(match bool, yes, no float64) float64 {
		if match {
			return yes
		}
		return no
	}

	tests := []struct {
		name    string
		analyze func(e *Engine) func(context.Context) (*Finding, error)
		offset  int
		metric  func(d int, match bool) *models.DailyMetric
		weather func(d int, match bool) *models.DailyWeather
		sig     func(s *Significance) *int
		typ     FindingType
		title   string
		desc    string
	}{
		{
			name:    "sleep",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeSleepCorrelation },
			offset:  PriorDay,
			metric: metric(func(m *models.DailyMetric, match bool) {
				m.Sleep.Deep = models.Int(60)
				m.Sleep.Light = models.Int(pick(match, 200, 400))
				m.Sleep.REM = models.Int(60)
			}),
			sig:   func(s *Significance) *int { return &s.Sleep },
			typ:   TypeSleep,
			title: "Schlafmangel",
			desc:  "Bei 60% deiner Episoden hast du in der Nacht davor weniger als 6 Stunden geschlafen.",
		},
		{
			name:    "stress",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeStressCorrelation },
			offset:  SameDay,
			metric: metric(func(m *models.DailyMetric, match bool) {
				m.StressAvg = models.Int(pick(match, 80, 20))
			}),
			sig:   func(s *Significance) *int { return &s.Stress },
			typ:   TypeStress,
			title: "Hoher Stress",
			desc:  "Bei 60% deiner Episoden lag dein durchschnittlicher Stress am selben Tag bei 65 oder höher.",
		},
		{
			name:    "hrv",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeHRVCorrelation },
			offset:  PriorDay,
			metric: metric(func(m *models.DailyMetric, match bool) {
				m.HRV = models.Float(pickF(match, 20, 55))
			}),
			sig:   func(s *Significance) *int { return &s.HRV },
			typ:   TypeHRV,
			title: "Niedrige HRV",
			desc:  "Bei 60% deiner Episoden lag deine HRV in der Nacht davor unter 30 ms.",
		},
		{
			name:    "body battery",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeBodyBatteryCorrelation },
			offset:  PriorDay,
			metric: metric(func(m *models.DailyMetric, match bool) {
				m.BodyBattery.Current = models.Int(pick(match, 15, 70))
			}),
			sig:   func(s *Significance) *int { return &s.BodyBattery },
			typ:   TypeBodyBattery,
			title: "Niedrige Body Battery",
			desc:  "Bei 60% deiner Episoden lag deine Body Battery am Vortag unter 30.",
		},
		{
			name:    "pressure",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzePressureCorrelation },
			offset:  SameDay,
			weather: weather(func(w *models.DailyWeather, match bool) {
				w.PressureChange = models.Float(pickF(match, -12, 2))
			}),
			sig:   func(s *Significance) *int { return &s.Pressure },
			typ:   TypePressure,
			title: "Luftdruckabfall",
			desc:  "Bei 60% deiner Episoden fiel der Luftdruck um mindestens 10 hPa.",
		},
		{
			name:    "temperature",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeTemperatureCorrelation },
			offset:  SameDay,
			weather: weather(func(w *models.DailyWeather, match bool) {
				w.TempMax = models.Float(pickF(match, 33, 18))
			}),
			sig:   func(s *Significance) *int { return &s.Temperature },
			typ:   TypeTemperature,
			title: "Hitze",
			desc:  "Bei 60% deiner Episoden stieg die Temperatur über 30 °C.",
		},
		{
			name:    "humidity",
			analyze: func(e *Engine) func(context.Context) (*Finding, error) { return e.AnalyzeHumidityCorrelation },
			offset:  SameDay,
			weather: weather(func(w *models.DailyWeather, match bool) {
				w.Humidity = models.Float(pickF(match, 92, 50))
			}),
			sig:   func(s *Significance) *int { return &s.Humidity },
			typ:   TypeHumidity,
			title: "Hohe Luftfeuchtigkeit",
			desc:  "Bei 60% deiner Episoden lag die Luftfeuchtigkeit über 85%.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Episodes two days apart so onset days and prior days never overlap.
			// The joined day matches for three of five episodes; the other day
			// never matches, so a wrong offset finds nothing.
			src := &fakeSource{episodes: episodesOn(2, 4, 6, 8, 10)}
			for i, ep := range []int{2, 4, 6, 8, 10} {
				joined, other := ep-tt.offset, ep-(1-tt.offset)
				if tt.metric != nil {
					src.metrics = append(src.metrics, tt.metric(joined, i < 3), tt.metric(other, false))
				}
				if tt.weather != nil {
					src.weather = append(src.weather, tt.weather(joined, i < 3), tt.weather(other, false))
				}
			}
			ctx := context.Background()

			// Every other analyzer's bar is raised to 100; only this one's counts.
			th := DefaultThresholds()
			own := *tt.sig(&th.Significance)
			th.Significance = Significance{100, 100, 100, 100, 100, 100, 100}
			*tt.sig(&th.Significance) = own

			f, err := tt.analyze(NewEngine(src, th))(ctx)
			require.NoError(t, err)
			require.NotNil(t, f)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.title, f.Title)
			assert.Equal(t, 60, f.Percentage)
			assert.Equal(t, 5, f.SampleSize)
			assert.Equal(t, 0, f.Excluded)
			assert.Equal(t, tt.desc, f.Description)

			*tt.sig(&th.Significance) = 61
			f, err = tt.analyze(NewEngine(src, th))(ctx)
			require.NoError(t, err)
			assert.Nil(t, f)
		})
	}
}

func TestPressureNilWithoutWeather(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5, 6)}

	f, err := newTestEngine(src).AnalyzePressureCorrelation(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPressureDropFinding(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5)}
	src.weather = []*models.DailyWeather{
		pressureWeather(1, -12),
		pressureWeather(2, -10),
		pressureWeather(3, -15),
		pressureWeather(4, 2),
		pressureWeather(5, -3),
	}

	f, err := newTestEngine(src).AnalyzePressureCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, TypePressure, f.Type)
	assert.Equal(t, "Luftdruckabfall", f.Title)
	assert.Equal(t, 60, f.Percentage)
	assert.Contains(t, f.Description, "10 hPa")
}

func TestBaselineAndPValue(t *testing.T) {
	// Episodes on odd days all have a pressure drop; even days never do.
	src := &fakeSource{episodes: episodesOn(1, 3, 5, 7, 9)}
	for d := 1; d <= 10; d++ {
		change := 1.0
		if d%2 == 1 {
			change = -12
		}
		src.weather = append(src.weather, pressureWeather(d, change))
	}

	f, err := newTestEngine(src).AnalyzePressureCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	require.NotNil(t, f.Baseline)
	require.NotNil(t, f.PValue)
	// Span covers Feb 29 (no row) through Mar 9: 9 rows, 5 drops.
	assert.Equal(t, 56, *f.Baseline)
	assert.InDelta(t, 0.0529, *f.PValue, 0.001)
}

func TestBinomialPValueEdges(t *testing.T) {
	assert.Equal(t, 1.0, binomialPValue(0, 5, 0.3))
	assert.Equal(t, 0.0, binomialPValue(3, 5, 0))
	assert.Equal(t, 1.0, binomialPValue(3, 5, 1))
	assert.InDelta(t, 1.0/32, binomialPValue(5, 5, 0.5), 1e-9)
}

func TestWeatherCodePlurality(t *testing.T) {
	days := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	src := &fakeSource{episodes: episodesOn(days...)}
	for _, d := range days {
		code := 95
		if d > 7 {
			code = 63
		}
		src.weather = append(src.weather, codeWeather(d, code))
	}

	f, err := newTestEngine(src).AnalyzeWeatherCodeCorrelation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, TypeWeather, f.Type)
	assert.Equal(t, "Gewitter", f.Title)
	assert.Equal(t, string(BucketThunderstorm), f.Condition)
	assert.Equal(t, 70, f.Percentage)
	assert.Equal(t, 10, f.SampleSize)
}

func TestWeatherCodeTieReturnsNil(t *testing.T) {
	days := []int{1, 2, 3, 4, 5, 6}
	src := &fakeSource{episodes: episodesOn(days...)}
	for _, d := range days {
		code := 0
		if d%2 == 0 {
			code = 61
		}
		src.weather = append(src.weather, codeWeather(d, code))
	}

	f, err := newTestEngine(src).AnalyzeWeatherCodeCorrelation(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestTriggerPatterns(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5, 6)}
	labels := [][]string{
		{"Red Wine", "stress"},
		{"red wine", "Stress"},
		{"red  wine", "stress", "stress"},
		{"Red Wine", "cheese"},
		{"cheese"},
		{},
	}
	for i, ep := range src.episodes {
		ep.Triggers = labels[i]
	}

	findings, err := newTestEngine(src).AnalyzeTriggerPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, TypeTrigger, findings[0].Type)
	assert.Equal(t, "red wine", findings[0].Condition)
	assert.Equal(t, "Trigger: Red Wine", findings[0].Title)
	assert.Equal(t, 67, findings[0].Percentage)
	assert.Equal(t, 6, findings[0].SampleSize)

	assert.Equal(t, "stress", findings[1].Condition)
	assert.Equal(t, 50, findings[1].Percentage)

	for _, f := range findings {
		assert.NotEqual(t, "cheese", f.Condition)
	}
}

func TestAnalyzeAllIncludesTriggerFinding(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5)}
	for i, ep := range src.episodes {
		if i < 3 {
			ep.AddTrigger("bright light")
		}
		ep.AddTrigger("noise " + string(rune('a'+i)))
	}
	for _, d := range []int{1, 2, 3, 4, 5} {
		src.metrics = append(src.metrics, stressMetric(d, 80))
	}

	report, err := newTestEngine(src).AnalyzeAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.NoError(t, report.Err())

	var types []FindingType
	for _, f := range report.Findings {
		types = append(types, f.Type)
	}
	assert.Equal(t, []FindingType{TypeStress, TypeTrigger}, types)
}

func TestAnalyzeAllIsolatesFailures(t *testing.T) {
	src := &fakeSource{
		episodes:  episodesOn(1, 2, 3, 4, 5),
		metricErr: errors.New("metrics store offline"),
	}
	for _, d := range []int{1, 2, 3, 4, 5} {
		src.weather = append(src.weather, pressureWeather(d, -20))
	}

	report, err := newTestEngine(src).AnalyzeAll(context.Background())
	require.NoError(t, err)

	failed := map[string]bool{}
	for _, f := range report.Failures {
		failed[f.Analyzer] = true
		assert.Contains(t, f.Message, "metrics store offline")
	}
	assert.Equal(t, map[string]bool{"sleep": true, "stress": true, "hrv": true, "bodyBattery": true}, failed)
	assert.Error(t, report.Err())

	require.Len(t, report.Findings, 1)
	assert.Equal(t, TypePressure, report.Findings[0].Type)
}

func TestAnalyzeAllRecoversPanics(t *testing.T) {
	src := &fakeSource{episodes: episodesOn(1, 2, 3, 4, 5), panicOn: "metrics"}

	report, err := newTestEngine(src).AnalyzeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 4)
	assert.Contains(t, report.Failures[0].Message, "panic")
}

func TestAnalyzeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestEngine(&fakeSource{}).AnalyzeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Len(t, report.Failures, len(newTestEngine(&fakeSource{}).Analyzers()))
}

func TestAnalyzeAllNoData(t *testing.T) {
	report, err := newTestEngine(&fakeSource{}).AnalyzeAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report.Findings)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.Failures)
}

func TestSortByPercentage(t *testing.T) {
	findings := []Finding{
		{Type: TypeSleep, Percentage: 50},
		{Type: TypeStress, Percentage: 80},
		{Type: TypeHRV, Percentage: 50},
	}
	SortByPercentage(findings)
	assert.Equal(t, TypeStress, findings[0].Type)
	assert.Equal(t, TypeSleep, findings[1].Type)
	assert.Equal(t, TypeHRV, findings[2].Type)
}
