// ABOUTME: Correlation engine: loads episodes and daily records and runs the analyzers.
// ABOUTME: AnalyzeAll runs every analyzer concurrently and isolates failures per analyzer.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/models"
)

// Source is the read-only data the engine depends on.
type Source interface {
	ListEpisodes(limit int) ([]*models.Episode, error)
	ListDailyMetrics(from, to string) ([]*models.DailyMetric, error)
	ListDailyWeather(from, to string) ([]*models.DailyWeather, error)
}

// Engine runs correlation analyzers over a Source.
type Engine struct {
	src Source
	th  Thresholds
	log *zap.Logger
}

// NewEngine creates an engine using the given thresholds.
func NewEngine(src Source, th Thresholds) *Engine {
	return &Engine{src: src, th: th, log: logging.Named("analysis")}
}

// Thresholds returns the table the engine was built with.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

func (e *Engine) loadEpisodes(ctx context.Context) ([]*models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	episodes, err := e.src.ListEpisodes(0)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	return episodes, nil
}

func (e *Engine) loadMetrics(ctx context.Context, episodes []*models.Episode) (map[string]*models.DailyMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := episodeSpan(episodes)
	rows, err := e.src.ListDailyMetrics(from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	return indexMetrics(rows), nil
}

func (e *Engine) loadWeather(ctx context.Context, episodes []*models.Episode) (map[string]*models.DailyWeather, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := episodeSpan(episodes)
	rows, err := e.src.ListDailyWeather(from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily weather: %w", err)
	}
	return indexWeather(rows), nil
}

func runRule[T any](ctx context.Context, e *Engine, rule Rule[T],
	load func(context.Context, []*models.Episode) (map[string]T, error)) (*Finding, error) {
	episodes, err := e.loadEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(episodes) < e.th.MinSampleSize {
		return nil, nil
	}
	table, err := load(ctx, episodes)
	if err != nil {
		return nil, err
	}

	f, s := rule.Evaluate(episodes, table, e.th)
	e.log.Debug("analyzer sample",
		zap.String("analyzer", string(rule.Type)),
		zap.Int("usable", s.Usable),
		zap.Int("matched", s.Matched),
		zap.Int("missing", s.Missing),
		zap.Int("not_applicable", s.NotApplicable),
		zap.Bool("finding", f != nil),
	)
	return f, nil
}

// AnalyzeSleepCorrelation checks short sleep the night before onset.
func (e *Engine) AnalyzeSleepCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, sleepRule, e.loadMetrics)
}

// AnalyzeStressCorrelation checks high average stress on the onset day.
func (e *Engine) AnalyzeStressCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, stressRule, e.loadMetrics)
}

// AnalyzeHRVCorrelation checks low overnight HRV before onset.
func (e *Engine) AnalyzeHRVCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, hrvRule, e.loadMetrics)
}

// AnalyzeBodyBatteryCorrelation checks a drained body battery the day before onset.
func (e *Engine) AnalyzeBodyBatteryCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, bodyBatteryRule, e.loadMetrics)
}

// AnalyzePressureCorrelation checks falling barometric pressure on the onset day.
func (e *Engine) AnalyzePressureCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, pressureRule, e.loadWeather)
}

// AnalyzeTemperatureCorrelation checks heat on the onset day.
func (e *Engine) AnalyzeTemperatureCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, temperatureRule, e.loadWeather)
}

// AnalyzeHumidityCorrelation checks high humidity on the onset day.
func (e *Engine) AnalyzeHumidityCorrelation(ctx context.Context) (*Finding, error) {
	return runRule(ctx, e, humidityRule, e.loadWeather)
}

// bucketOrder fixes iteration order so ties are detected deterministically.
var bucketOrder = []Bucket{
	BucketThunderstorm, BucketRain, BucketDrizzle, BucketSnow, BucketFog, BucketCloudy, BucketClear,
}

func weatherBucket(w *models.DailyWeather) (Bucket, bool) {
	if w.WeatherCode == nil {
		return BucketUnknown, false
	}
	b := BucketFor(*w.WeatherCode)
	return b, b != BucketUnknown
}

// AnalyzeWeatherCodeCorrelation reports the weather bucket seen on the most
// episode days. A tie for first place yields no finding.
func (e *Engine) AnalyzeWeatherCodeCorrelation(ctx context.Context) (*Finding, error) {
	episodes, err := e.loadEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(episodes) < e.th.MinSampleSize {
		return nil, nil
	}
	table, err := e.loadWeather(ctx, episodes)
	if err != nil {
		return nil, err
	}

	var s Sample
	counts := make(map[Bucket]int)
	for _, ep := range episodes {
		rec, ok := Join(ep, table, SameDay)
		if !ok {
			s.Missing++
			continue
		}
		b, ok := weatherBucket(rec)
		if !ok {
			s.NotApplicable++
			continue
		}
		s.Usable++
		counts[b]++
	}
	if s.Usable < e.th.MinSampleSize {
		return nil, nil
	}

	winner, best, tied := BucketUnknown, 0, false
	for _, b := range bucketOrder {
		switch n := counts[b]; {
		case n > best:
			winner, best, tied = b, n, false
		case n == best && n > 0:
			tied = true
		}
	}
	e.log.Debug("weather buckets", zap.Any("counts", counts), zap.String("winner", string(winner)), zap.Bool("tied", tied))
	if tied || winner == BucketUnknown {
		return nil, nil
	}
	s.Matched = best

	pct := s.Percentage()
	f := &Finding{
		Type:        TypeWeather,
		Title:       winner.Label(),
		Description: fmt.Sprintf("%d%% deiner Episoden fielen auf Tage mit %s (%d von %d).", pct, winner.Label(), best, s.Usable),
		Percentage:  pct,
		SampleSize:  s.Usable,
		Excluded:    s.Excluded(),
		Condition:   string(winner),
	}
	withBaseline(f, s, table, func(w *models.DailyWeather) (bool, bool) {
		b, ok := weatherBucket(w)
		return b == winner, ok
	})
	return f, nil
}

// AnalyzeTriggerPatterns counts each trigger label once per episode and
// returns one finding per label seen in at least MinTriggerCount episodes,
// most frequent first.
func (e *Engine) AnalyzeTriggerPatterns(ctx context.Context) ([]Finding, error) {
	episodes, err := e.loadEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	findings := []Finding{}
	if len(episodes) < e.th.MinSampleSize {
		return findings, nil
	}

	type tally struct {
		key   string
		label string
		count int
	}
	byKey := make(map[string]*tally)
	for _, ep := range episodes {
		seen := make(map[string]bool)
		for _, raw := range ep.Triggers {
			key := models.NormalizeLabel(raw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			t, ok := byKey[key]
			if !ok {
				t = &tally{key: key, label: strings.Join(strings.Fields(raw), " ")}
				byKey[key] = t
			}
			t.count++
		}
	}

	var ranked []*tally
	for _, t := range byKey {
		if t.count >= e.th.MinTriggerCount {
			ranked = append(ranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})

	n := len(episodes)
	for _, t := range ranked {
		findings = append(findings, Finding{
			Type:        TypeTrigger,
			Title:       "Trigger: " + t.label,
			Description: fmt.Sprintf("%s trat bei %d von %d Episoden auf.", t.label, t.count, n),
			Percentage:  percent(t.count, n),
			SampleSize:  n,
			Condition:   t.key,
		})
	}
	return findings, nil
}

// AnalyzerFailure records an analyzer that returned an error or panicked.
type AnalyzerFailure struct {
	Analyzer string `json:"analyzer"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// Report is the combined result of every analyzer. An empty Findings list
// with no Failures means there is not enough data yet.
type Report struct {
	Findings []Finding         `json:"findings"`
	Failures []AnalyzerFailure `json:"failures,omitempty"`
}

// Err joins all analyzer failures, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Analyzer, f.Err))
	}
	return errors.Join(errs...)
}

type analyzer struct {
	name string
	run  func(context.Context) ([]Finding, error)
}

func single(fn func(context.Context) (*Finding, error)) func(context.Context) ([]Finding, error) {
	return func(ctx context.Context) ([]Finding, error) {
		f, err := fn(ctx)
		if err != nil || f == nil {
			return nil, err
		}
		return []Finding{*f}, nil
	}
}

// Analyzers lists the analyzer names in report order.
func (e *Engine) Analyzers() []string {
	list := e.analyzers()
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.name
	}
	return names
}

func (e *Engine) analyzers() []analyzer {
	return []analyzer{
		{string(TypeSleep), single(e.AnalyzeSleepCorrelation)},
		{string(TypeStress), single(e.AnalyzeStressCorrelation)},
		{string(TypeHRV), single(e.AnalyzeHRVCorrelation)},
		{string(TypeBodyBattery), single(e.AnalyzeBodyBatteryCorrelation)},
		{string(TypeTrigger), e.AnalyzeTriggerPatterns},
		{string(TypePressure), single(e.AnalyzePressureCorrelation)},
		{string(TypeTemperature), single(e.AnalyzeTemperatureCorrelation)},
		{string(TypeHumidity), single(e.AnalyzeHumidityCorrelation)},
		{string(TypeWeather), single(e.AnalyzeWeatherCodeCorrelation)},
	}
}

// AnalyzeAll runs every analyzer and flattens their findings in analyzer
// order. A failing analyzer is recorded in Report.Failures and does not
// affect the others. The returned error is non-nil only when ctx is done.
func (e *Engine) AnalyzeAll(ctx context.Context) (*Report, error) {
	list := e.analyzers()
	results := make([][]Finding, len(list))
	errs := make([]error, len(list))

	var g errgroup.Group
	g.SetLimit(4)
	for i, a := range list {
		g.Go(func() error {
			results[i], errs[i] = runIsolated(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Findings: []Finding{}}
	for i, a := range list {
		if errs[i] != nil {
			e.log.Warn("analyzer failed", zap.String("analyzer", a.name), zap.Error(errs[i]))
			report.Failures = append(report.Failures, AnalyzerFailure{
				Analyzer: a.name,
				Err:      errs[i],
				Message:  errs[i].Error(),
			})
			continue
		}
		report.Findings = append(report.Findings, results[i]...)
	}
	e.log.Info("analysis complete",
		zap.Int("findings", len(report.Findings)),
		zap.Int("failures", len(report.Failures)),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func runIsolated(ctx context.Context, a analyzer) (out []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return a.run(ctx)
}
