// ABOUTME: MCP tool implementations for migraine episodes, daily records and analysis.
// ABOUTME: Episode tools accept 8-character ID prefixes like the CLI.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/models"
	"github.com/harperreed/migraine/internal/storage"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_episode",
		Description: "Start a migraine episode with an initial intensity (1-10), optional triggers, medicines and symptoms",
	}, s.handleAddEpisode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_intensity",
		Description: "Record a new intensity reading for an ongoing episode",
	}, s.handleLogIntensity)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "close_episode",
		Description: "Mark an episode as ended",
	}, s.handleCloseEpisode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_episodes",
		Description: "List recent episodes, newest first",
	}, s.handleListEpisodes)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_episode",
		Description: "Get an episode with its full intensity history and stats",
	}, s.handleGetEpisode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_episode",
		Description: "Delete an episode by ID or ID prefix",
	}, s.handleDeleteEpisode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_daily_metric",
		Description: "Record wearable data for one day (sleep, stress, HRV, body battery). Only given fields are changed",
	}, s.handleRecordDailyMetric)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_weather",
		Description: "Record weather for one day (pressure, temperature, humidity, WMO weather code). Only given fields are changed",
	}, s.handleRecordWeather)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "analyze_correlations",
		Description: "Run every correlation analyzer and return findings sorted by percentage",
	}, s.handleAnalyzeCorrelations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "intensity_stats",
		Description: "Average, peak, trend and improvement rate for one episode",
	}, s.handleIntensityStats)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "typical_intensity_pattern",
		Description: "Average initial, peak and final intensity and time to peak across episodes",
	}, s.handleTypicalPattern)
}

// Tool input/output types

type addEpisodeInput struct {
	Intensity int      `json:"intensity" jsonschema:"Pain intensity from 1 to 10"`
	StartTime string   `json:"start_time,omitempty" jsonschema:"Start time (RFC 3339 or YYYY-MM-DD HH:MM), defaults to now"`
	Triggers  []string `json:"triggers,omitempty" jsonschema:"Suspected triggers such as red wine or bright light"`
	Medicines []string `json:"medicines,omitempty" jsonschema:"Medicines taken"`
	Symptoms  []string `json:"symptoms,omitempty" jsonschema:"Symptoms: nausea, vomiting, photophobia, phonophobia, aura, dizziness, neck_pain or free text"`
	Notes     string   `json:"notes,omitempty" jsonschema:"Optional notes"`
}

type episodeOutput struct {
	ID        string `json:"id"`
	Intensity int    `json:"intensity"`
	Message   string `json:"message"`
}

type logIntensityInput struct {
	ID        string `json:"id" jsonschema:"Episode ID or prefix"`
	Intensity int    `json:"intensity" jsonschema:"Pain intensity from 1 to 10"`
	At        string `json:"at,omitempty" jsonschema:"Time of the reading, defaults to now"`
	Note      string `json:"note,omitempty" jsonschema:"Optional note for this reading"`
}

type closeEpisodeInput struct {
	ID      string `json:"id" jsonschema:"Episode ID or prefix"`
	EndTime string `json:"end_time,omitempty" jsonschema:"End time, defaults to now"`
}

type listEpisodesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type idInput struct {
	ID string `json:"id" jsonschema:"Episode ID or prefix"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type emptyInput struct{}

type episodeSummary struct {
	ID              string     `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Ongoing         bool       `json:"ongoing"`
	DurationMinutes int        `json:"duration_minutes"`
	Intensity       int        `json:"intensity"`
	Peak            int        `json:"peak"`
	Triggers        []string   `json:"triggers,omitempty"`
	Medicines       []string   `json:"medicines,omitempty"`
	Symptoms        []string   `json:"symptoms,omitempty"`
}

type episodeDetail struct {
	Episode *models.Episode         `json:"episode"`
	Stats   analysis.IntensityStats `json:"stats"`
}

type dailyMetricInput struct {
	Date               string   `json:"date" jsonschema:"Day in YYYY-MM-DD"`
	SleepScore         *int     `json:"sleep_score,omitempty" jsonschema:"Sleep score 0-100"`
	SleepDeep          *int     `json:"sleep_deep,omitempty" jsonschema:"Deep sleep minutes"`
	SleepLight         *int     `json:"sleep_light,omitempty" jsonschema:"Light sleep minutes"`
	SleepREM           *int     `json:"sleep_rem,omitempty" jsonschema:"REM sleep minutes"`
	SleepAwake         *int     `json:"sleep_awake,omitempty" jsonschema:"Awake minutes during the night"`
	StressAvg          *int     `json:"stress_avg,omitempty" jsonschema:"Average stress 0-100"`
	StressMax          *int     `json:"stress_max,omitempty" jsonschema:"Maximum stress 0-100"`
	RestingHR          *int     `json:"resting_hr,omitempty" jsonschema:"Resting heart rate in bpm"`
	HRV                *float64 `json:"hrv,omitempty" jsonschema:"Overnight HRV in ms"`
	BodyBatteryCurrent *int     `json:"body_battery_current,omitempty" jsonschema:"Body battery level 0-100"`
	BodyBatteryCharged *int     `json:"body_battery_charged,omitempty" jsonschema:"Body battery charged during the day"`
	BodyBatteryDrained *int     `json:"body_battery_drained,omitempty" jsonschema:"Body battery drained during the day"`
	Steps              *int     `json:"steps,omitempty" jsonschema:"Step count"`
}

type weatherInput struct {
	Date           string   `json:"date" jsonschema:"Day in YYYY-MM-DD"`
	TempMin        *float64 `json:"temp_min,omitempty" jsonschema:"Minimum temperature in °C"`
	TempMax        *float64 `json:"temp_max,omitempty" jsonschema:"Maximum temperature in °C"`
	Humidity       *float64 `json:"humidity,omitempty" jsonschema:"Mean relative humidity in percent"`
	Pressure       *float64 `json:"pressure,omitempty" jsonschema:"Mean sea level pressure in hPa"`
	PressureChange *float64 `json:"pressure_change,omitempty" jsonschema:"Pressure change from the previous day in hPa"`
	Precipitation  *float64 `json:"precipitation,omitempty" jsonschema:"Precipitation in mm"`
	WeatherCode    *int     `json:"weather_code,omitempty" jsonschema:"WMO weather code"`
}

type dailyOutput struct {
	Date    string `json:"date"`
	Message string `json:"message"`
}

type correlationsOutput struct {
	Findings []analysis.Finding         `json:"findings"`
	Failures []analysis.AnalyzerFailure `json:"failures,omitempty"`
	Message  string                     `json:"message"`
}

// Tool handlers

func shortID(e *models.Episode) string {
	return e.ID.String()[:8]
}

func summarize(e *models.Episode, now time.Time) episodeSummary {
	st := analysis.CalculateIntensityStats(e.IntensityHistory)
	return episodeSummary{
		ID:              shortID(e),
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Ongoing:         e.IsOngoing(),
		DurationMinutes: int(e.Duration(now).Minutes()),
		Intensity:       e.Intensity,
		Peak:            st.Peak,
		Triggers:        e.Triggers,
		Medicines:       e.Medicines,
		Symptoms:        e.Symptoms.List(),
	}
}

func (s *Server) handleAddEpisode(ctx context.Context, req *mcp.CallToolRequest, input addEpisodeInput) (*mcp.CallToolResult, episodeOutput, error) {
	if !models.ValidIntensity(input.Intensity) {
		return nil, episodeOutput{}, fmt.Errorf("intensity must be between %d and %d", models.MinIntensity, models.MaxIntensity)
	}
	start, err := models.ParseTimestamp(input.StartTime, s.now(), time.Local)
	if err != nil {
		return nil, episodeOutput{}, err
	}

	e := models.NewEpisode(start, input.Intensity)
	for _, t := range input.Triggers {
		e.AddTrigger(t)
	}
	for _, m := range input.Medicines {
		e.AddMedicine(m)
	}
	for _, sym := range input.Symptoms {
		e.Symptoms.Set(sym)
	}
	if input.Notes != "" {
		e.WithNotes(input.Notes)
	}

	if err := s.repo.CreateEpisode(e); err != nil {
		return nil, episodeOutput{}, fmt.Errorf("failed to create episode: %w", err)
	}

	return nil, episodeOutput{
		ID:        shortID(e),
		Intensity: e.Intensity,
		Message:   fmt.Sprintf("Started episode at intensity %d (ID: %s)", e.Intensity, shortID(e)),
	}, nil
}

func (s *Server) handleLogIntensity(ctx context.Context, req *mcp.CallToolRequest, input logIntensityInput) (*mcp.CallToolResult, episodeOutput, error) {
	e, err := s.repo.GetEpisode(input.ID)
	if err != nil {
		return nil, episodeOutput{}, fmt.Errorf("get episode: %w", err)
	}
	at, err := models.ParseTimestamp(input.At, s.now(), time.Local)
	if err != nil {
		return nil, episodeOutput{}, err
	}
	if err := e.LogIntensity(at, input.Intensity, input.Note); err != nil {
		return nil, episodeOutput{}, fmt.Errorf("failed to log intensity: %w", err)
	}
	if err := s.repo.UpdateEpisode(e); err != nil {
		return nil, episodeOutput{}, fmt.Errorf("failed to update episode: %w", err)
	}

	return nil, episodeOutput{
		ID:        shortID(e),
		Intensity: e.Intensity,
		Message:   fmt.Sprintf("Logged intensity %d (%d readings)", input.Intensity, len(e.IntensityHistory)),
	}, nil
}

func (s *Server) handleCloseEpisode(ctx context.Context, req *mcp.CallToolRequest, input closeEpisodeInput) (*mcp.CallToolResult, episodeOutput, error) {
	e, err := s.repo.GetEpisode(input.ID)
	if err != nil {
		return nil, episodeOutput{}, fmt.Errorf("get episode: %w", err)
	}
	end, err := models.ParseTimestamp(input.EndTime, s.now(), time.Local)
	if err != nil {
		return nil, episodeOutput{}, err
	}
	if err := e.Close(end); err != nil {
		return nil, episodeOutput{}, fmt.Errorf("failed to close episode: %w", err)
	}
	if err := s.repo.UpdateEpisode(e); err != nil {
		return nil, episodeOutput{}, fmt.Errorf("failed to update episode: %w", err)
	}

	return nil, episodeOutput{
		ID:        shortID(e),
		Intensity: e.Intensity,
		Message:   fmt.Sprintf("Closed episode after %s", e.Duration(end).Round(time.Minute)),
	}, nil
}

func (s *Server) handleListEpisodes(ctx context.Context, req *mcp.CallToolRequest, input listEpisodesInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	episodes, err := s.repo.ListEpisodes(input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	if len(episodes) == 0 {
		return nil, map[string]interface{}{"message": "No episodes found."}, nil
	}

	now := s.now()
	out := make([]episodeSummary, len(episodes))
	for i, e := range episodes {
		out[i] = summarize(e, now)
	}
	return nil, map[string]interface{}{"episodes": out}, nil
}

func (s *Server) handleGetEpisode(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, any, error) {
	e, err := s.repo.GetEpisode(input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get episode: %w", err)
	}

	return nil, episodeDetail{
		Episode: e,
		Stats:   analysis.CalculateIntensityStats(e.IntensityHistory),
	}, nil
}

func (s *Server) handleDeleteEpisode(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.repo.DeleteEpisode(input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete episode: %w", err)
	}

	return nil, simpleOutput{
		Message: fmt.Sprintf("Deleted episode: %s", input.ID),
	}, nil
}

// set copies src into *dst when src is non-nil.
func set[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func (s *Server) handleRecordDailyMetric(ctx context.Context, req *mcp.CallToolRequest, input dailyMetricInput) (*mcp.CallToolResult, dailyOutput, error) {
	if _, err := models.ParseDateKey(input.Date); err != nil {
		return nil, dailyOutput{}, err
	}

	m, err := s.repo.GetDailyMetric(input.Date)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, dailyOutput{}, fmt.Errorf("failed to load metric: %w", err)
		}
		m = models.NewDailyMetric(input.Date)
	}

	set(&m.SleepScore, input.SleepScore)
	set(&m.Sleep.Deep, input.SleepDeep)
	set(&m.Sleep.Light, input.SleepLight)
	set(&m.Sleep.REM, input.SleepREM)
	set(&m.Sleep.Awake, input.SleepAwake)
	set(&m.StressAvg, input.StressAvg)
	set(&m.StressMax, input.StressMax)
	set(&m.RestingHR, input.RestingHR)
	set(&m.HRV, input.HRV)
	set(&m.BodyBattery.Current, input.BodyBatteryCurrent)
	set(&m.BodyBattery.Charged, input.BodyBatteryCharged)
	set(&m.BodyBattery.Drained, input.BodyBatteryDrained)
	set(&m.Steps, input.Steps)
	m.SyncedAt = s.now()

	if err := s.repo.UpsertDailyMetric(m); err != nil {
		return nil, dailyOutput{}, fmt.Errorf("failed to save metric: %w", err)
	}

	return nil, dailyOutput{
		Date:    m.Date,
		Message: fmt.Sprintf("Recorded daily metrics for %s", m.Date),
	}, nil
}

func (s *Server) handleRecordWeather(ctx context.Context, req *mcp.CallToolRequest, input weatherInput) (*mcp.CallToolResult, dailyOutput, error) {
	if _, err := models.ParseDateKey(input.Date); err != nil {
		return nil, dailyOutput{}, err
	}

	w, err := s.repo.GetDailyWeather(input.Date)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, dailyOutput{}, fmt.Errorf("failed to load weather: %w", err)
		}
		w = models.NewDailyWeather(input.Date)
	}

	set(&w.TempMin, input.TempMin)
	set(&w.TempMax, input.TempMax)
	set(&w.Humidity, input.Humidity)
	set(&w.Pressure, input.Pressure)
	set(&w.PressureChange, input.PressureChange)
	set(&w.Precipitation, input.Precipitation)
	set(&w.WeatherCode, input.WeatherCode)
	w.FetchedAt = s.now()

	if err := s.repo.UpsertDailyWeather(w); err != nil {
		return nil, dailyOutput{}, fmt.Errorf("failed to save weather: %w", err)
	}

	return nil, dailyOutput{
		Date:    w.Date,
		Message: fmt.Sprintf("Recorded weather for %s", w.Date),
	}, nil
}

func (s *Server) handleAnalyzeCorrelations(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, correlationsOutput, error) {
	report, err := s.engine.AnalyzeAll(ctx)
	if err != nil {
		return nil, correlationsOutput{}, err
	}
	analysis.SortByPercentage(report.Findings)

	out := correlationsOutput{Findings: report.Findings, Failures: report.Failures}
	switch {
	case len(report.Findings) > 0:
		out.Message = fmt.Sprintf("%d correlations found", len(report.Findings))
	case len(report.Failures) > 0:
		out.Message = "Analysis failed for some data sources"
	default:
		out.Message = "Not enough data yet"
	}
	return nil, out, nil
}

func (s *Server) handleIntensityStats(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, any, error) {
	e, err := s.repo.GetEpisode(input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get episode: %w", err)
	}
	return nil, analysis.CalculateIntensityStats(e.IntensityHistory), nil
}

func (s *Server) handleTypicalPattern(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, analysis.IntensityPatternSummary, error) {
	summary, err := s.engine.AnalyzeTypicalIntensityPattern(ctx)
	if err != nil {
		return nil, analysis.IntensityPatternSummary{}, err
	}
	return nil, *summary, nil
}
