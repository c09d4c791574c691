// ABOUTME: Export and import functionality for migraine data.
// ABOUTME: Supports JSON, YAML, Markdown and XLSX export formats over any Repository.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/migraine/internal/models"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format for migraine data.
type ExportData struct {
	Version      string                 `json:"version" yaml:"version"`
	ExportedAt   time.Time              `json:"exported_at" yaml:"exported_at"`
	Tool         string                 `json:"tool" yaml:"tool"`
	Episodes     []*models.Episode      `json:"episodes" yaml:"episodes"`
	Archived     []*models.Episode      `json:"archived,omitempty" yaml:"archived,omitempty"`
	DailyMetrics []*models.DailyMetric  `json:"daily_metrics" yaml:"daily_metrics"`
	DailyWeather []*models.DailyWeather `json:"daily_weather" yaml:"daily_weather"`
}

// GetAllData retrieves all data for export.
func (d *DB) GetAllData() (*ExportData, error) { return collectAll(d) }

// ImportData imports data from an export file.
func (d *DB) ImportData(data *ExportData) error { return importAll(d, data) }

// GetAllData retrieves all data for export.
func (s *KVStore) GetAllData() (*ExportData, error) { return collectAll(s) }

// ImportData imports data from an export file.
func (s *KVStore) ImportData(data *ExportData) error { return importAll(s, data) }

func collectAll(r Repository) (*ExportData, error) {
	episodes, err := r.ListEpisodes(0)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	archived, err := r.ListArchivedEpisodes()
	if err != nil {
		return nil, fmt.Errorf("list archived episodes: %w", err)
	}
	metrics, err := r.ListDailyMetrics("", "")
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	weather, err := r.ListDailyWeather("", "")
	if err != nil {
		return nil, fmt.Errorf("list daily weather: %w", err)
	}

	return &ExportData{
		Version:      "1.0",
		ExportedAt:   time.Now(),
		Tool:         "migraine",
		Episodes:     episodes,
		Archived:     archived,
		DailyMetrics: metrics,
		DailyWeather: weather,
	}, nil
}

// importAll writes every record into r. Archived episodes are created and
// then archived again with a cutoff just after the newest of them.
func importAll(r Repository, data *ExportData) error {
	for _, e := range data.Episodes {
		if err := r.CreateEpisode(e); err != nil {
			return fmt.Errorf("import episode: %w", err)
		}
	}

	var cutoff time.Time
	for _, e := range data.Archived {
		if err := r.CreateEpisode(e); err != nil {
			return fmt.Errorf("import archived episode: %w", err)
		}
		if e.StartTime.After(cutoff) {
			cutoff = e.StartTime
		}
	}
	if len(data.Archived) > 0 {
		if _, err := r.ArchiveEpisodes(cutoff.Add(time.Nanosecond)); err != nil {
			return fmt.Errorf("import archived episodes: %w", err)
		}
	}

	for _, m := range data.DailyMetrics {
		if err := r.UpsertDailyMetric(m); err != nil {
			return fmt.Errorf("import daily metric: %w", err)
		}
	}
	for _, w := range data.DailyWeather {
		if err := r.UpsertDailyWeather(w); err != nil {
			return fmt.Errorf("import daily weather: %w", err)
		}
	}
	return nil
}

// ExportJSON exports all data as JSON.
func ExportJSON(r Repository) ([]byte, error) {
	data, err := r.GetAllData()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ImportJSON imports data from JSON bytes.
func ImportJSON(r Repository, raw []byte) error {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return r.ImportData(&data)
}

// ExportYAML exports all data as YAML.
func ExportYAML(r Repository) ([]byte, error) {
	data, err := r.GetAllData()
	if err != nil {
		return nil, err
	}

	// Episodes are flattened to a readable summary; daily records keep their fields.
	yamlData := struct {
		Version      string                 `yaml:"version"`
		ExportedAt   string                 `yaml:"exported_at"`
		Tool         string                 `yaml:"tool"`
		Episodes     []yamlEpisode          `yaml:"episodes"`
		DailyMetrics []*models.DailyMetric  `yaml:"daily_metrics,omitempty"`
		DailyWeather []*models.DailyWeather `yaml:"daily_weather,omitempty"`
	}{
		Version:      data.Version,
		ExportedAt:   data.ExportedAt.Format(time.RFC3339),
		Tool:         data.Tool,
		Episodes:     make([]yamlEpisode, 0, len(data.Episodes)),
		DailyMetrics: data.DailyMetrics,
		DailyWeather: data.DailyWeather,
	}

	for _, e := range data.Episodes {
		ye := yamlEpisode{
			ID:        e.ID.String()[:8],
			Start:     e.StartTime.Format(time.RFC3339),
			Intensity: e.Intensity,
			Triggers:  e.Triggers,
			Medicines: e.Medicines,
			Symptoms:  e.Symptoms.List(),
		}
		if e.EndTime != nil {
			ye.End = e.EndTime.Format(time.RFC3339)
		}
		if e.Notes != nil {
			ye.Notes = *e.Notes
		}
		for _, h := range e.IntensityHistory {
			ye.History = append(ye.History, yamlIntensity{
				At:        h.Timestamp.Format(time.RFC3339),
				Intensity: h.Intensity,
				Note:      h.Note,
			})
		}
		yamlData.Episodes = append(yamlData.Episodes, ye)
	}

	return yaml.Marshal(yamlData)
}

type yamlEpisode struct {
	ID        string          `yaml:"id"`
	Start     string          `yaml:"start"`
	End       string          `yaml:"end,omitempty"`
	Intensity int             `yaml:"intensity"`
	Triggers  []string        `yaml:"triggers,omitempty"`
	Medicines []string        `yaml:"medicines,omitempty"`
	Symptoms  []string        `yaml:"symptoms,omitempty"`
	Notes     string          `yaml:"notes,omitempty"`
	History   []yamlIntensity `yaml:"history,omitempty"`
}

type yamlIntensity struct {
	At        string `yaml:"at"`
	Intensity int    `yaml:"intensity"`
	Note      string `yaml:"note,omitempty"`
}

// ExportMarkdown exports episodes and daily metrics as Markdown tables.
// since filters records to those on or after the given time.
func ExportMarkdown(r Repository, since *time.Time) (string, error) {
	data, err := r.GetAllData()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	now := time.Now()

	sb.WriteString(fmt.Sprintf("# Migraine Export - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	sb.WriteString("## Episodes\n\n")
	sb.WriteString("| Start | Duration | Peak | Triggers | Medicines | Symptoms |\n")
	sb.WriteString("|-------|----------|------|----------|-----------|----------|\n")
	for _, e := range data.Episodes {
		if since != nil && e.StartTime.Before(*since) {
			continue
		}
		duration := "ongoing"
		if e.EndTime != nil {
			duration = formatDuration(e.EndTime.Sub(e.StartTime))
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s |\n",
			e.StartTime.Format("2006-01-02 15:04"),
			duration,
			peakIntensity(e),
			strings.Join(e.Triggers, ", "),
			strings.Join(e.Medicines, ", "),
			strings.Join(e.Symptoms.List(), ", ")))
	}

	sinceKey := ""
	if since != nil {
		sinceKey = models.DateKey(*since)
	}

	sb.WriteString("\n## Daily Metrics\n\n")
	sb.WriteString("| Date | Sleep (min) | Stress | HRV | Body Battery | Steps |\n")
	sb.WriteString("|------|-------------|--------|-----|--------------|-------|\n")
	for _, m := range data.DailyMetrics {
		if m.Date < sinceKey {
			continue
		}
		sleep := ""
		if total, ok := m.TotalSleepMinutes(); ok {
			sleep = fmt.Sprintf("%d", total)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			m.Date, sleep, intCell(m.StressAvg), floatCell(m.HRV), intCell(m.BodyBattery.Current), intCell(m.Steps)))
	}

	sb.WriteString("\n## Weather\n\n")
	sb.WriteString("| Date | Max °C | Humidity | Pressure Δ | Code |\n")
	sb.WriteString("|------|--------|----------|------------|------|\n")
	for _, w := range data.DailyWeather {
		if w.Date < sinceKey {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			w.Date, floatCell(w.TempMax), floatCell(w.Humidity), floatCell(w.PressureChange), intCell(w.WeatherCode)))
	}

	return sb.String(), nil
}

// ExportXLSX exports all data as a spreadsheet with one sheet per record kind.
func ExportXLSX(r Repository) ([]byte, error) {
	data, err := r.GetAllData()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", "Episodes"); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	episodeRows := make([][]interface{}, 0, len(data.Episodes))
	for _, e := range data.Episodes {
		end := ""
		if e.EndTime != nil {
			end = e.EndTime.Format(time.RFC3339)
		}
		episodeRows = append(episodeRows, []interface{}{
			e.ID.String(), e.StartTime.Format(time.RFC3339), end, e.Intensity, peakIntensity(e),
			strings.Join(e.Triggers, ", "), strings.Join(e.Medicines, ", "), strings.Join(e.Symptoms.List(), ", "),
		})
	}
	if err := writeSheet(f, "Episodes", headerStyle,
		[]interface{}{"ID", "Start", "End", "Intensity", "Peak", "Triggers", "Medicines", "Symptoms"},
		episodeRows); err != nil {
		return nil, err
	}

	metricRows := make([][]interface{}, 0, len(data.DailyMetrics))
	for _, m := range data.DailyMetrics {
		sleep := interface{}(nil)
		if total, ok := m.TotalSleepMinutes(); ok {
			sleep = total
		}
		metricRows = append(metricRows, []interface{}{
			m.Date, cellValue(m.SleepScore), sleep, cellValue(m.StressAvg), cellValue(m.StressMax),
			cellValue(m.RestingHR), cellValue(m.HRV), cellValue(m.BodyBattery.Current), cellValue(m.Steps),
		})
	}
	if _, err := f.NewSheet("Daily Metrics"); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeSheet(f, "Daily Metrics", headerStyle,
		[]interface{}{"Date", "Sleep Score", "Sleep (min)", "Stress Avg", "Stress Max", "Resting HR", "HRV", "Body Battery", "Steps"},
		metricRows); err != nil {
		return nil, err
	}

	weatherRows := make([][]interface{}, 0, len(data.DailyWeather))
	for _, w := range data.DailyWeather {
		weatherRows = append(weatherRows, []interface{}{
			w.Date, cellValue(w.TempMin), cellValue(w.TempMax), cellValue(w.Humidity),
			cellValue(w.Pressure), cellValue(w.PressureChange), cellValue(w.Precipitation), cellValue(w.WeatherCode),
		})
	}
	if _, err := f.NewSheet("Weather"); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeSheet(f, "Weather", headerStyle,
		[]interface{}{"Date", "Min °C", "Max °C", "Humidity", "Pressure", "Pressure Change", "Precipitation", "Weather Code"},
		weatherRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// cellValue unwraps optional numbers so empty cells stay empty.
func cellValue[T int | float64](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func peakIntensity(e *models.Episode) int {
	peak := e.Intensity
	for _, h := range e.IntensityHistory {
		if h.Intensity > peak {
			peak = h.Intensity
		}
	}
	return peak
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *v)
}
