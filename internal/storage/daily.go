// ABOUTME: Daily metric and weather upserts for SQLite storage.
// ABOUTME: Nullable columns map to pointer fields so gaps stay gaps.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/harperreed/migraine/internal/models"
)

const metricColumns = `date, sleep_score, sleep_deep, sleep_light, sleep_rem, sleep_awake,
	stress_avg, stress_max, resting_hr, max_hr, hrv, bb_charged, bb_drained, bb_current,
	steps, hydration, respiration_rate, spo2, synced_at`

const weatherColumns = `date, temp_min, temp_max, temp_avg, humidity, pressure, pressure_change,
	precipitation, weather_code, cloud_cover, wind_speed, uv_index, fetched_at`

// UpsertDailyMetric inserts or replaces the record for m.Date.
func (d *DB) UpsertDailyMetric(m *models.DailyMetric) error {
	if _, err := models.ParseDateKey(m.Date); err != nil {
		return fmt.Errorf("upsert daily metric: %w", err)
	}
	query := `INSERT OR REPLACE INTO daily_metrics (` + metricColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := d.db.Exec(query,
		m.Date, m.SleepScore,
		m.Sleep.Deep, m.Sleep.Light, m.Sleep.REM, m.Sleep.Awake,
		m.StressAvg, m.StressMax, m.RestingHR, m.MaxHR, m.HRV,
		m.BodyBattery.Charged, m.BodyBattery.Drained, m.BodyBattery.Current,
		m.Steps, m.Hydration, m.RespirationRate, m.SpO2,
		formatTime(m.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert daily metric: %w", err)
	}
	return nil
}

// GetDailyMetric returns the record for date or ErrNotFound.
func (d *DB) GetDailyMetric(date string) (*models.DailyMetric, error) {
	row := d.db.QueryRow(`SELECT `+metricColumns+` FROM daily_metrics WHERE date = ?`, date)
	m, err := scanDailyMetric(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(date)
		}
		return nil, err
	}
	return m, nil
}

// ListDailyMetrics returns records between from and to inclusive, oldest first.
// An empty bound is open.
func (d *DB) ListDailyMetrics(from, to string) ([]*models.DailyMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM daily_metrics
		WHERE (? = '' OR date >= ?) AND (? = '' OR date <= ?)
		ORDER BY date`
	rows, err := d.db.Query(query, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.DailyMetric
	for rows.Next() {
		m, err := scanDailyMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// UpsertDailyWeather inserts or replaces the record for w.Date.
func (d *DB) UpsertDailyWeather(w *models.DailyWeather) error {
	if _, err := models.ParseDateKey(w.Date); err != nil {
		return fmt.Errorf("upsert daily weather: %w", err)
	}
	query := `INSERT OR REPLACE INTO daily_weather (` + weatherColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := d.db.Exec(query,
		w.Date, w.TempMin, w.TempMax, w.TempAvg, w.Humidity, w.Pressure, w.PressureChange,
		w.Precipitation, w.WeatherCode, w.CloudCover, w.WindSpeed, w.UVIndex,
		formatTime(w.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert daily weather: %w", err)
	}
	return nil
}

// GetDailyWeather returns the record for date or ErrNotFound.
func (d *DB) GetDailyWeather(date string) (*models.DailyWeather, error) {
	row := d.db.QueryRow(`SELECT `+weatherColumns+` FROM daily_weather WHERE date = ?`, date)
	w, err := scanDailyWeather(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(date)
		}
		return nil, err
	}
	return w, nil
}

// ListDailyWeather returns records between from and to inclusive, oldest first.
func (d *DB) ListDailyWeather(from, to string) ([]*models.DailyWeather, error) {
	query := `SELECT ` + weatherColumns + ` FROM daily_weather
		WHERE (? = '' OR date >= ?) AND (? = '' OR date <= ?)
		ORDER BY date`
	rows, err := d.db.Query(query, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("list daily weather: %w", err)
	}
	defer rows.Close()

	var days []*models.DailyWeather
	for rows.Next() {
		w, err := scanDailyWeather(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, w)
	}
	return days, rows.Err()
}

func scanDailyMetric(row rowScanner) (*models.DailyMetric, error) {
	var m models.DailyMetric
	var syncedAt string
	err := row.Scan(
		&m.Date, &m.SleepScore,
		&m.Sleep.Deep, &m.Sleep.Light, &m.Sleep.REM, &m.Sleep.Awake,
		&m.StressAvg, &m.StressMax, &m.RestingHR, &m.MaxHR, &m.HRV,
		&m.BodyBattery.Charged, &m.BodyBattery.Drained, &m.BodyBattery.Current,
		&m.Steps, &m.Hydration, &m.RespirationRate, &m.SpO2,
		&syncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan daily metric: %w", err)
	}
	m.SyncedAt = parseTime(syncedAt)
	return &m, nil
}

func scanDailyWeather(row rowScanner) (*models.DailyWeather, error) {
	var w models.DailyWeather
	var fetchedAt string
	err := row.Scan(
		&w.Date, &w.TempMin, &w.TempMax, &w.TempAvg, &w.Humidity, &w.Pressure, &w.PressureChange,
		&w.Precipitation, &w.WeatherCode, &w.CloudCover, &w.WindSpeed, &w.UVIndex,
		&fetchedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan daily weather: %w", err)
	}
	w.FetchedAt = parseTime(fetchedAt)
	return &w, nil
}
