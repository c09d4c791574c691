// ABOUTME: Repository interface for migraine data storage.
// ABOUTME: Defines contract for episodes, archives and daily metric/weather records.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/migraine/internal/models"
)

// ErrNotFound is returned when a record or date has no stored value.
var ErrNotFound = errors.New("not found")

// ArchiveAge is how old an episode must be before ArchiveEpisodes moves it.
const ArchiveAge = 2 * 365 * 24 * time.Hour

// Repository defines the storage interface for migraine data.
// Implementations: *DB (SQLite) and *KVStore (Badger).
type Repository interface {
	// Episode operations
	CreateEpisode(e *models.Episode) error
	GetEpisode(idOrPrefix string) (*models.Episode, error)
	UpdateEpisode(e *models.Episode) error
	ListEpisodes(limit int) ([]*models.Episode, error)
	DeleteEpisode(idOrPrefix string) error

	// Archive operations
	ArchiveEpisodes(before time.Time) (int, error)
	ListArchivedEpisodes() ([]*models.Episode, error)

	// Daily metric operations, keyed by YYYY-MM-DD
	UpsertDailyMetric(m *models.DailyMetric) error
	GetDailyMetric(date string) (*models.DailyMetric, error)
	ListDailyMetrics(from, to string) ([]*models.DailyMetric, error)

	// Daily weather operations, keyed by YYYY-MM-DD
	UpsertDailyWeather(w *models.DailyWeather) error
	GetDailyWeather(date string) (*models.DailyWeather, error)
	ListDailyWeather(from, to string) ([]*models.DailyWeather, error)

	// Export/Import
	GetAllData() (*ExportData, error)
	ImportData(data *ExportData) error

	// Lifecycle
	Wipe() error
	Close() error
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

func ambiguous(prefix string) error {
	return fmt.Errorf("ambiguous prefix %s: matches multiple records", prefix)
}

func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
