// ABOUTME: Badger KV storage backend implementing Repository.
// ABOUTME: Uses type-prefixed keys with JSON values; date keys iterate in order.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/models"
	"go.uber.org/zap"
)

// Key prefixes for the KV backend.
const (
	EpisodePrefix = "episode:"
	ArchivePrefix = "archive:"
	MetricPrefix  = "metric:"
	WeatherPrefix = "weather:"
)

// KVStore is a Repository backed by an embedded Badger database.
type KVStore struct {
	db *badger.DB
	mu sync.RWMutex
}

// badgerLogger routes badger's internal logging into zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// OpenKV opens or creates a Badger store in dir.
func OpenKV(dir string) (*KVStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logging.Named("badger").Sugar()})
	return openKV(opts)
}

// OpenKVInMemory opens a Badger store that never touches disk.
func OpenKVInMemory() (*KVStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return openKV(opts)
}

func openKV(opts badger.Options) (*KVStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &KVStore{db: db}, nil
}

// Close closes the Badger database.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Wipe removes every stored record.
func (s *KVStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wipe: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("wipe: %w", err)
		}
	}
	return wb.Flush()
}

// CreateEpisode stores a new episode.
func (s *KVStore) CreateEpisode(e *models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(EpisodePrefix + e.ID.String())
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("create episode: %s already exists", e.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create episode: %w", err)
		}
		return setJSON(txn, key, e)
	})
}

// GetEpisode retrieves an episode by ID or ID prefix.
func (s *KVStore) GetEpisode(idOrPrefix string) (*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e *models.Episode
	err := s.db.View(func(txn *badger.Txn) error {
		data, _, err := getByIDPrefix(txn, EpisodePrefix, idOrPrefix)
		if err != nil {
			return err
		}
		e, err = unmarshalJSON[models.Episode](data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return e, nil
}

// UpdateEpisode overwrites an existing episode.
func (s *KVStore) UpdateEpisode(e *models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(EpisodePrefix + e.ID.String())
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(e.ID.String())
			}
			return fmt.Errorf("update episode: %w", err)
		}
		return setJSON(txn, key, e)
	})
}

// ListEpisodes retrieves episodes sorted by StartTime descending.
func (s *KVStore) ListEpisodes(limit int) ([]*models.Episode, error) {
	episodes, err := s.listEpisodes(EpisodePrefix)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	if limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}
	return episodes, nil
}

// DeleteEpisode removes an episode by ID or prefix.
func (s *KVStore) DeleteEpisode(idOrPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		_, key, err := getByIDPrefix(txn, EpisodePrefix, idOrPrefix)
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	return nil
}

// ArchiveEpisodes moves episodes that started before the cutoff under the
// archive prefix.
func (s *KVStore) ArchiveEpisodes(before time.Time) (int, error) {
	episodes, err := s.listEpisodes(EpisodePrefix)
	if err != nil {
		return 0, fmt.Errorf("archive episodes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, e := range episodes {
			if !e.StartTime.Before(before) {
				continue
			}
			if err := setJSON(txn, []byte(ArchivePrefix+e.ID.String()), e); err != nil {
				return err
			}
			if err := txn.Delete([]byte(EpisodePrefix + e.ID.String())); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("archive episodes: %w", err)
	}
	return moved, nil
}

// ListArchivedEpisodes returns archived episodes, most recent first.
func (s *KVStore) ListArchivedEpisodes() ([]*models.Episode, error) {
	episodes, err := s.listEpisodes(ArchivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list archived episodes: %w", err)
	}
	return episodes, nil
}

// UpsertDailyMetric inserts or replaces the record for m.Date.
func (s *KVStore) UpsertDailyMetric(m *models.DailyMetric) error {
	if _, err := models.ParseDateKey(m.Date); err != nil {
		return fmt.Errorf("upsert daily metric: %w", err)
	}
	return s.put(MetricPrefix+m.Date, m)
}

// GetDailyMetric returns the record for date or ErrNotFound.
func (s *KVStore) GetDailyMetric(date string) (*models.DailyMetric, error) {
	data, err := s.get(MetricPrefix, date)
	if err != nil {
		return nil, err
	}
	return unmarshalJSON[models.DailyMetric](data)
}

// ListDailyMetrics returns records between from and to inclusive, oldest first.
func (s *KVStore) ListDailyMetrics(from, to string) ([]*models.DailyMetric, error) {
	values, err := s.scanRange(MetricPrefix, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	metrics := make([]*models.DailyMetric, 0, len(values))
	for _, data := range values {
		m, err := unmarshalJSON[models.DailyMetric](data)
		if err != nil {
			return nil, fmt.Errorf("decode daily metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// UpsertDailyWeather inserts or replaces the record for w.Date.
func (s *KVStore) UpsertDailyWeather(w *models.DailyWeather) error {
	if _, err := models.ParseDateKey(w.Date); err != nil {
		return fmt.Errorf("upsert daily weather: %w", err)
	}
	return s.put(WeatherPrefix+w.Date, w)
}

// GetDailyWeather returns the record for date or ErrNotFound.
func (s *KVStore) GetDailyWeather(date string) (*models.DailyWeather, error) {
	data, err := s.get(WeatherPrefix, date)
	if err != nil {
		return nil, err
	}
	return unmarshalJSON[models.DailyWeather](data)
}

// ListDailyWeather returns records between from and to inclusive, oldest first.
func (s *KVStore) ListDailyWeather(from, to string) ([]*models.DailyWeather, error) {
	values, err := s.scanRange(WeatherPrefix, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily weather: %w", err)
	}
	days := make([]*models.DailyWeather, 0, len(values))
	for _, data := range values {
		w, err := unmarshalJSON[models.DailyWeather](data)
		if err != nil {
			return nil, fmt.Errorf("decode daily weather: %w", err)
		}
		days = append(days, w)
	}
	return days, nil
}

func (s *KVStore) put(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(key), v)
	})
}

func (s *KVStore) get(prefix, date string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + date))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(date)
	}
	return data, err
}

func (s *KVStore) listEpisodes(prefix string) ([]*models.Episode, error) {
	values, err := s.scanRange(prefix, "", "")
	if err != nil {
		return nil, err
	}
	episodes := make([]*models.Episode, 0, len(values))
	for _, data := range values {
		e, err := unmarshalJSON[models.Episode](data)
		if err != nil {
			continue // Skip invalid entries
		}
		episodes = append(episodes, e)
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].StartTime.After(episodes[j].StartTime)
	})
	return episodes, nil
}

// scanRange returns values under prefix whose key suffix is within [from, to].
func (s *KVStore) scanRange(prefix, from, to string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek([]byte(prefix + from)); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			suffix := string(bytes.TrimPrefix(item.Key(), p))
			if !inRange(suffix, from, to) {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results = append(results, val)
		}
		return nil
	})
	return results, err
}

// getByIDPrefix retrieves a single value by ID prefix match.
// Returns error if no match or multiple matches found.
func getByIDPrefix(txn *badger.Txn, typePrefix, idPrefix string) ([]byte, []byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	search := []byte(typePrefix + idPrefix)
	var key []byte
	for it.Seek(search); it.ValidForPrefix(search); it.Next() {
		if key != nil {
			return nil, nil, ambiguous(idPrefix)
		}
		key = it.Item().KeyCopy(nil)
	}
	if key == nil {
		return nil, nil, notFound(idPrefix)
	}

	item, err := txn.Get(key)
	if err != nil {
		return nil, nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	return val, key, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// unmarshalJSON is a helper to unmarshal JSON data.
func unmarshalJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
