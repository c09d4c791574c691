// ABOUTME: Tests for Repository interface implementations.
// ABOUTME: Runs the same CRUD contract against SQLite and Badger backends.
package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/migraine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "migraine.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	return db
}

func setupTestKV(t *testing.T) *KVStore {
	t.Helper()
	kv, err := OpenKVInMemory()
	if err != nil {
		t.Fatalf("Failed to open test KV: %v", err)
	}
	return kv
}

// forEachBackend runs fn against a fresh store of every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, r Repository)) {
	backends := map[string]func(*testing.T) Repository{
		"sqlite": func(t *testing.T) Repository { return setupTestDB(t) },
		"badger": func(t *testing.T) Repository { return setupTestKV(t) },
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			r := open(t)
			defer r.Close()
			fn(t, r)
		})
	}
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestCreateAndGetEpisode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		e := models.NewEpisode(at(10, 8), 6)
		e.AddTrigger("Red wine").AddMedicine("Ibuprofen").WithNotes("woke up with it")
		e.Symptoms.Set("nausea")
		e.Symptoms.Set("tinnitus")
		require.NoError(t, r.CreateEpisode(e))

		got, err := r.GetEpisode(e.ID.String())
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.True(t, got.StartTime.Equal(e.StartTime))
		assert.Equal(t, 6, got.Intensity)
		assert.Equal(t, []string{"Red wine"}, got.Triggers)
		assert.Equal(t, []string{"Ibuprofen"}, got.Medicines)
		assert.True(t, got.Symptoms.Nausea)
		assert.Equal(t, []string{"tinnitus"}, got.Symptoms.Custom)
		require.NotNil(t, got.Notes)
		assert.Equal(t, "woke up with it", *got.Notes)
		require.Len(t, got.IntensityHistory, 1)
		assert.Equal(t, "Initial", got.IntensityHistory[0].Note)
		assert.Nil(t, got.EndTime)

		byPrefix, err := r.GetEpisode(e.ID.String()[:8])
		require.NoError(t, err)
		assert.Equal(t, e.ID, byPrefix.ID)
	})
}

func TestUpdateEpisodeHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		e := models.NewEpisode(at(10, 8), 4)
		require.NoError(t, r.CreateEpisode(e))

		require.NoError(t, e.LogIntensity(at(10, 10), 8, "peak"))
		require.NoError(t, e.LogIntensity(at(10, 14), 3, ""))
		require.NoError(t, e.Close(at(10, 18)))
		require.NoError(t, r.UpdateEpisode(e))

		got, err := r.GetEpisode(e.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 3, got.Intensity)
		require.Len(t, got.IntensityHistory, 3)
		assert.Equal(t, 8, got.IntensityHistory[1].Intensity)
		assert.Equal(t, "peak", got.IntensityHistory[1].Note)
		assert.True(t, got.IntensityHistory[2].Timestamp.Equal(at(10, 14)))
		require.NotNil(t, got.EndTime)
		assert.True(t, got.EndTime.Equal(at(10, 18)))
	})
}

func TestUpdateMissingEpisode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		err := r.UpdateEpisode(models.NewEpisode(at(1, 1), 5))
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}

func TestListEpisodesNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		for _, day := range []int{3, 12, 7} {
			require.NoError(t, r.CreateEpisode(models.NewEpisode(at(day, 9), 5)))
		}

		all, err := r.ListEpisodes(0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 12, all[0].StartTime.Day())
		assert.Equal(t, 7, all[1].StartTime.Day())
		assert.Equal(t, 3, all[2].StartTime.Day())
		assert.Len(t, all[0].IntensityHistory, 1)

		limited, err := r.ListEpisodes(2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestDeleteEpisode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		e := models.NewEpisode(at(5, 9), 5)
		require.NoError(t, r.CreateEpisode(e))

		require.NoError(t, r.DeleteEpisode(e.ID.String()[:8]))
		_, err := r.GetEpisode(e.ID.String())
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

		err = r.DeleteEpisode("deadbeef")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}

func TestAmbiguousPrefixError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		require.NoError(t, r.CreateEpisode(models.NewEpisode(at(1, 9), 5)))
		require.NoError(t, r.CreateEpisode(models.NewEpisode(at(2, 9), 5)))

		_, err := r.GetEpisode("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous prefix")
	})
}

func TestArchiveEpisodes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		old := models.NewEpisode(time.Date(2020, 1, 5, 8, 0, 0, 0, time.UTC), 7)
		recent := models.NewEpisode(at(5, 8), 4)
		require.NoError(t, r.CreateEpisode(old))
		require.NoError(t, r.CreateEpisode(recent))

		moved, err := r.ArchiveEpisodes(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 1, moved)

		active, err := r.ListEpisodes(0)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, recent.ID, active[0].ID)

		archived, err := r.ListArchivedEpisodes()
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, old.ID, archived[0].ID)
		assert.Len(t, archived[0].IntensityHistory, 1)

		moved, err = r.ArchiveEpisodes(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 0, moved)
	})
}

func TestDailyMetricKeepsGaps(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		m := models.NewDailyMetric("2024-03-09")
		m.Sleep.Deep = models.Int(70)
		m.Sleep.REM = models.Int(90)
		m.StressAvg = models.Int(42)
		m.HRV = models.Float(38.5)
		require.NoError(t, r.UpsertDailyMetric(m))

		got, err := r.GetDailyMetric("2024-03-09")
		require.NoError(t, err)
		require.NotNil(t, got.StressAvg)
		assert.Equal(t, 42, *got.StressAvg)
		require.NotNil(t, got.HRV)
		assert.InDelta(t, 38.5, *got.HRV, 0.001)
		assert.Nil(t, got.Sleep.Light)
		assert.Nil(t, got.BodyBattery.Current)
		assert.Nil(t, got.Steps)
		total, ok := got.TotalSleepMinutes()
		assert.True(t, ok)
		assert.Equal(t, 160, total)

		// Upsert replaces the whole day
		m2 := models.NewDailyMetric("2024-03-09")
		m2.Steps = models.Int(9000)
		require.NoError(t, r.UpsertDailyMetric(m2))
		got, err = r.GetDailyMetric("2024-03-09")
		require.NoError(t, err)
		assert.Nil(t, got.StressAvg)
		require.NotNil(t, got.Steps)
		assert.Equal(t, 9000, *got.Steps)

		_, err = r.GetDailyMetric("2024-03-10")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

		assert.Error(t, r.UpsertDailyMetric(models.NewDailyMetric("March 9")))
	})
}

func TestListDailyRanges(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		for _, date := range []string{"2024-03-03", "2024-03-01", "2024-03-05", "2024-02-28"} {
			w := models.NewDailyWeather(date)
			w.WeatherCode = models.Int(95)
			require.NoError(t, r.UpsertDailyWeather(w))
			require.NoError(t, r.UpsertDailyMetric(models.NewDailyMetric(date)))
		}

		tests := []struct {
			from, to string
			want     []string
		}{
			{"", "", []string{"2024-02-28", "2024-03-01", "2024-03-03", "2024-03-05"}},
			{"2024-03-01", "2024-03-03", []string{"2024-03-01", "2024-03-03"}},
			{"2024-03-02", "", []string{"2024-03-03", "2024-03-05"}},
			{"", "2024-02-28", []string{"2024-02-28"}},
			{"2024-04-01", "", nil},
		}
		for _, tt := range tests {
			weather, err := r.ListDailyWeather(tt.from, tt.to)
			require.NoError(t, err)
			metrics, err := r.ListDailyMetrics(tt.from, tt.to)
			require.NoError(t, err)

			var wDates, mDates []string
			for _, w := range weather {
				wDates = append(wDates, w.Date)
			}
			for _, m := range metrics {
				mDates = append(mDates, m.Date)
			}
			assert.Equal(t, tt.want, wDates, "weather %q..%q", tt.from, tt.to)
			assert.Equal(t, tt.want, mDates, "metrics %q..%q", tt.from, tt.to)
		}
	})
}

func TestWipe(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository) {
		require.NoError(t, r.CreateEpisode(models.NewEpisode(at(1, 9), 5)))
		require.NoError(t, r.UpsertDailyMetric(models.NewDailyMetric("2024-03-01")))
		require.NoError(t, r.UpsertDailyWeather(models.NewDailyWeather("2024-03-01")))

		require.NoError(t, r.Wipe())

		data, err := r.GetAllData()
		require.NoError(t, err)
		assert.Empty(t, data.Episodes)
		assert.Empty(t, data.DailyMetrics)
		assert.Empty(t, data.DailyWeather)
	})
}

func TestSchemaVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	version, dirty, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migraine.db")
	db, err := Open(path)
	require.NoError(t, err)
	e := models.NewEpisode(at(4, 9), 5)
	require.NoError(t, db.CreateEpisode(e))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.GetEpisode(e.ID.String())
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
}

func TestDBCloseNilDB(t *testing.T) {
	d := &DB{}
	assert.NoError(t, d.Close())
}
