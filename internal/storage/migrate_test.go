// ABOUTME: Tests for data migration between storage backends.
// ABOUTME: Covers sqlite-to-badger, badger-to-sqlite, and empty sources.
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateDataSQLiteToBadger(t *testing.T) {
	src := setupTestDB(t)
	defer src.Close()
	e := seedExportData(t, src)

	dst, err := OpenKV(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)
	defer dst.Close()

	summary, err := MigrateData(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Episodes)
	assert.Equal(t, 0, summary.Archived)
	assert.Equal(t, 1, summary.DailyMetrics)
	assert.Equal(t, 1, summary.DailyWeather)

	got, err := dst.GetEpisode(e.ID.String()[:8])
	require.NoError(t, err)
	assert.Len(t, got.IntensityHistory, 2)
	require.NotNil(t, got.EndTime)
}

func TestMigrateDataBadgerToSQLite(t *testing.T) {
	src := setupTestKV(t)
	defer src.Close()
	seedExportData(t, src)

	dst := setupTestDB(t)
	defer dst.Close()

	summary, err := MigrateData(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Episodes)

	w, err := dst.GetDailyWeather("2024-03-10")
	require.NoError(t, err)
	require.NotNil(t, w.WeatherCode)
	assert.Equal(t, 95, *w.WeatherCode)
}

func TestMigrateDataEmptySource(t *testing.T) {
	src := setupTestKV(t)
	defer src.Close()
	dst := setupTestDB(t)
	defer dst.Close()

	summary, err := MigrateData(src, dst)
	require.NoError(t, err)
	assert.Equal(t, MigrateSummary{}, *summary)
}

func TestIsDirNonEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsDirNonEmpty(dir)
	require.NoError(t, err)
	assert.False(t, empty)

	missing, err := IsDirNonEmpty(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, missing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0600))
	full, err := IsDirNonEmpty(dir)
	require.NoError(t, err)
	assert.True(t, full)
}
