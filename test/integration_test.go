// ABOUTME: Integration tests for the migraine CLI and the storage/analysis stack.
// ABOUTME: Runs the built binary through a full workflow and compares backends.
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/models"
	"github.com/harperreed/migraine/internal/storage"
)

func TestFullWorkflow(t *testing.T) {
	// Build the binary
	projectRoot, _ := filepath.Abs("..")
	binary := filepath.Join(t.TempDir(), "migraine")

	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/migraine")
	buildCmd.Dir = projectRoot
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}

	dataDir := t.TempDir()
	env := append(os.Environ(),
		"MIGRAINE_DATA_DIR="+dataDir,
		"MIGRAINE_BACKEND=sqlite",
		"XDG_CONFIG_HOME="+t.TempDir(),
	)

	run := func(args ...string) (string, error) {
		cmd := exec.Command(binary, args...)
		cmd.Env = env
		cmd.Dir = t.TempDir()
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	for d := 1; d <= 5; d++ {
		date := fmt.Sprintf("2024-03-%02d", d)
		args := []string{"episode", "add", "6", "--at", date + " 08:00"}
		if d <= 3 {
			args = append(args, "--trigger", "Red Wine")
		}
		output, err := run(args...)
		require.NoError(t, err, output)
		assert.Contains(t, output, "Started episode")

		output, err = run("metric", "set", date, "--stress-avg", "80")
		require.NoError(t, err, output)
	}

	output, err := run("episode", "list")
	require.NoError(t, err, output)
	assert.Equal(t, 5, strings.Count(output, "2024-03-"), output)

	output, err = run("analyze", "correlations", "--json")
	require.NoError(t, err, output)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(output), &report), output)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, analysis.TypeStress, report.Findings[0].Type)
	assert.Equal(t, 100, report.Findings[0].Percentage)
	assert.Equal(t, analysis.TypeTrigger, report.Findings[1].Type)
	assert.Equal(t, 60, report.Findings[1].Percentage)
	assert.Empty(t, report.Failures)

	output, err = run("export", "json", "-o", filepath.Join(dataDir, "export.json"))
	require.NoError(t, err, output)
	assert.Contains(t, output, "Exported to")
}

func seed(t *testing.T, repo storage.Repository) {
	t.Helper()
	for d := 1; d <= 8; d++ {
		start := time.Date(2024, 4, d*2, 7, 0, 0, 0, time.UTC)
		e := models.NewEpisode(start, 5)
		require.NoError(t, e.LogIntensity(start.Add(2*time.Hour), 8, ""))
		require.NoError(t, e.Close(start.Add(6*time.Hour)))
		require.NoError(t, repo.CreateEpisode(e))

		prior := models.NewDailyMetric(models.ShiftDateKey(e.DateKey(), -1))
		prior.Sleep.Deep = models.Int(40)
		prior.Sleep.Light = models.Int(180)
		prior.Sleep.REM = models.Int(50)
		require.NoError(t, repo.UpsertDailyMetric(prior))

		w := models.NewDailyWeather(e.DateKey())
		w.PressureChange = models.Float(-14)
		w.WeatherCode = models.Int(95)
		require.NoError(t, repo.UpsertDailyWeather(w))
	}
}

func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()

	db, err := storage.Open(filepath.Join(t.TempDir(), "migraine.db"))
	require.NoError(t, err)
	defer db.Close()
	seed(t, db)

	kv, err := storage.OpenKVInMemory()
	require.NoError(t, err)
	defer kv.Close()

	summary, err := storage.MigrateData(db, kv)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Episodes)
	assert.Equal(t, 8, summary.DailyMetrics)
	assert.Equal(t, 8, summary.DailyWeather)

	th := analysis.DefaultThresholds()
	fromSQL, err := analysis.NewEngine(db, th).AnalyzeAll(ctx)
	require.NoError(t, err)
	fromKV, err := analysis.NewEngine(kv, th).AnalyzeAll(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, fromSQL.Findings)
	assert.Equal(t, fromSQL.Findings, fromKV.Findings)

	types := map[analysis.FindingType]int{}
	for _, f := range fromSQL.Findings {
		types[f.Type] = f.Percentage
	}
	assert.Equal(t, 100, types[analysis.TypeSleep])
	assert.Equal(t, 100, types[analysis.TypePressure])
	assert.Equal(t, 100, types[analysis.TypeWeather])

	pattern, err := analysis.NewEngine(kv, th).AnalyzeTypicalIntensityPattern(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, pattern.EpisodesWithHistory)
	assert.InDelta(t, 120, pattern.AvgDurationToPeakMinutes, 0.001)
}
