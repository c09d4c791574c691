// ABOUTME: CLI commands for daily wearable metrics.
// ABOUTME: Set, show, list and import sleep, stress, HRV and body battery records.
package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/harperreed/migraine/internal/importer"
	"github.com/harperreed/migraine/internal/models"
	"github.com/harperreed/migraine/internal/storage"
)

var (
	metricFrom string
	metricTo   string
)

// metricIntFlags maps flag names to the DailyMetric field they fill.
var metricIntFlags = []struct {
	name, usage string
	field       func(m *models.DailyMetric) **int
}{
	{"sleep-score", "sleep score 0-100", func(m *models.DailyMetric) **int { return &m.SleepScore }},
	{"sleep-deep", "deep sleep minutes", func(m *models.DailyMetric) **int { return &m.Sleep.Deep }},
	{"sleep-light", "light sleep minutes", func(m *models.DailyMetric) **int { return &m.Sleep.Light }},
	{"sleep-rem", "REM sleep minutes", func(m *models.DailyMetric) **int { return &m.Sleep.REM }},
	{"sleep-awake", "awake minutes during the night", func(m *models.DailyMetric) **int { return &m.Sleep.Awake }},
	{"stress-avg", "average stress 0-100", func(m *models.DailyMetric) **int { return &m.StressAvg }},
	{"stress-max", "maximum stress 0-100", func(m *models.DailyMetric) **int { return &m.StressMax }},
	{"resting-hr", "resting heart rate (bpm)", func(m *models.DailyMetric) **int { return &m.RestingHR }},
	{"max-hr", "maximum heart rate (bpm)", func(m *models.DailyMetric) **int { return &m.MaxHR }},
	{"body-battery", "body battery level 0-100", func(m *models.DailyMetric) **int { return &m.BodyBattery.Current }},
	{"body-battery-charged", "body battery charged", func(m *models.DailyMetric) **int { return &m.BodyBattery.Charged }},
	{"body-battery-drained", "body battery drained", func(m *models.DailyMetric) **int { return &m.BodyBattery.Drained }},
	{"steps", "step count", func(m *models.DailyMetric) **int { return &m.Steps }},
}

var metricFloatFlags = []struct {
	name, usage string
	field       func(m *models.DailyMetric) **float64
}{
	{"hrv", "overnight HRV (ms)", func(m *models.DailyMetric) **float64 { return &m.HRV }},
	{"hydration", "water intake (ml)", func(m *models.DailyMetric) **float64 { return &m.Hydration }},
	{"respiration", "respiration rate (breaths/min)", func(m *models.DailyMetric) **float64 { return &m.RespirationRate }},
	{"spo2", "blood oxygen saturation (%)", func(m *models.DailyMetric) **float64 { return &m.SpO2 }},
}

var metricCmd = &cobra.Command{
	Use:     "metric",
	Aliases: []string{"m"},
	Short:   "Manage daily wearable metrics",
}

var metricSetCmd = &cobra.Command{
	Use:   "set <date>",
	Short: "Record wearable data for a day",
	Long: `Record wearable data for one day. Only the flags you pass are changed;
everything else already stored for that day is kept.

Sleep, HRV and body battery are compared against the day before an episode,
stress against the day of the episode.

Examples:
  migraine metric set 2024-03-10 --sleep-deep 70 --sleep-light 200 --sleep-rem 60
  migraine metric set 2024-03-10 --stress-avg 68 --hrv 27.5 --body-battery 22`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := args[0]
		if _, err := models.ParseDateKey(date); err != nil {
			return err
		}

		m, err := repo.GetDailyMetric(date)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("failed to load metric: %w", err)
			}
			m = models.NewDailyMetric(date)
		}

		changed := 0
		for _, f := range metricIntFlags {
			if cmd.Flags().Changed(f.name) {
				v, _ := cmd.Flags().GetInt(f.name)
				*f.field(m) = models.Int(v)
				changed++
			}
		}
		for _, f := range metricFloatFlags {
			if cmd.Flags().Changed(f.name) {
				v, _ := cmd.Flags().GetFloat64(f.name)
				*f.field(m) = models.Float(v)
				changed++
			}
		}
		if changed == 0 {
			return fmt.Errorf("nothing to record: pass at least one metric flag")
		}

		m.SyncedAt = time.Now()
		if err := repo.UpsertDailyMetric(m); err != nil {
			return fmt.Errorf("failed to save metric: %w", err)
		}

		color.Green("✓ Recorded %d metrics for %s", changed, date)
		return nil
	},
}

var metricShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show wearable data for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := repo.GetDailyMetric(args[0])
		if err != nil {
			return fmt.Errorf("no metrics for %s", args[0])
		}

		color.New(color.Bold).Printf("Metrics %s\n", m.Date)
		if total, ok := m.TotalSleepMinutes(); ok {
			fmt.Printf("  Sleep:        %s (deep %s, light %s, rem %s)\n",
				humanMinutes(total), intOrDash(m.Sleep.Deep), intOrDash(m.Sleep.Light), intOrDash(m.Sleep.REM))
		}
		fmt.Printf("  Sleep score:  %s\n", intOrDash(m.SleepScore))
		fmt.Printf("  Stress:       avg %s, max %s\n", intOrDash(m.StressAvg), intOrDash(m.StressMax))
		fmt.Printf("  HRV:          %s\n", floatOrDash(m.HRV))
		fmt.Printf("  Resting HR:   %s\n", intOrDash(m.RestingHR))
		fmt.Printf("  Body battery: %s (+%s / -%s)\n",
			intOrDash(m.BodyBattery.Current), intOrDash(m.BodyBattery.Charged), intOrDash(m.BodyBattery.Drained))
		fmt.Printf("  Steps:        %s\n", intOrDash(m.Steps))
		return nil
	},
}

var metricListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List daily metrics in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics, err := repo.ListDailyMetrics(metricFrom, metricTo)
		if err != nil {
			return fmt.Errorf("failed to list metrics: %w", err)
		}
		if len(metrics) == 0 {
			fmt.Println("No metrics found.")
			return nil
		}

		faint := color.New(color.Faint)
		fmt.Println(faint.Sprint("DATE        SLEEP   STRESS  HRV     BATTERY"))
		for _, m := range metrics {
			sleep := "-"
			if total, ok := m.TotalSleepMinutes(); ok {
				sleep = humanMinutes(total)
			}
			fmt.Printf("%s  %s %s %s %s\n",
				m.Date,
				padRight(sleep, 7),
				padRight(intOrDash(m.StressAvg), 7),
				padRight(floatOrDash(m.HRV), 7),
				intOrDash(m.BodyBattery.Current))
		}
		return nil
	},
}

var metricImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import wearable exports (JSON or YAML)",
	Long: `Import daily metric and weather records from wearable export files.

Files hold a "daily_metrics" list and optionally a "daily_weather" list,
each record keyed by "date". Existing days are replaced.

Examples:
  migraine metric import garmin-2024-03.json
  migraine metric import exports/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			res, err := importer.ImportFile(repo, path)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			printImport(res)
		}
		return nil
	},
}

func printImport(res importer.Result) {
	color.Green("✓ Imported %s", res.Path)
	fmt.Printf("  %d metrics, %d weather days\n", res.Metrics, res.Weather)
}

func humanMinutes(m int) string {
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func addRangeFlags(fs *pflag.FlagSet, from, to *string) {
	fs.StringVar(from, "from", "", "first date (YYYY-MM-DD)")
	fs.StringVar(to, "to", "", "last date (YYYY-MM-DD)")
}

func init() {
	for _, f := range metricIntFlags {
		metricSetCmd.Flags().Int(f.name, 0, f.usage)
	}
	for _, f := range metricFloatFlags {
		metricSetCmd.Flags().Float64(f.name, 0, f.usage)
	}
	addRangeFlags(metricListCmd.Flags(), &metricFrom, &metricTo)

	metricCmd.AddCommand(metricSetCmd, metricShowCmd, metricListCmd, metricImportCmd)
	rootCmd.AddCommand(metricCmd)
}
