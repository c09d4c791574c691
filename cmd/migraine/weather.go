// ABOUTME: CLI commands for daily weather records.
// ABOUTME: Manual entry plus Open-Meteo history fetch for the configured home location.
package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/config"
	"github.com/harperreed/migraine/internal/models"
	"github.com/harperreed/migraine/internal/storage"
	"github.com/harperreed/migraine/internal/weather"
)

var (
	weatherFrom    string
	weatherTo      string
	weatherBaseURL string
	weatherLat     float64
	weatherLon     float64
)

var weatherFloatFlags = []struct {
	name, usage string
	field       func(w *models.DailyWeather) **float64
}{
	{"temp-min", "minimum temperature (°C)", func(w *models.DailyWeather) **float64 { return &w.TempMin }},
	{"temp-max", "maximum temperature (°C)", func(w *models.DailyWeather) **float64 { return &w.TempMax }},
	{"temp-avg", "mean temperature (°C)", func(w *models.DailyWeather) **float64 { return &w.TempAvg }},
	{"humidity", "mean relative humidity (%)", func(w *models.DailyWeather) **float64 { return &w.Humidity }},
	{"pressure", "mean sea level pressure (hPa)", func(w *models.DailyWeather) **float64 { return &w.Pressure }},
	{"pressure-change", "pressure change from the day before (hPa)", func(w *models.DailyWeather) **float64 { return &w.PressureChange }},
	{"precipitation", "precipitation (mm)", func(w *models.DailyWeather) **float64 { return &w.Precipitation }},
}

var weatherCmd = &cobra.Command{
	Use:     "weather",
	Aliases: []string{"w"},
	Short:   "Manage daily weather records",
}

var weatherSetCmd = &cobra.Command{
	Use:   "set <date>",
	Short: "Record weather for a day",
	Long: `Record weather for one day. Only the flags you pass are changed.

Examples:
  migraine weather set 2024-03-10 --pressure 1003 --pressure-change -12.5
  migraine weather set 2024-07-02 --temp-max 33 --code 95`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := args[0]
		if _, err := models.ParseDateKey(date); err != nil {
			return err
		}

		w, err := repo.GetDailyWeather(date)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("failed to load weather: %w", err)
			}
			w = models.NewDailyWeather(date)
		}

		changed := 0
		for _, f := range weatherFloatFlags {
			if cmd.Flags().Changed(f.name) {
				v, _ := cmd.Flags().GetFloat64(f.name)
				*f.field(w) = models.Float(v)
				changed++
			}
		}
		if cmd.Flags().Changed("code") {
			v, _ := cmd.Flags().GetInt("code")
			w.WeatherCode = models.Int(v)
			changed++
		}
		if changed == 0 {
			return fmt.Errorf("nothing to record: pass at least one weather flag")
		}

		w.FetchedAt = time.Now()
		if err := repo.UpsertDailyWeather(w); err != nil {
			return fmt.Errorf("failed to save weather: %w", err)
		}

		color.Green("✓ Recorded weather for %s", date)
		return nil
	},
}

var weatherShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show weather for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := repo.GetDailyWeather(args[0])
		if err != nil {
			return fmt.Errorf("no weather for %s", args[0])
		}

		color.New(color.Bold).Printf("Weather %s\n", w.Date)
		fmt.Printf("  Conditions:   %s\n", weatherLabel(w))
		fmt.Printf("  Temperature:  %s to %s °C\n", floatOrDash(w.TempMin), floatOrDash(w.TempMax))
		fmt.Printf("  Humidity:     %s %%\n", floatOrDash(w.Humidity))
		fmt.Printf("  Pressure:     %s hPa (%s)\n", floatOrDash(w.Pressure), floatOrDash(w.PressureChange))
		fmt.Printf("  Precip:       %s mm\n", floatOrDash(w.Precipitation))
		return nil
	},
}

var weatherListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List weather in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := repo.ListDailyWeather(weatherFrom, weatherTo)
		if err != nil {
			return fmt.Errorf("failed to list weather: %w", err)
		}
		if len(days) == 0 {
			fmt.Println("No weather found.")
			return nil
		}

		faint := color.New(color.Faint)
		fmt.Println(faint.Sprint("DATE        PRESSURE  CHANGE  MAX°C   HUMID   CONDITIONS"))
		for _, w := range days {
			fmt.Printf("%s  %s %s %s %s %s\n",
				w.Date,
				padRight(floatOrDash(w.Pressure), 9),
				padRight(floatOrDash(w.PressureChange), 7),
				padRight(floatOrDash(w.TempMax), 7),
				padRight(floatOrDash(w.Humidity), 7),
				weatherLabel(w))
		}
		return nil
	},
}

var weatherFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch daily weather history from Open-Meteo",
	Long: `Fetch daily weather for the home location from the Open-Meteo archive
and store it. Pressure change is computed from the previous day's mean.

The location comes from --lat/--lon, MIGRAINE_LATITUDE/MIGRAINE_LONGITUDE
or latitude/longitude in config.json. Without --from, the range starts at
the oldest stored episode.

Examples:
  migraine weather fetch --lat 52.52 --lon 13.40
  migraine weather fetch --from 2024-01-01 --to 2024-03-31`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := homeLocation(cmd)
		if err != nil {
			return err
		}

		from, to, err := fetchRange()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		client := weather.NewClient(weatherBaseURL)
		n, err := client.Sync(ctx, repo, loc, from, to)
		if err != nil {
			return fmt.Errorf("weather fetch failed after %d days: %w", n, err)
		}

		color.Green("✓ Stored weather for %d days", n)
		fmt.Printf("  %s to %s\n", from, to)
		return nil
	},
}

func homeLocation(cmd *cobra.Command) (weather.Location, error) {
	loc := weather.Location{Timezone: cfg.GetTimezone()}
	if cfg.HasLocation() {
		loc.Latitude, loc.Longitude = *cfg.Latitude, *cfg.Longitude
	}
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet {
		loc.Latitude = weatherLat
	}
	if lonSet {
		loc.Longitude = weatherLon
	}
	if !cfg.HasLocation() && !(latSet && lonSet) {
		return loc, fmt.Errorf("no home location: pass --lat and --lon or set %s/%s", config.EnvLatitude, config.EnvLongitude)
	}
	return loc, nil
}

// fetchRange fills in defaults: from the oldest episode (or 30 days back) to yesterday.
func fetchRange() (string, string, error) {
	from, to := weatherFrom, weatherTo
	if to == "" {
		to = models.DateKey(time.Now().AddDate(0, 0, -1))
	}
	if from == "" {
		from = models.ShiftDateKey(to, -30)
		episodes, err := repo.ListEpisodes(0)
		if err != nil {
			return "", "", fmt.Errorf("failed to list episodes: %w", err)
		}
		if n := len(episodes); n > 0 {
			from = models.ShiftDateKey(episodes[n-1].DateKey(), -1)
		}
	}
	for _, d := range []string{from, to} {
		if _, err := models.ParseDateKey(d); err != nil {
			return "", "", err
		}
	}
	if from > to {
		return "", "", fmt.Errorf("invalid range: %s is after %s", from, to)
	}
	return from, to, nil
}

func weatherLabel(w *models.DailyWeather) string {
	if w.WeatherCode == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", analysis.BucketFor(*w.WeatherCode).Label(), *w.WeatherCode)
}

func init() {
	for _, f := range weatherFloatFlags {
		weatherSetCmd.Flags().Float64(f.name, 0, f.usage)
	}
	weatherSetCmd.Flags().Int("code", 0, "WMO weather code")

	addRangeFlags(weatherListCmd.Flags(), &weatherFrom, &weatherTo)
	addRangeFlags(weatherFetchCmd.Flags(), &weatherFrom, &weatherTo)
	weatherFetchCmd.Flags().Float64Var(&weatherLat, "lat", 0, "home latitude")
	weatherFetchCmd.Flags().Float64Var(&weatherLon, "lon", 0, "home longitude")
	weatherFetchCmd.Flags().StringVar(&weatherBaseURL, "api", weather.DefaultBaseURL, "Open-Meteo archive API base URL")

	weatherCmd.AddCommand(weatherSetCmd, weatherShowCmd, weatherListCmd, weatherFetchCmd)
	rootCmd.AddCommand(weatherCmd)
}
