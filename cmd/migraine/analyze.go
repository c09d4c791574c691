// ABOUTME: CLI commands for correlation and intensity analysis.
// ABOUTME: Prints findings, per-episode intensity stats and the typical attack pattern.
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/analysis"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"an"},
	Short:   "Analyze episodes for patterns",
}

var analyzeCorrelationsCmd = &cobra.Command{
	Use:     "correlations",
	Aliases: []string{"corr", "c"},
	Short:   "Find conditions that tend to come before episodes",
	Long: `Run every correlation analyzer and list the findings, strongest first.

Each finding shows the share of usable episodes where the condition held,
how many episodes that share is based on, and the share of all recorded
days with the same condition as a baseline. A low p-value means the
episode share is unlikely to be chance given that baseline.

Thresholds can be tuned in a TOML file (MIGRAINE_THRESHOLDS).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		report, err := engine().AnalyzeAll(ctx)
		if err != nil {
			return err
		}
		analysis.SortByPercentage(report.Findings)

		if analyzeJSON {
			return printJSON(report)
		}

		for _, f := range report.Failures {
			color.Yellow("! %s analysis failed: %s", f.Analyzer, f.Message)
		}

		if len(report.Findings) == 0 {
			if len(report.Failures) == 0 {
				fmt.Printf("Not enough data yet. Findings need at least %d episodes with matching daily data.\n",
					thresholds.MinSampleSize)
			}
			return nil
		}

		faint := color.New(color.Faint)
		for _, f := range report.Findings {
			color.New(color.Bold).Printf("%s\n", f.Title)
			fmt.Printf("  %s %3d%%  %s\n", percentBar(f.Percentage), f.Percentage,
				faint.Sprintf("n=%d, excluded %d", f.SampleSize, f.Excluded))
			if f.Baseline != nil {
				line := fmt.Sprintf("baseline %d%%", *f.Baseline)
				if f.PValue != nil {
					line += fmt.Sprintf(", p=%.3f", *f.PValue)
				}
				fmt.Printf("  %s\n", faint.Sprint(line))
			}
			fmt.Printf("  %s\n\n", f.Description)
		}
		return nil
	},
}

var analyzeIntensityCmd = &cobra.Command{
	Use:   "intensity <id>",
	Short: "Intensity stats for one episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		st := analysis.CalculateIntensityStats(e.IntensityHistory)

		if analyzeJSON {
			return printJSON(st)
		}

		color.New(color.Bold).Printf("Episode %s\n", e.ID.String()[:8])
		fmt.Printf("  Samples:      %d\n", st.Samples)
		fmt.Printf("  Average:      %.1f\n", st.Average)
		fmt.Printf("  Peak:         %d", st.Peak)
		if st.PeakTime != nil {
			fmt.Printf(" at %s", st.PeakTime.Local().Format("2006-01-02 15:04"))
		}
		fmt.Println()
		fmt.Printf("  Current:      %d\n", st.Current)
		fmt.Printf("  Trend:        %s\n", trendLabel(st.Trend))
		fmt.Printf("  Improvement:  %.0f%%\n", st.ImprovementRate)
		return nil
	},
}

var analyzePatternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "How a typical episode unfolds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		summary, err := engine().AnalyzeTypicalIntensityPattern(ctx)
		if err != nil {
			return err
		}

		if analyzeJSON {
			return printJSON(summary)
		}

		if summary.EpisodesAnalyzed == 0 {
			fmt.Println("No episodes found.")
			return nil
		}

		color.New(color.Bold).Printf("Typical episode (%d analyzed)\n", summary.EpisodesAnalyzed)
		fmt.Printf("  Initial:       %.1f\n", summary.AvgInitial)
		fmt.Printf("  Peak:          %.1f\n", summary.AvgPeak)
		fmt.Printf("  Final:         %.1f\n", summary.AvgFinal)
		if summary.EpisodesWithHistory > 0 {
			fmt.Printf("  Time to peak:  %.0f min\n", summary.AvgDurationToPeakMinutes)
			fmt.Printf("  Improvement:   %.0f%%\n", summary.AvgImprovementRate)
			fmt.Println(color.New(color.Faint).Sprintf("  (timing from %d episodes with more than one reading)", summary.EpisodesWithHistory))
		}
		return nil
	},
}

func percentBar(pct int) string {
	filled := pct / 5
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
	switch {
	case pct >= 75:
		return color.RedString(bar)
	case pct >= 50:
		return color.YellowString(bar)
	default:
		return bar
	}
}

func trendLabel(t analysis.Trend) string {
	switch t {
	case analysis.TrendImproving:
		return color.GreenString("improving")
	case analysis.TrendWorsening:
		return color.RedString("worsening")
	default:
		return string(t)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	analyzeCmd.PersistentFlags().BoolVar(&analyzeJSON, "json", false, "print JSON instead of text")
	analyzeCmd.AddCommand(analyzeCorrelationsCmd, analyzeIntensityCmd, analyzePatternCmd)
	rootCmd.AddCommand(analyzeCmd)
}
