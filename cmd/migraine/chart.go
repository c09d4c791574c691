// ABOUTME: CLI commands that render HTML charts.
// ABOUTME: Episode intensity lines, findings vs baseline bars and monthly frequency.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/charts"
)

var (
	chartOutput string
	chartTheme  string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render HTML charts",
	Long: `Render interactive HTML charts you can open in a browser.

Examples:
  migraine chart intensity abc12345 -o attack.html
  migraine chart findings -o findings.html
  migraine chart frequency --theme dark`,
}

var chartIntensityCmd = &cobra.Command{
	Use:   "intensity <id>",
	Short: "Intensity over time for one episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		return writeChart("intensity-"+e.ID.String()[:8]+".html", func(buf *bytes.Buffer, c charts.Config) error {
			return charts.IntensityLine(buf, e, c)
		})
	},
}

var chartFindingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Correlation findings against their baselines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		report, err := engine().AnalyzeAll(ctx)
		if err != nil {
			return err
		}
		if len(report.Findings) == 0 {
			fmt.Println("No findings to chart yet.")
			return nil
		}
		analysis.SortByPercentage(report.Findings)

		return writeChart("findings.html", func(buf *bytes.Buffer, c charts.Config) error {
			return charts.FindingsBar(buf, report.Findings, c)
		})
	},
}

var chartFrequencyCmd = &cobra.Command{
	Use:   "frequency",
	Short: "Episodes per month",
	RunE: func(cmd *cobra.Command, args []string) error {
		episodes, err := repo.ListEpisodes(0)
		if err != nil {
			return fmt.Errorf("failed to list episodes: %w", err)
		}
		if len(episodes) == 0 {
			fmt.Println("No episodes to chart yet.")
			return nil
		}
		return writeChart("frequency.html", func(buf *bytes.Buffer, c charts.Config) error {
			return charts.MonthlyFrequency(buf, episodes, c)
		})
	},
}

func writeChart(defaultName string, render func(*bytes.Buffer, charts.Config) error) error {
	c := charts.DefaultConfig()
	if chartTheme != "" {
		c.Theme = chartTheme
	}

	var buf bytes.Buffer
	if err := render(&buf, c); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	path := chartOutput
	if path == "" {
		path = defaultName
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	color.Green("✓ Wrote %s", path)
	return nil
}

func init() {
	chartCmd.PersistentFlags().StringVarP(&chartOutput, "output", "o", "", "output HTML file")
	chartCmd.PersistentFlags().StringVar(&chartTheme, "theme", "", "echarts theme (light, dark, ...)")
	chartCmd.AddCommand(chartIntensityCmd, chartFindingsCmd, chartFrequencyCmd)
	rootCmd.AddCommand(chartCmd)
}
