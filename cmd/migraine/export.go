// ABOUTME: CLI commands for exporting and importing migraine data.
// ABOUTME: Supports JSON, YAML, Markdown and XLSX export formats.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/storage"
)

var (
	exportOutput string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export migraine data",
	Long: `Export migraine data in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for sharing with your doctor)
  xlsx       Excel workbook with one sheet per record type

OPTIONS:

  --output, -o   Write to file instead of stdout (required for xlsx)
  --since        Only include data since this date (markdown only, YYYY-MM-DD)

EXAMPLES:

  migraine export json -o backup.json
  migraine export markdown --since 2024-01-01
  migraine export xlsx -o migraine.xlsx`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown", "xlsx"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = storage.ExportJSON(repo)
		case "yaml":
			data, err = storage.ExportYAML(repo)
		case "markdown":
			var since *time.Time
			if exportSince != "" {
				t, err := time.ParseInLocation("2006-01-02", exportSince, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
				since = &t
			}
			md, err := storage.ExportMarkdown(repo, since)
			if err != nil {
				return err
			}
			data = []byte(md)
		case "xlsx":
			if exportOutput == "" {
				return fmt.Errorf("xlsx export needs --output")
			}
			data, err = storage.ExportXLSX(repo)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, markdown, or xlsx)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import migraine data from JSON",
	Long: `Import migraine data from a JSON export file.

This imports episodes, archived episodes and daily records from a previously
exported JSON file. Daily records replace existing days; duplicate episodes
(same ID) cause an error.

For wearable exports use 'migraine metric import'.

EXAMPLES:

  migraine import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		if err := storage.ImportJSON(repo, data); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported from %s", filename)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include data since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
