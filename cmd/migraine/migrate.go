// ABOUTME: CLI command for copying data between storage backends.
// ABOUTME: Moves everything from the active backend into sqlite or badger.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/config"
	"github.com/harperreed/migraine/internal/storage"
)

var (
	migrateTo      string
	migrateDataDir string
	migrateDryRun  bool
	migrateSwitch  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data to another storage backend",
	Long: `Copy every episode, archived episode and daily record from the active
backend into another one.

The destination must be empty. Run with --dry-run first to see what would
be copied. With --switch the config file is updated to use the destination
afterwards.

USAGE:

  migraine migrate --to badger --dry-run
  migraine migrate --to badger --switch
  migraine migrate --to sqlite --data-dir ~/sync/migraine`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateTo != "sqlite" && migrateTo != "badger" {
			return fmt.Errorf("unknown backend: %q (use sqlite or badger)", migrateTo)
		}

		dstCfg := *cfg
		dstCfg.Backend = migrateTo
		if migrateDataDir != "" {
			dstCfg.DataDir = migrateDataDir
		}
		if dstCfg.StoragePath() == cfg.StoragePath() {
			return fmt.Errorf("source and destination are the same: %s", cfg.StoragePath())
		}

		nonEmpty, err := destinationInUse(&dstCfg)
		if err != nil {
			return err
		}
		if nonEmpty {
			return fmt.Errorf("destination %s already has data", dstCfg.StoragePath())
		}

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			data, err := repo.GetAllData()
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			fmt.Printf("Would copy to %s (%s):\n", dstCfg.StoragePath(), dstCfg.GetBackend())
			printMigrateSummary(&storage.MigrateSummary{
				Episodes:     len(data.Episodes),
				Archived:     len(data.Archived),
				DailyMetrics: len(data.DailyMetrics),
				DailyWeather: len(data.DailyWeather),
			})
			return nil
		}

		dst, err := dstCfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("open destination: %w", err)
		}
		summary, err := storage.MigrateData(repo, dst)
		if closeErr := dst.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			return err
		}

		color.Green("✓ Migrated to %s", dstCfg.StoragePath())
		printMigrateSummary(summary)

		if migrateSwitch {
			fileCfg, err := config.LoadFile()
			if err != nil {
				return err
			}
			fileCfg.Backend = dstCfg.Backend
			if migrateDataDir != "" {
				fileCfg.DataDir = migrateDataDir
			}
			if err := fileCfg.Save(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			color.Green("✓ Now using %s", dstCfg.GetBackend())
		}
		return nil
	},
}

// destinationInUse reports whether the destination store already exists with content.
func destinationInUse(c *config.Config) (bool, error) {
	path := c.StoragePath()
	if c.GetBackend() == "badger" {
		return storage.IsDirNonEmpty(path)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

func printMigrateSummary(s *storage.MigrateSummary) {
	fmt.Printf("  %d episodes, %d archived, %d metric days, %d weather days\n",
		s.Episodes, s.Archived, s.DailyMetrics, s.DailyWeather)
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend: sqlite or badger")
	migrateCmd.Flags().StringVar(&migrateDataDir, "data-dir", "", "destination data directory (default: current)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	migrateCmd.Flags().BoolVar(&migrateSwitch, "switch", false, "use the destination backend from now on")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
