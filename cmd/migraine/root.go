// ABOUTME: Root Cobra command for migraine CLI.
// ABOUTME: Loads config, starts logging and manages the storage lifecycle via PersistentPre/PostRunE.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/config"
	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/storage"
)

var (
	cfg        *config.Config
	repo       storage.Repository
	thresholds analysis.Thresholds

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "migraine",
	Short: "Migraine diary with trigger and biometric correlation analysis",
	Long: `Migraine is a CLI diary for migraine episodes that looks for patterns
between your attacks and your sleep, stress, HRV, body battery, triggers and
the weather.

QUICK START:

  $ migraine episode add 6 --trigger "red wine"   # Start an episode
  $ migraine episode log abc12345 8               # Pain got worse
  $ migraine episode close abc12345               # It's over
  $ migraine episode list                         # Recent episodes

DAILY DATA:

  $ migraine metric set 2024-03-10 --sleep-deep 70 --stress-avg 68
  $ migraine metric import garmin-export.json     # JSON or YAML exports
  $ migraine watch ~/Downloads/wearable           # Import files as they arrive
  $ migraine weather fetch --from 2024-01-01      # Open-Meteo history

ANALYSIS:

  $ migraine analyze correlations   # What tends to come before an attack
  $ migraine analyze pattern        # How a typical attack unfolds
  $ migraine chart findings -o findings.html

MCP INTEGRATION:

  Run 'migraine mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants.

  {
    "mcpServers": {
      "migraine": { "command": "migraine", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  SQLite by default at ~/.local/share/migraine/migraine.db. Set
  MIGRAINE_BACKEND=badger to use the embedded key-value store instead.
  Configuration lives in ~/.config/migraine/config.json and .env.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip storage init for commands that don't need it
		switch cmd.Name() {
		case "version", "help", "install-skill", "migraine":
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Init(logging.Options{
			Level:   cfg.GetLogLevel(),
			File:    cfg.GetLogFile(),
			Console: verbose,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		thresholds, err = cfg.Thresholds()
		if err != nil {
			return fmt.Errorf("failed to load thresholds: %w", err)
		}

		repo, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}

		logging.Named("cli").Debug("command start",
			zap.String("command", cmd.CommandPath()),
			zap.String("backend", cfg.GetBackend()),
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeRepo()
	},
}

// Execute runs the root command. Cobra skips PersistentPostRunE when RunE
// fails, so storage is closed here as well.
func Execute() error {
	err := rootCmd.Execute()
	if closeErr := closeRepo(); err == nil {
		err = closeErr
	}
	return err
}

func closeRepo() error {
	defer logging.Sync()
	if repo == nil {
		return nil
	}
	err := repo.Close()
	repo = nil
	return err
}

// engine builds a correlation engine over the open repository.
func engine() *analysis.Engine {
	return analysis.NewEngine(repo, thresholds)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror logs to stderr")
}
