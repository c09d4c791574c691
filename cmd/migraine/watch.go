// ABOUTME: CLI command that watches an inbox directory for wearable exports.
// ABOUTME: Imports files as they arrive and sorts them into processed/ and failed/.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/importer"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Import wearable exports dropped into a directory",
	Long: `Watch a directory and import every JSON or YAML export written to it.

Files already in the directory are imported first. Imported files move to
processed/, files that fail to parse or validate move to failed/.
Stop with Ctrl-C.

Examples:
  migraine watch ~/Downloads/wearable
  migraine watch ~/inbox --once      # Import what's there and exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := importer.NewWatcher(repo, args[0])
		if err != nil {
			return err
		}

		handle := func(res importer.Result, err error) {
			if err != nil {
				color.Red("✗ %s: %v", res.Path, err)
				return
			}
			printImport(res)
		}

		if watchOnce {
			return w.ImportPending(handle)
		}

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
		if err := w.Run(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "import pending files and exit")
	rootCmd.AddCommand(watchCmd)
}
