// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for AI assistant integration.
package main

import (
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to log episodes and read your analysis
through a standardized protocol. The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "migraine": {
        "command": "migraine",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  add_episode                 Start an episode
  log_intensity               Record a new intensity reading
  close_episode               Mark an episode as ended
  list_episodes               List recent episodes
  get_episode                 Episode with history and stats
  delete_episode              Delete an episode
  record_daily_metric         Record sleep, stress, HRV, body battery
  record_weather              Record pressure, temperature, humidity
  analyze_correlations        Run every correlation analyzer
  intensity_stats             Stats for one episode
  typical_intensity_pattern   How a typical episode unfolds

AVAILABLE RESOURCES:

  migraine://recent         Last 10 episodes
  migraine://correlations   Current findings
  migraine://summary        Counts, ongoing episode, typical pattern`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(repo, thresholds)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
