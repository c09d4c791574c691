// ABOUTME: MCP resource implementations for the migraine log.
// ABOUTME: Provides migraine://recent, migraine://correlations and migraine://summary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/models"
)

func (s *Server) registerResources() {
	// migraine://recent - last 10 episodes
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "migraine://recent",
		Name:        "Recent Episodes",
		Description: "Last 10 migraine episodes with intensity stats",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "migraine://correlations",
		Name:        "Correlation Findings",
		Description: "Current findings linking episodes to sleep, stress, HRV, body battery, triggers and weather",
		MIMEType:    "application/json",
	}, s.handleCorrelationsResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "migraine://summary",
		Name:        "Migraine Summary",
		Description: "Episode counts, ongoing episode and typical intensity pattern",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	episodes, err := s.repo.ListEpisodes(10)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	now := s.now()
	out := make([]episodeSummary, len(episodes))
	for i, e := range episodes {
		out[i] = summarize(e, now)
	}

	return jsonResource("migraine://recent", map[string]interface{}{
		"episodes": out,
	})
}

func (s *Server) handleCorrelationsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	report, err := s.engine.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	analysis.SortByPercentage(report.Findings)

	return jsonResource("migraine://correlations", map[string]interface{}{
		"generated_at": s.now().Format(time.RFC3339),
		"findings":     report.Findings,
		"failures":     report.Failures,
	})
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	episodes, err := s.repo.ListEpisodes(0)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	now := s.now()
	last30 := now.AddDate(0, 0, -30)
	var recent int
	var ongoing *models.Episode
	for _, e := range episodes {
		if !e.StartTime.Before(last30) {
			recent++
		}
		if ongoing == nil && e.IsOngoing() {
			ongoing = e
		}
	}

	pattern, err := s.engine.AnalyzeTypicalIntensityPattern(ctx)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"generated_at":   now.Format(time.RFC3339),
		"total_episodes": len(episodes),
		"last_30_days":   recent,
		"typical":        pattern,
	}
	if len(episodes) > 0 {
		result["last_episode"] = summarize(episodes[0], now)
	}
	if ongoing != nil {
		result["ongoing"] = summarize(ongoing, now)
	}

	return jsonResource("migraine://summary", result)
}
