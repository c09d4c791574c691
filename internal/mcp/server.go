// ABOUTME: MCP server setup for the migraine log.
// ABOUTME: Wraps the MCP server with storage and correlation engine access.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/storage"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	repo      storage.Repository
	engine    *analysis.Engine
	now       func() time.Time
}

// NewServer creates a new MCP server with the given storage and thresholds.
func NewServer(repo storage.Repository, th analysis.Thresholds) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "migraine",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		repo:      repo,
		engine:    analysis.NewEngine(repo, th),
		now:       time.Now,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
