// ABOUTME: MCP server setup for the bikey ride tracker.
// ABOUTME: Wraps the MCP server around the ride engine.
package mcp

import (
	"context"

	"github.com/harperreed/bikey/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with engine access.
type Server struct {
	mcpServer *mcp.Server
	eng       *engine.Engine
}

// NewServer creates a new MCP server over the given engine.
func NewServer(eng *engine.Engine, version string) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "bikey",
			Version: version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		eng:       eng,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
