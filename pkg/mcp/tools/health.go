package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks that the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status and version, and the database state
// when db is non-nil.
func RegisterHealthTool(s *server.MCPServer, version string, db Pinger) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		if db != nil {
			pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				result.Status = "degraded"
				result.Database = "unavailable"
			} else {
				result.Database = "ok"
			}
		}
		return jsonResult(result)
	})
}
