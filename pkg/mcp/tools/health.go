package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Datasource string `json:"datasource"`
}

// PingFunc checks a dependency. A nil PingFunc is treated as healthy.
type PingFunc func(ctx context.Context) error

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and datasource reachability.
func RegisterHealthTool(s *server.MCPServer, version string, pingDatasource PingFunc) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version, Datasource: "ok"}
		if pingDatasource != nil {
			if err := pingDatasource(ctx); err != nil {
				res.Status = "degraded"
				res.Datasource = err.Error()
			}
		}
		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
