package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// ServerName is the name the MCP server reports during initialization.
const ServerName = "ekaya-health"

// Server wraps the mcp-go MCPServer with the data health tools registered.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// ServerDeps holds what the registered tools need.
type ServerDeps struct {
	Health         services.DataHealthService
	PingDatasource tools.PingFunc
	// ToolMetrics is optional. When set its hooks are installed on the server.
	ToolMetrics *ToolMetrics
}

// NewServer creates a new MCP server instance with no tools registered.
func NewServer(name, version string, logger *zap.Logger, opts ...server.ServerOption) *Server {
	opts = append([]server.ServerOption{server.WithToolCapabilities(true)}, opts...)
	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger,
	}
}

// NewDataHealthServer creates the MCP server exposing the assessment tools.
func NewDataHealthServer(version string, deps *ServerDeps, logger *zap.Logger) *Server {
	var opts []server.ServerOption
	if deps.ToolMetrics != nil {
		opts = append(opts, server.WithHooks(deps.ToolMetrics.Hooks()))
	}
	s := NewServer(ServerName, version, logger, opts...)

	tools.RegisterHealthTool(s.mcp, version, deps.PingDatasource)
	tools.RegisterDataHealthTools(s.mcp, &tools.DataHealthToolDeps{Health: deps.Health})

	logger.Debug("MCP tools registered",
		zap.Strings("tools", []string{"health", "assess_data_health", "assess_data_health_llm", "list_health_schemas"}))
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
