package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Tool call outcomes.
const (
	outcomeSuccess   = "success"
	outcomeToolError = "tool_error"
	outcomeFailure   = "failure"
)

// ToolMetrics records MCP tool calls through mcp-go hooks.
type ToolMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolMetrics creates the collectors and registers them with reg.
func NewToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	m := &ToolMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekaya_health",
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ekaya_health",
			Name:      "mcp_tool_call_duration_seconds",
			Help:      "MCP tool call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration)
	}
	return m
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (m *ToolMetrics) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(m.beforeCallTool)
	hooks.AddAfterCallTool(m.afterCallTool)
	hooks.AddOnError(m.onError)
	return hooks
}

func (m *ToolMetrics) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	m.startTimes.Store(id, time.Now())
}

func (m *ToolMetrics) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := outcomeSuccess
	if result != nil && result.IsError {
		outcome = outcomeToolError
	}
	m.observe(id, req.Params.Name, outcome)
}

func (m *ToolMetrics) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, _ error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	m.observe(id, req.Params.Name, outcomeFailure)
}

func (m *ToolMetrics) observe(id any, tool, outcome string) {
	m.calls.WithLabelValues(tool, outcome).Inc()
	if v, ok := m.startTimes.LoadAndDelete(id); ok {
		m.duration.WithLabelValues(tool).Observe(time.Since(v.(time.Time)).Seconds())
	}
}
