package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalBoolWithDefault extracts an optional boolean parameter, returning
// def when it is absent or not a boolean.
func getOptionalBoolWithDefault(req mcp.CallToolRequest, key string, def bool) bool {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(bool); ok {
			return val
		}
	}
	return def
}
