package datasource

import (
	"context"
	"fmt"
)

// Open creates a TableProfiler for dsType using the global registry.
func Open(ctx context.Context, dsType string, config map[string]any) (TableProfiler, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (adapter not registered)", dsType)
	}
	return factory(ctx, config)
}

// ConfigString reads an optional string from a config map.
func ConfigString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigInt reads an optional integer from a config map. JSON numbers
// arrive as float64.
func ConfigInt(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
