package sqlite

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Local SQLite extracts of incident tables",
		},
		Factory: func(ctx context.Context, config map[string]any) (datasource.TableProfiler, error) {
			path := datasource.ConfigString(config, "path")
			if path == "" {
				return nil, fmt.Errorf("path is required")
			}
			return Open(ctx, path)
		},
	})
}
