package postgres

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxConns int32
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Host:     datasource.ConfigString(config, "host"),
		Port:     datasource.ConfigInt(config, "port", DefaultPort()),
		User:     datasource.ConfigString(config, "user"),
		Password: datasource.ConfigString(config, "password"),
		Database: datasource.ConfigString(config, "database"),
		Schema:   datasource.ConfigString(config, "schema"),
		SSLMode:  datasource.ConfigString(config, "ssl_mode"),
		MaxConns: int32(datasource.ConfigInt(config, "max_conns", 10)),
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	return cfg, nil
}
