package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

// Config contains SQL Server connection options (SQL authentication).
type Config struct {
	Host                   string
	Port                   int
	Database               string
	Schema                 string
	Username               string
	Password               string
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
	MaxConns               int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Host:              datasource.ConfigString(config, "host"),
		Port:              datasource.ConfigInt(config, "port", DefaultPort()),
		Database:          datasource.ConfigString(config, "database"),
		Schema:            datasource.ConfigString(config, "schema"),
		Username:          datasource.ConfigString(config, "user"),
		Password:          datasource.ConfigString(config, "password"),
		Encrypt:           true,
		ConnectionTimeout: datasource.ConfigInt(config, "connection_timeout", 30),
		MaxConns:          datasource.ConfigInt(config, "max_conns", 10),
	}

	switch datasource.ConfigString(config, "ssl_mode") {
	case "disable":
		cfg.Encrypt = false
	case "trust":
		cfg.TrustServerCertificate = true
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("user is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "dbo"
	}
	return cfg, nil
}

// connectionURL builds the sqlserver:// DSN understood by go-mssqldb.
func (c *Config) connectionURL() string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", fmt.Sprintf("%t", c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}
	query.Add("app name", "ekaya-health")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
