package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-health.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Datasource is the database holding the safety event tables being assessed.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Database is the engine's own PostgreSQL store for history and alerts.
	Database DatabaseConfig `yaml:"database"`

	LLM        LLMConfig        `yaml:"llm"`
	DataHealth DataHealthConfig `yaml:"data_health"`
	History    HistoryConfig    `yaml:"history"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// DatasourceConfig describes the assessed database.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"` // postgres, sqlserver or sqlite
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 selects the adapter default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Name     string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	Schema   string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSLMODE" env-default:"disable"`
	Path     string `yaml:"path" env:"DATASOURCE_PATH" env-default:""` // sqlite file
	MaxConns int32  `yaml:"max_conns" env:"DATASOURCE_MAX_CONNS" env-default:"10"`
}

// AdapterConfig converts the datasource settings into the map consumed by
// adapter factories.
func (d *DatasourceConfig) AdapterConfig() map[string]any {
	m := map[string]any{
		"host":      d.Host,
		"user":      d.User,
		"password":  d.Password,
		"database":  d.Name,
		"schema":    d.Schema,
		"ssl_mode":  d.SSLMode,
		"path":      d.Path,
		"max_conns": int(d.MaxConns),
	}
	if d.Port > 0 {
		m["port"] = d.Port
	}
	return m
}

// DatabaseConfig holds PostgreSQL configuration for the engine store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_health"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a postgres URL for pgx and golang-migrate.
func (d *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// LLMConfig selects the model used for dimension selection. An empty model
// disables model calls and every column uses the default selection.
type LLMConfig struct {
	Provider       string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"` // openai, azure or anthropic
	BaseURL        string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model          string        `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey         string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	APIVersion     string        `yaml:"api_version" env:"LLM_API_VERSION" env-default:"2024-02-15-preview"`
	MaxConcurrent  int           `yaml:"max_concurrent" env:"LLM_MAX_CONCURRENT" env-default:"10"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`
}

// IsAvailable returns true if a model is configured.
func (c *LLMConfig) IsAvailable() bool {
	return c.Model != ""
}

// DataHealthConfig tunes the assessment engine.
type DataHealthConfig struct {
	MaxConcurrentDBOperations int           `yaml:"max_concurrent_db_operations" env:"HEALTH_MAX_CONCURRENT_DB" env-default:"5"`
	MaxConcurrentColumns      int           `yaml:"max_concurrent_columns" env:"HEALTH_MAX_CONCURRENT_COLUMNS" env-default:"8"`
	DimensionTimeout          time.Duration `yaml:"dimension_timeout" env:"HEALTH_DIMENSION_TIMEOUT" env-default:"30s"`
	SampleSize                int           `yaml:"sample_size" env:"HEALTH_SAMPLE_SIZE" env-default:"500"`
	SampleValuesPerColumn     int           `yaml:"sample_values_per_column" env:"HEALTH_SAMPLE_VALUES_PER_COLUMN" env-default:"100"`
	ColumnValueLimit          int           `yaml:"column_value_limit" env:"HEALTH_COLUMN_VALUE_LIMIT" env-default:"1000"`
	SemanticsPath             string        `yaml:"semantics_path" env:"HEALTH_SEMANTICS_PATH" env-default:"semantics.yaml"`

	// Tables overrides the table name per schema type (e.g. srs: srs_events).
	Tables map[string]string `yaml:"tables"`
}

// HistoryConfig controls persistence of reports and alert thresholds.
type HistoryConfig struct {
	Enabled                 bool    `yaml:"enabled" env:"HISTORY_ENABLED" env-default:"false"`
	OverallScoreThreshold   float64 `yaml:"overall_score_threshold" env:"HISTORY_OVERALL_THRESHOLD" env-default:"70"`
	DimensionScoreThreshold float64 `yaml:"dimension_score_threshold" env:"HISTORY_DIMENSION_THRESHOLD" env-default:"60"`
	CriticalColumnThreshold float64 `yaml:"critical_column_threshold" env:"HISTORY_CRITICAL_COLUMN_THRESHOLD" env-default:"60"`

	// RetentionDays bounds how long history rows are kept; 0 disables pruning.
	RetentionDays     int           `yaml:"retention_days" env:"HISTORY_RETENTION_DAYS" env-default:"90"`
	RetentionInterval time.Duration `yaml:"retention_interval" env:"HISTORY_RETENTION_INTERVAL" env-default:"24h"`
}

// SchedulerConfig runs assessments periodically. Requires history.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"false"`
	Cron           string `yaml:"cron" env:"SCHEDULER_CRON" env-default:"0 0 2 * * *"` // with seconds field
	SchemaTypesStr string `yaml:"schema_types" env:"SCHEDULER_SCHEMA_TYPES" env-default:"ei_tech,srs,ni_tct,ni_tct_augmented"`
	UseLLM         bool   `yaml:"use_llm" env:"SCHEDULER_USE_LLM" env-default:"false"`

	// SchemaTypes is the parsed list from SchemaTypesStr.
	SchemaTypes []string `yaml:"-"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads config.yaml with environment variable overrides.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultPath, version)
}

// LoadFrom reads the given YAML file with environment variable overrides.
// A missing file is not an error; configuration then comes from the
// environment and defaults alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.Scheduler.SchemaTypes = splitList(cfg.Scheduler.SchemaTypesStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Datasource.Host = ResolveHostForDocker(cfg.Datasource.Host)
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Datasource.Type {
	case "postgres", "sqlserver", "sqlite":
	default:
		return fmt.Errorf("unsupported datasource type %q", c.Datasource.Type)
	}
	if c.Datasource.Type == "sqlite" && c.Datasource.Path == "" {
		return fmt.Errorf("datasource.path is required for sqlite")
	}
	if c.DataHealth.SampleSize < 1 || c.DataHealth.SampleValuesPerColumn < 1 || c.DataHealth.ColumnValueLimit < 1 {
		return fmt.Errorf("data_health sample sizes must be positive")
	}
	if c.Scheduler.Enabled && !c.History.Enabled {
		return fmt.Errorf("scheduler requires history.enabled")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. Cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running
// inside a container so a datasource on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	if IsRunningInDocker() && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
