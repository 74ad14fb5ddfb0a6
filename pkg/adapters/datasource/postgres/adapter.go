package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

// Adapter profiles PostgreSQL tables through a pgx pool.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are escaped so passwords containing @, /, # or ?
// survive URL parsing.
func buildConnectionString(cfg *Config) string {
	u := &url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

// NewAdapter opens a pool and verifies connectivity.
func NewAdapter(ctx context.Context, cfg *Config) (*Adapter, error) {
	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	// Assessments only read.
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &Adapter{config: cfg, pool: pool, ownedPool: true}, nil
}

// NewAdapterFromPool wraps an existing pool; Close leaves it open.
func NewAdapterFromPool(pool *pgxpool.Pool, schema string) *Adapter {
	if schema == "" {
		schema = "public"
	}
	return &Adapter{config: &Config{Schema: schema}, pool: pool}
}

// qualifiedTableName returns a properly quoted schema.table identifier.
func qualifiedTableName(schemaName, tableName string) string {
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (a *Adapter) schema(schemaName string) string {
	if schemaName == "" {
		return a.config.Schema
	}
	return schemaName
}

func (a *Adapter) DefaultSchema() string {
	return a.config.Schema
}

func (a *Adapter) CountRecords(ctx context.Context, schemaName, tableName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualifiedTableName(a.schema(schemaName), tableName))
	return a.count(ctx, query)
}

func (a *Adapter) CountNonNull(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(%s) FROM %s", quoteIdent(columnName), qualifiedTableName(a.schema(schemaName), tableName))
	return a.count(ctx, query)
}

func (a *Adapter) CountDistinct(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quoteIdent(columnName), qualifiedTableName(a.schema(schemaName), tableName))
	return a.count(ctx, query)
}

func (a *Adapter) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := a.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return n, nil
}

func (a *Adapter) DateRange(ctx context.Context, schemaName, tableName, columnName string) (*datasource.DateRange, error) {
	col := quoteIdent(columnName)
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s WHERE %s IS NOT NULL",
		col, col, qualifiedTableName(a.schema(schemaName), tableName), col)

	var oldest, latest *time.Time
	if err := a.pool.QueryRow(ctx, query).Scan(&oldest, &latest); err != nil {
		return nil, fmt.Errorf("date range query: %w", err)
	}
	if oldest == nil || latest == nil {
		return nil, nil
	}
	return &datasource.DateRange{Oldest: *oldest, Latest: *latest}, nil
}

func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			c.ordinal_position
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, a.schema(schemaName), tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		var ordinal int32
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &ordinal); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.OrdinalPosition = int(ordinal)
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (a *Adapter) SampleRecords(ctx context.Context, schemaName, tableName string, columns []string, limit int) ([]map[string]any, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d",
		strings.Join(quoted, ", "), qualifiedTableName(a.schema(schemaName), tableName), datasource.ClampLimit(limit))

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample query: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect sample rows: %w", err)
	}
	return records, nil
}

func (a *Adapter) SampleValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]any, error) {
	col := quoteIdent(columnName)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		col, qualifiedTableName(a.schema(schemaName), tableName), col, datasource.ClampLimit(limit))

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample values query: %w", err)
	}
	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (any, error) {
		vals, err := row.Values()
		if err != nil {
			return nil, err
		}
		if len(vals) != 1 {
			return nil, errors.New("expected a single column")
		}
		return vals[0], nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect sample values: %w", err)
	}
	return values, nil
}

// Ping verifies the server is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases the pool if the adapter created it.
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

var (
	_ datasource.TableProfiler = (*Adapter)(nil)
	_ datasource.Pinger        = (*Adapter)(nil)
)
