package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect holds the SQL differences between database/sql backed adapters.
type Dialect interface {
	// DefaultSchema is used when the caller passes an empty schema.
	DefaultSchema() string
	// QuoteIdentifier quotes a single identifier.
	QuoteIdentifier(name string) string
	// QualifiedTable returns the quoted table reference.
	QualifiedTable(schemaName, tableName string) string
	// SelectLimited builds SELECT cols FROM from [WHERE where] bounded to n rows.
	SelectLimited(cols, from, where string, n int) string
	// DiscoverColumns reads column metadata from the catalog.
	DiscoverColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]ColumnMetadata, error)
}

// SQLProfiler implements TableProfiler over database/sql for any Dialect.
type SQLProfiler struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLProfiler wraps an open database. The profiler owns db and closes it.
func NewSQLProfiler(db *sql.DB, dialect Dialect) *SQLProfiler {
	return &SQLProfiler{db: db, dialect: dialect}
}

func (p *SQLProfiler) schema(schemaName string) string {
	if schemaName == "" {
		return p.dialect.DefaultSchema()
	}
	return schemaName
}

func (p *SQLProfiler) DefaultSchema() string {
	return p.dialect.DefaultSchema()
}

func (p *SQLProfiler) CountRecords(ctx context.Context, schemaName, tableName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.dialect.QualifiedTable(p.schema(schemaName), tableName))
	return p.count(ctx, query)
}

func (p *SQLProfiler) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error) {
	return p.dialect.DiscoverColumns(ctx, p.db, p.schema(schemaName), tableName)
}

func (p *SQLProfiler) CountNonNull(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(%s) FROM %s",
		p.dialect.QuoteIdentifier(columnName),
		p.dialect.QualifiedTable(p.schema(schemaName), tableName))
	return p.count(ctx, query)
}

func (p *SQLProfiler) CountDistinct(ctx context.Context, schemaName, tableName, columnName string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s",
		p.dialect.QuoteIdentifier(columnName),
		p.dialect.QualifiedTable(p.schema(schemaName), tableName))
	return p.count(ctx, query)
}

func (p *SQLProfiler) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return n, nil
}

func (p *SQLProfiler) DateRange(ctx context.Context, schemaName, tableName, columnName string) (*DateRange, error) {
	col := p.dialect.QuoteIdentifier(columnName)
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s WHERE %s IS NOT NULL",
		col, col, p.dialect.QualifiedTable(p.schema(schemaName), tableName), col)

	var minV, maxV any
	if err := p.db.QueryRowContext(ctx, query).Scan(&minV, &maxV); err != nil {
		return nil, fmt.Errorf("date range query: %w", err)
	}
	if minV == nil || maxV == nil {
		return nil, nil
	}

	oldest, ok := ParseTimeValue(minV)
	if !ok {
		return nil, fmt.Errorf("column %s: cannot interpret %v as a date", columnName, minV)
	}
	latest, ok := ParseTimeValue(maxV)
	if !ok {
		return nil, fmt.Errorf("column %s: cannot interpret %v as a date", columnName, maxV)
	}
	return &DateRange{Oldest: oldest, Latest: latest}, nil
}

func (p *SQLProfiler) SampleRecords(ctx context.Context, schemaName, tableName string, columns []string, limit int) ([]map[string]any, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = p.dialect.QuoteIdentifier(c)
	}
	query := p.dialect.SelectLimited(strings.Join(quoted, ", "),
		p.dialect.QualifiedTable(p.schema(schemaName), tableName), "", ClampLimit(limit))

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample query: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, c := range columns {
			record[c] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}
	return records, nil
}

func (p *SQLProfiler) SampleValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]any, error) {
	col := p.dialect.QuoteIdentifier(columnName)
	query := p.dialect.SelectLimited(col,
		p.dialect.QualifiedTable(p.schema(schemaName), tableName),
		col+" IS NOT NULL", ClampLimit(limit))

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample values query: %w", err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan sample value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample values: %w", err)
	}
	return values, nil
}

// Ping verifies the database is reachable.
func (p *SQLProfiler) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *SQLProfiler) Close() error {
	return p.db.Close()
}

var (
	_ TableProfiler = (*SQLProfiler)(nil)
	_ Pinger        = (*SQLProfiler)(nil)
)
