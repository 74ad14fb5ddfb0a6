package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

// dialect implements datasource.Dialect for SQLite files.
type dialect struct{}

func (dialect) DefaultSchema() string {
	return "main"
}

func (dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d dialect) QualifiedTable(schemaName, tableName string) string {
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(tableName)
}

func (dialect) SelectLimited(cols, from, where string, n int) string {
	q := fmt.Sprintf("SELECT %s FROM %s", cols, from)
	if where != "" {
		q += " WHERE " + where
	}
	return fmt.Sprintf("%s LIMIT %d", q, n)
}

func (dialect) DiscoverColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`

	rows, err := db.QueryContext(ctx, query, tableName, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var cid, notNull, pk int
		var col datasource.ColumnMetadata
		if err := rows.Scan(&cid, &col.ColumnName, &col.DataType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.DataType = strings.ToLower(col.DataType)
		col.IsNullable = notNull == 0
		col.IsPrimaryKey = pk > 0
		col.OrdinalPosition = cid + 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// Open opens the SQLite database at path. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*datasource.SQLProfiler, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return datasource.NewSQLProfiler(db, dialect{}), nil
}
