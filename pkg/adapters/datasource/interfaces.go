// Package datasource defines the read-only access the health engine needs
// from a tabular store and the registry of adapters that provide it.
package datasource

import (
	"context"
	"time"
)

// MaxSampleLimit caps any sample request regardless of configuration.
const MaxSampleLimit = 10000

// ColumnMetadata describes a column discovered from the catalog.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// DateRange is the oldest and latest non-null value of a date/time column.
type DateRange struct {
	Oldest time.Time
	Latest time.Time
}

// TableProfiler runs the aggregate and sampling queries used to score a
// table. Implementations never write to the datasource. Identifiers are
// always quoted by the implementation.
type TableProfiler interface {
	// DefaultSchema is the schema used when the caller passes an empty one.
	DefaultSchema() string

	// CountRecords returns the number of rows in the table.
	CountRecords(ctx context.Context, schemaName, tableName string) (int64, error)

	// DiscoverColumns returns the table's columns in ordinal order.
	// An empty result means the table does not exist.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// CountNonNull returns the number of rows where the column is not null.
	CountNonNull(ctx context.Context, schemaName, tableName, columnName string) (int64, error)

	// CountDistinct returns the number of distinct non-null values.
	CountDistinct(ctx context.Context, schemaName, tableName, columnName string) (int64, error)

	// DateRange returns min and max of a date/time column, or nil when the
	// column has no non-null values.
	DateRange(ctx context.Context, schemaName, tableName, columnName string) (*DateRange, error)

	// SampleRecords fetches up to limit unordered rows restricted to columns.
	SampleRecords(ctx context.Context, schemaName, tableName string, columns []string, limit int) ([]map[string]any, error)

	// SampleValues fetches up to limit non-null values of one column.
	SampleValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]any, error)

	// Close releases the connection pool.
	Close() error
}

// Pinger is implemented by profilers that can check connectivity without
// touching a table.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClampLimit bounds a sample size to [1, MaxSampleLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxSampleLimit {
		return MaxSampleLimit
	}
	return limit
}
