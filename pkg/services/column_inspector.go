package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// InspectColumns enumerates the assessable columns of a table in ordinal
// order. System columns are excluded. A table with no columns left is
// reported as ErrTableNotFound.
func InspectColumns(
	ctx context.Context,
	profiler datasource.TableProfiler,
	schemaName, tableName string,
	schemaType models.SchemaType,
) ([]models.ColumnDescriptor, error) {
	metadata, err := profiler.DiscoverColumns(ctx, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", tableName, err)
	}

	columns := make([]models.ColumnDescriptor, 0, len(metadata))
	for _, m := range metadata {
		if models.SystemColumns[strings.ToLower(m.ColumnName)] {
			continue
		}
		columns = append(columns, models.ColumnDescriptor{
			Name:       m.ColumnName,
			DataType:   m.DataType,
			Nullable:   m.IsNullable,
			PrimaryKey: m.IsPrimaryKey,
			IsCritical: schemaType.IsCritical(m.ColumnName),
		})
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTableNotFound, tableName)
	}
	return columns, nil
}
