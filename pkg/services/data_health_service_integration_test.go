//go:build integration

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/testhelpers"
)

func TestDataHealthService_AssessAgainstPostgres(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.SeedSafetyEvents(t, testDB.Pool, "it_srs_events")

	svc := NewDataHealthService(
		postgres.NewAdapterFromPool(testDB.Pool, "public"),
		NewStaticSemanticProvider(nil),
		NewDimensionSelector(nil, SelectorConfig{}, nil, zap.NewNop()),
		DataHealthConfig{Tables: map[string]string{"srs": "it_srs_events"}},
		nil,
		zap.NewNop(),
	)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, models.SchemaSRS, report.SchemaType)
	assert.Equal(t, int64(10), report.TotalRecords)
	assert.NotContains(t, report.ColumnAnalysis, "id")
	assert.NotContains(t, report.ColumnAnalysis, "created_at")

	eventID := report.ColumnAnalysis["event_id"]
	require.NotNil(t, eventID)
	assert.True(t, eventID.IsCritical)
	require.NotNil(t, eventID.Uniqueness)
	assert.Equal(t, 90.0, eventID.Uniqueness.Score)

	reporter := report.ColumnAnalysis["reporter_name"]
	require.NotNil(t, reporter)
	require.NotNil(t, reporter.Completeness)
	assert.Equal(t, 80.0, reporter.Completeness.Score)

	reported := report.ColumnAnalysis["reported_date"]
	require.NotNil(t, reported)
	require.NotNil(t, reported.Validity)
	assert.Less(t, reported.Validity.Score, 100.0, "the future-dated report is invalid")
	assert.NotNil(t, reported.Timeliness)
}
