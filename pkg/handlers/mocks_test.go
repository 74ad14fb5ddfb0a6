package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// mockDataHealthService returns fixed reports per schema type.
type mockDataHealthService struct {
	reports map[string]*models.HealthReport
	err     error
	llmRuns int
}

var _ services.DataHealthService = (*mockDataHealthService)(nil)

func (m *mockDataHealthService) Assess(ctx context.Context, schemaType string) (*models.HealthReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	st, err := models.ParseSchemaType(schemaType)
	if err != nil {
		return nil, err
	}
	if report, ok := m.reports[string(st)]; ok {
		return report, nil
	}
	return services.EmptyReport(st, models.AssessmentStandard, time.Now()), nil
}

func (m *mockDataHealthService) AssessLLM(ctx context.Context, schemaType string) (*models.HealthReport, error) {
	m.llmRuns++
	return m.Assess(ctx, schemaType)
}

func (m *mockDataHealthService) Status() *services.HealthStatus {
	return &services.HealthStatus{
		AvailableSchemas:     models.SchemaTypes,
		AssessmentDimensions: models.AllDimensions,
		DimensionWeights:     models.DimensionWeights(),
		APIVersion:           services.APIVersion,
	}
}

// mockHistoryService keeps entries and alerts in memory.
type mockHistoryService struct {
	entries   []*models.HealthHistoryEntry
	alerts    []*models.QualityAlert
	recordErr error
	lastOpen  *bool
}

var _ services.HealthHistoryService = (*mockHistoryService)(nil)

func (m *mockHistoryService) Record(ctx context.Context, report *models.HealthReport) (*models.HealthHistoryEntry, []*models.QualityAlert, error) {
	if m.recordErr != nil {
		return nil, nil, m.recordErr
	}
	entry, err := models.NewHealthHistoryEntry(report)
	if err != nil {
		return nil, nil, err
	}
	m.entries = append(m.entries, entry)
	alerts := services.EvaluateAlerts(report, services.DefaultAlertThresholds(), entry.ID)
	m.alerts = append(m.alerts, alerts...)
	return entry, alerts, nil
}

func (m *mockHistoryService) List(ctx context.Context, schemaType string, limit int) ([]*models.HealthHistoryEntry, error) {
	st, err := models.ParseSchemaType(schemaType)
	if err != nil {
		return nil, err
	}
	var out []*models.HealthHistoryEntry
	for _, e := range m.entries {
		if e.SchemaType == st {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistoryService) Latest(ctx context.Context, schemaType string) (*models.HealthHistoryEntry, error) {
	list, err := m.List(ctx, schemaType, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("latest %s: %w", schemaType, apperrors.ErrNotFound)
	}
	return list[len(list)-1], nil
}

func (m *mockHistoryService) Alerts(ctx context.Context, schemaType string, onlyOpen bool, limit int) ([]*models.QualityAlert, error) {
	m.lastOpen = &onlyOpen
	if schemaType != "" {
		if _, err := models.ParseSchemaType(schemaType); err != nil {
			return nil, err
		}
	}
	return m.alerts, nil
}

func (m *mockHistoryService) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.Resolved = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", alertID, apperrors.ErrNotFound)
}

// weakReport is an SRS report whose critical event_id column fails.
func weakReport() *models.HealthReport {
	return &models.HealthReport{
		SchemaType:     models.SchemaSRS,
		AssessmentType: models.AssessmentStandard,
		TotalRecords:   40,
		OverallHealth: models.OverallHealth{
			Score: 42,
			Grade: "Bad",
			Dimensions: map[models.Dimension]models.DimensionAggregate{
				models.DimensionCompleteness: {Score: 42, Weight: 25, ColumnsAssessed: 1},
			},
		},
		ColumnAnalysis: map[string]*models.ColumnHealth{
			"event_id": {OverallColumnScore: 42, IsCritical: true, Completeness: &models.CompletenessResult{Score: 42}},
		},
		Summary: models.Summary{
			TopIssues: []models.Issue{
				{Severity: models.SeverityHigh, Column: "event_id", Issue: "58.0% missing values"},
				{Severity: models.SeverityLow, Column: "event_id", Issue: "1 invalid values"},
			},
		},
	}
}
