package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/repositories"
)

// AlertThresholds are the scores below which an alert is raised.
type AlertThresholds struct {
	OverallScore   float64
	DimensionScore float64
	CriticalColumn float64
}

// DefaultAlertThresholds returns the standard thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{OverallScore: 70, DimensionScore: 60, CriticalColumn: 60}
}

// Overall scores below this are high severity.
const overallHighSeverityBelow = 50

// HealthHistoryService stores assessment snapshots and the alerts they raise.
type HealthHistoryService interface {
	// Record persists a report and any alerts it triggers. Only a failed
	// snapshot write is an error; alerts that cannot be stored are logged.
	Record(ctx context.Context, report *models.HealthReport) (*models.HealthHistoryEntry, []*models.QualityAlert, error)
	List(ctx context.Context, schemaType string, limit int) ([]*models.HealthHistoryEntry, error)
	Latest(ctx context.Context, schemaType string) (*models.HealthHistoryEntry, error)
	Alerts(ctx context.Context, schemaType string, onlyOpen bool, limit int) ([]*models.QualityAlert, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID) error
}

type healthHistoryService struct {
	historyRepo repositories.HealthHistoryRepository
	alertRepo   repositories.QualityAlertRepository
	thresholds  AlertThresholds
	logger      *zap.Logger
}

func NewHealthHistoryService(
	historyRepo repositories.HealthHistoryRepository,
	alertRepo repositories.QualityAlertRepository,
	thresholds AlertThresholds,
	logger *zap.Logger,
) HealthHistoryService {
	return &healthHistoryService{
		historyRepo: historyRepo,
		alertRepo:   alertRepo,
		thresholds:  thresholds,
		logger:      logger.Named("health-history"),
	}
}

var _ HealthHistoryService = (*healthHistoryService)(nil)

func (s *healthHistoryService) Record(ctx context.Context, report *models.HealthReport) (*models.HealthHistoryEntry, []*models.QualityAlert, error) {
	entry, err := models.NewHealthHistoryEntry(report)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot report: %w", err)
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		return nil, nil, err
	}

	// The snapshot is already stored, so an alert write failure keeps the
	// entry and reports no alerts.
	alerts := EvaluateAlerts(report, s.thresholds, entry.ID)
	if err := s.alertRepo.CreateAlerts(ctx, alerts); err != nil {
		s.logger.Warn("Failed to store quality alerts",
			zap.String("history_id", entry.ID.String()),
			zap.Int("alerts", len(alerts)),
			zap.Error(err))
		return entry, nil, nil
	}

	s.logger.Info("Recorded health assessment",
		zap.String("history_id", entry.ID.String()),
		zap.String("schema_type", string(report.SchemaType)),
		zap.Float64("overall_score", report.OverallHealth.Score),
		zap.Int("alerts", len(alerts)))
	return entry, alerts, nil
}

func (s *healthHistoryService) List(ctx context.Context, schemaType string, limit int) ([]*models.HealthHistoryEntry, error) {
	st, err := models.ParseSchemaType(schemaType)
	if err != nil {
		return nil, err
	}
	return s.historyRepo.List(ctx, st, limit)
}

func (s *healthHistoryService) Latest(ctx context.Context, schemaType string) (*models.HealthHistoryEntry, error) {
	st, err := models.ParseSchemaType(schemaType)
	if err != nil {
		return nil, err
	}
	return s.historyRepo.Latest(ctx, st)
}

func (s *healthHistoryService) Alerts(ctx context.Context, schemaType string, onlyOpen bool, limit int) ([]*models.QualityAlert, error) {
	filters := repositories.QualityAlertFilters{OnlyOpen: onlyOpen, Limit: limit}
	if schemaType != "" {
		st, err := models.ParseSchemaType(schemaType)
		if err != nil {
			return nil, err
		}
		filters.SchemaType = st
	}
	return s.alertRepo.ListAlerts(ctx, filters)
}

func (s *healthHistoryService) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	return s.alertRepo.ResolveAlert(ctx, alertID)
}

// EvaluateAlerts compares a report against thresholds. Only dimensions at
// least one column was assessed on can alert. An empty report raises nothing.
func EvaluateAlerts(report *models.HealthReport, thresholds AlertThresholds, historyID uuid.UUID) []*models.QualityAlert {
	alerts := []*models.QualityAlert{}
	if report.TotalRecords == 0 {
		return alerts
	}

	var hid *uuid.UUID
	if historyID != uuid.Nil {
		hid = &historyID
	}
	newAlert := func(alertType string, column *string, threshold, actual float64, severity models.Severity, msg string) {
		alerts = append(alerts, &models.QualityAlert{
			ID:             uuid.New(),
			HistoryID:      hid,
			SchemaType:     report.SchemaType,
			ColumnName:     column,
			AlertType:      alertType,
			ThresholdValue: threshold,
			ActualValue:    actual,
			Severity:       severity,
			Message:        msg,
		})
	}

	if score := report.OverallHealth.Score; score < thresholds.OverallScore {
		severity := models.SeverityMedium
		if score < overallHighSeverityBelow {
			severity = models.SeverityHigh
		}
		newAlert(models.AlertTypeOverallScore, nil, thresholds.OverallScore, score, severity,
			fmt.Sprintf("Overall health score %.1f is below %.1f", score, thresholds.OverallScore))
	}

	for _, d := range models.AllDimensions {
		agg, ok := report.OverallHealth.Dimensions[d]
		if !ok || agg.ColumnsAssessed == 0 || agg.Score >= thresholds.DimensionScore {
			continue
		}
		newAlert(models.AlertTypeDimensionScore, nil, thresholds.DimensionScore, agg.Score, models.SeverityMedium,
			fmt.Sprintf("%s score %.1f is below %.1f", d, agg.Score, thresholds.DimensionScore))
	}

	for _, name := range sortedColumnNames(report.ColumnAnalysis) {
		ch := report.ColumnAnalysis[name]
		if !report.SchemaType.IsCritical(name) || ch.OverallColumnScore >= thresholds.CriticalColumn {
			continue
		}
		column := name
		newAlert(models.AlertTypeCriticalColumn, &column, thresholds.CriticalColumn, ch.OverallColumnScore, models.SeverityHigh,
			fmt.Sprintf("Critical column %s scored %.1f, below %.1f", name, ch.OverallColumnScore, thresholds.CriticalColumn))
	}
	return alerts
}
