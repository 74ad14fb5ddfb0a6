package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// QualityAlertFilters narrows ListAlerts.
type QualityAlertFilters struct {
	SchemaType models.SchemaType // empty for all
	OnlyOpen   bool
	Limit      int
}

// QualityAlertRepository persists threshold alerts. Alerts are append-only
// apart from being marked resolved.
type QualityAlertRepository interface {
	CreateAlerts(ctx context.Context, alerts []*models.QualityAlert) error
	ListAlerts(ctx context.Context, filters QualityAlertFilters) ([]*models.QualityAlert, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID) error
}

type qualityAlertRepository struct {
	db DBTX
}

func NewQualityAlertRepository(db DBTX) QualityAlertRepository {
	return &qualityAlertRepository{db: db}
}

var _ QualityAlertRepository = (*qualityAlertRepository)(nil)

func (r *qualityAlertRepository) CreateAlerts(ctx context.Context, alerts []*models.QualityAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, alert := range alerts {
		if alert.ID == uuid.Nil {
			alert.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO data_quality_alerts (
				id, history_id, schema_type, column_name, alert_type,
				threshold_value, actual_value, severity, message
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`,
			alert.ID, alert.HistoryID, string(alert.SchemaType), alert.ColumnName, alert.AlertType,
			alert.ThresholdValue, alert.ActualValue, string(alert.Severity), alert.Message,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&alert.CreatedAt)
		})
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create quality alerts: %w", err)
	}
	return nil
}

func (r *qualityAlertRepository) ListAlerts(ctx context.Context, filters QualityAlertFilters) ([]*models.QualityAlert, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filters.SchemaType != "" {
		conditions = append(conditions, fmt.Sprintf("schema_type = $%d", argIdx))
		args = append(args, string(filters.SchemaType))
		argIdx++
	}
	if filters.OnlyOpen {
		conditions = append(conditions, "resolved = FALSE")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, history_id, schema_type, column_name, alert_type,
		       threshold_value, actual_value, severity, message,
		       resolved, resolved_at, created_at
		FROM data_quality_alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, where, argIdx)
	args = append(args, normalizeLimit(filters.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.QualityAlert{}
	for rows.Next() {
		var (
			alert      models.QualityAlert
			schemaType string
			severity   string
		)
		if err := rows.Scan(
			&alert.ID, &alert.HistoryID, &schemaType, &alert.ColumnName, &alert.AlertType,
			&alert.ThresholdValue, &alert.ActualValue, &severity, &alert.Message,
			&alert.Resolved, &alert.ResolvedAt, &alert.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quality alert: %w", err)
		}
		alert.SchemaType = models.SchemaType(schemaType)
		alert.Severity = models.Severity(severity)
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quality alerts: %w", err)
	}
	return alerts, nil
}

func (r *qualityAlertRepository) ResolveAlert(ctx context.Context, alertID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE data_quality_alerts
		SET resolved = TRUE, resolved_at = NOW()
		WHERE id = $1 AND resolved = FALSE`, alertID)
	if err != nil {
		return fmt.Errorf("failed to resolve quality alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open alert %s: %w", alertID, apperrors.ErrNotFound)
	}
	return nil
}
