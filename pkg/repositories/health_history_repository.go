package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// HealthHistoryRepository persists assessment snapshots.
type HealthHistoryRepository interface {
	Create(ctx context.Context, entry *models.HealthHistoryEntry) error
	List(ctx context.Context, schemaType models.SchemaType, limit int) ([]*models.HealthHistoryEntry, error)
	Latest(ctx context.Context, schemaType models.SchemaType) (*models.HealthHistoryEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type healthHistoryRepository struct {
	db DBTX
}

func NewHealthHistoryRepository(db DBTX) HealthHistoryRepository {
	return &healthHistoryRepository{db: db}
}

var _ HealthHistoryRepository = (*healthHistoryRepository)(nil)

const historyColumns = `
		id, schema_type, assessment_type, overall_score, health_grade, total_records,
		completeness_score, uniqueness_score, consistency_score, validity_score, timeliness_score,
		column_analysis, summary_data, assessment_timestamp, created_at`

func (r *healthHistoryRepository) Create(ctx context.Context, entry *models.HealthHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO data_health_history (
			id, schema_type, assessment_type, overall_score, health_grade, total_records,
			completeness_score, uniqueness_score, consistency_score, validity_score, timeliness_score,
			column_analysis, summary_data, assessment_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		entry.ID,
		string(entry.SchemaType),
		entry.AssessmentType,
		entry.OverallScore,
		entry.HealthGrade,
		entry.TotalRecords,
		entry.CompletenessScore,
		entry.UniquenessScore,
		entry.ConsistencyScore,
		entry.ValidityScore,
		entry.TimelinessScore,
		[]byte(entry.ColumnAnalysis),
		[]byte(entry.SummaryData),
		entry.AssessmentTimestamp,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create health history entry: %w", err)
	}
	return nil
}

func (r *healthHistoryRepository) List(ctx context.Context, schemaType models.SchemaType, limit int) ([]*models.HealthHistoryEntry, error) {
	query := `SELECT` + historyColumns + `
		FROM data_health_history
		WHERE schema_type = $1
		ORDER BY assessment_timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, string(schemaType), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list health history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HealthHistoryEntry{}
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health history: %w", err)
	}
	return entries, nil
}

func (r *healthHistoryRepository) Latest(ctx context.Context, schemaType models.SchemaType) (*models.HealthHistoryEntry, error) {
	query := `SELECT` + historyColumns + `
		FROM data_health_history
		WHERE schema_type = $1
		ORDER BY assessment_timestamp DESC
		LIMIT 1`

	entry, err := scanHistoryEntry(r.db.QueryRow(ctx, query, string(schemaType)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("health history for %s: %w", schemaType, apperrors.ErrNotFound)
	}
	return entry, err
}

func (r *healthHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM data_health_history WHERE assessment_timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete health history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanHistoryEntry(row pgx.Row) (*models.HealthHistoryEntry, error) {
	var (
		entry      models.HealthHistoryEntry
		schemaType string
		columns    []byte
		summary    []byte
	)
	err := row.Scan(
		&entry.ID, &schemaType, &entry.AssessmentType, &entry.OverallScore, &entry.HealthGrade, &entry.TotalRecords,
		&entry.CompletenessScore, &entry.UniquenessScore, &entry.ConsistencyScore, &entry.ValidityScore, &entry.TimelinessScore,
		&columns, &summary, &entry.AssessmentTimestamp, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan health history entry: %w", err)
	}
	entry.SchemaType = models.SchemaType(schemaType)
	entry.ColumnAnalysis = columns
	entry.SummaryData = summary
	return &entry, nil
}
