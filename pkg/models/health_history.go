package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HealthHistoryEntry is a persisted snapshot of a HealthReport.
type HealthHistoryEntry struct {
	ID                  uuid.UUID       `json:"id"`
	SchemaType          SchemaType      `json:"schema_type"`
	AssessmentType      string          `json:"assessment_type"`
	OverallScore        float64         `json:"overall_score"`
	HealthGrade         string          `json:"health_grade"`
	TotalRecords        int64           `json:"total_records"`
	CompletenessScore   *float64        `json:"completeness_score,omitempty"`
	UniquenessScore     *float64        `json:"uniqueness_score,omitempty"`
	ConsistencyScore    *float64        `json:"consistency_score,omitempty"`
	ValidityScore       *float64        `json:"validity_score,omitempty"`
	TimelinessScore     *float64        `json:"timeliness_score,omitempty"`
	ColumnAnalysis      json.RawMessage `json:"column_analysis"`
	SummaryData         json.RawMessage `json:"summary_data"`
	AssessmentTimestamp time.Time       `json:"assessment_timestamp"`
	CreatedAt           time.Time       `json:"created_at"`
}

// NewHealthHistoryEntry snapshots a report. Dimension scores are only set
// for dimensions at least one column contributed to.
func NewHealthHistoryEntry(report *HealthReport) (*HealthHistoryEntry, error) {
	columns, err := json.Marshal(report.ColumnAnalysis)
	if err != nil {
		return nil, err
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return nil, err
	}

	entry := &HealthHistoryEntry{
		ID:                  uuid.New(),
		SchemaType:          report.SchemaType,
		AssessmentType:      report.AssessmentType,
		OverallScore:        report.OverallHealth.Score,
		HealthGrade:         report.OverallHealth.Grade,
		TotalRecords:        report.TotalRecords,
		ColumnAnalysis:      columns,
		SummaryData:         summary,
		AssessmentTimestamp: report.AssessmentTimestamp,
	}

	score := func(d Dimension) *float64 {
		agg, ok := report.OverallHealth.Dimensions[d]
		if !ok || agg.ColumnsAssessed == 0 {
			return nil
		}
		s := agg.Score
		return &s
	}
	entry.CompletenessScore = score(DimensionCompleteness)
	entry.UniquenessScore = score(DimensionUniqueness)
	entry.ConsistencyScore = score(DimensionConsistency)
	entry.ValidityScore = score(DimensionValidity)
	entry.TimelinessScore = score(DimensionTimeliness)

	return entry, nil
}
