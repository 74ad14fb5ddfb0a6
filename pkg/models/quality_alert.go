package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert types raised after an assessment.
const (
	AlertTypeOverallScore   = "overall_score"
	AlertTypeDimensionScore = "dimension_score"
	AlertTypeCriticalColumn = "critical_column"
)

// QualityAlert is an append-only record of a score crossing a threshold.
type QualityAlert struct {
	ID             uuid.UUID  `json:"id"`
	HistoryID      *uuid.UUID `json:"history_id,omitempty"`
	SchemaType     SchemaType `json:"schema_type"`
	ColumnName     *string    `json:"column_name,omitempty"`
	AlertType      string     `json:"alert_type"`
	ThresholdValue float64    `json:"threshold_value"`
	ActualValue    float64    `json:"actual_value"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
