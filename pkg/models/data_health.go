package models

import (
	"math"
	"time"
)

// Assessment types reported on a HealthReport.
const (
	AssessmentStandard    = "standard"
	AssessmentLLMEnhanced = "llm_enhanced"
)

// GradeNotAvailable is the grade of a schema with no records.
const GradeNotAvailable = "N/A"

// Severity of a summary issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities for sorting; lower ranks sort first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// ColumnDescriptor describes an assessable column. Derived once from
// schema introspection and never modified.
type ColumnDescriptor struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
	IsCritical bool   `json:"is_critical"`
}

// CompletenessResult holds null counts for one column.
type CompletenessResult struct {
	Score          float64 `json:"score"`
	NullCount      int64   `json:"null_count"`
	NonNullCount   int64   `json:"non_null_count"`
	NullPercentage float64 `json:"null_percentage"`
	Error          string  `json:"error,omitempty"`
}

// UniquenessResult holds distinct counts for one column.
type UniquenessResult struct {
	Score          float64 `json:"score"`
	UniqueCount    int64   `json:"unique_count"`
	DuplicateCount int64   `json:"duplicate_count"`
	TotalNonNull   int64   `json:"total_non_null"`
	Error          string  `json:"error,omitempty"`
}

// ConsistencyResult holds format pattern checks over sampled values.
type ConsistencyResult struct {
	Score             float64 `json:"score"`
	PatternViolations int     `json:"pattern_violations"`
	TotalChecked      int     `json:"total_checked"`
	ConsistencyRate   float64 `json:"consistency_rate"`
	Error             string  `json:"error,omitempty"`
}

// ValidityResult holds business rule checks over sampled values.
type ValidityResult struct {
	Score         float64 `json:"score"`
	InvalidValues int     `json:"invalid_values"`
	TotalChecked  int     `json:"total_checked"`
	ValidityRate  float64 `json:"validity_rate"`
	Error         string  `json:"error,omitempty"`
}

// TimelinessResult holds freshness of a date/time column.
type TimelinessResult struct {
	Score           float64    `json:"score"`
	DaysSinceLatest int        `json:"days_since_latest"`
	AvgAgeDays      int        `json:"avg_age_days"`
	LatestDate      *time.Time `json:"latest_date"`
	OldestDate      *time.Time `json:"oldest_date"`
	FreshnessScore  float64    `json:"freshness_score"`
	Error           string     `json:"error,omitempty"`
}

// ColumnHealth is the assessment of a single column. Only the dimensions
// actually computed are set.
type ColumnHealth struct {
	DataType           string   `json:"data_type"`
	IsCritical         bool     `json:"is_critical"`
	OverallColumnScore float64  `json:"overall_column_score"`
	Issues             []string `json:"issues"`
	Recommendations    []string `json:"recommendations"`

	Completeness *CompletenessResult `json:"completeness,omitempty"`
	Uniqueness   *UniquenessResult   `json:"uniqueness,omitempty"`
	Consistency  *ConsistencyResult  `json:"consistency,omitempty"`
	Validity     *ValidityResult     `json:"validity,omitempty"`
	Timeliness   *TimelinessResult   `json:"timeliness,omitempty"`

	// Set on the LLM-guided path only.
	DimensionsChecked []Dimension          `json:"dimensions_checked,omitempty"`
	DimensionsSkipped []Dimension          `json:"dimensions_skipped,omitempty"`
	LLMReasoning      map[Dimension]string `json:"llm_reasoning,omitempty"`
	Priority          Priority             `json:"priority,omitempty"`

	// Error marks a column whose assessment failed as a whole.
	Error string `json:"error,omitempty"`
}

// DimensionScore returns the score of d and whether it was computed.
func (c *ColumnHealth) DimensionScore(d Dimension) (float64, bool) {
	switch d {
	case DimensionCompleteness:
		if c.Completeness != nil {
			return c.Completeness.Score, true
		}
	case DimensionUniqueness:
		if c.Uniqueness != nil {
			return c.Uniqueness.Score, true
		}
	case DimensionConsistency:
		if c.Consistency != nil {
			return c.Consistency.Score, true
		}
	case DimensionValidity:
		if c.Validity != nil {
			return c.Validity.Score, true
		}
	case DimensionTimeliness:
		if c.Timeliness != nil {
			return c.Timeliness.Score, true
		}
	}
	return 0, false
}

// Present returns the computed dimensions in canonical order.
func (c *ColumnHealth) Present() []Dimension {
	var out []Dimension
	for _, d := range AllDimensions {
		if _, ok := c.DimensionScore(d); ok {
			out = append(out, d)
		}
	}
	return out
}

// DimensionError returns the failure message recorded for d, if any.
func (c *ColumnHealth) DimensionError(d Dimension) string {
	switch d {
	case DimensionCompleteness:
		if c.Completeness != nil {
			return c.Completeness.Error
		}
	case DimensionUniqueness:
		if c.Uniqueness != nil {
			return c.Uniqueness.Error
		}
	case DimensionConsistency:
		if c.Consistency != nil {
			return c.Consistency.Error
		}
	case DimensionValidity:
		if c.Validity != nil {
			return c.Validity.Error
		}
	case DimensionTimeliness:
		if c.Timeliness != nil {
			return c.Timeliness.Error
		}
	}
	return ""
}

// DimensionAggregate is one dimension's average across columns.
type DimensionAggregate struct {
	Score           float64 `json:"score"`
	Weight          int     `json:"weight"`
	ColumnsAssessed int     `json:"columns_assessed"`
}

// OverallHealth is the report headline.
type OverallHealth struct {
	Score      float64                          `json:"score"`
	Grade      string                           `json:"grade"`
	Dimensions map[Dimension]DimensionAggregate `json:"dimensions"`
}

// CriticalFieldsSummary buckets critical columns by score.
type CriticalFieldsSummary struct {
	Total    int     `json:"total"`
	Healthy  int     `json:"healthy"`
	Warning  int     `json:"warning"`
	Critical int     `json:"critical"`
	AvgScore float64 `json:"avg_score"`
}

// Issue is a prioritized problem in the summary.
type Issue struct {
	Severity Severity `json:"severity"`
	Column   string   `json:"column"`
	Issue    string   `json:"issue"`
	Impact   string   `json:"impact"`
}

// Recommendations groups remediation advice by urgency.
type Recommendations struct {
	Immediate          []string `json:"immediate"`
	ShortTerm          []string `json:"short_term"`
	LongTerm           []string `json:"long_term"`
	LLMRecommendations []string `json:"llm_recommendations,omitempty"`
}

// DimensionOptimization reports how many checks dimension selection avoided.
type DimensionOptimization struct {
	TotalPossibleChecks    int     `json:"total_possible_checks"`
	TotalActualChecks      int     `json:"total_actual_checks"`
	ChecksSkipped          int     `json:"checks_skipped"`
	OptimizationPercentage float64 `json:"optimization_percentage"`
}

// IntelligentSkips aggregates skipped dimensions and their reasons.
type IntelligentSkips struct {
	SkipCounts  map[Dimension]int      `json:"skip_counts"`
	SkipReasons map[Dimension][]string `json:"skip_reasons"`
}

// SelectionSummary is the LLM-guided part of a summary.
type SelectionSummary struct {
	DimensionOptimization DimensionOptimization `json:"dimension_optimization"`
	IntelligentSkips      IntelligentSkips      `json:"intelligent_skips"`
	PriorityDistribution  map[Priority]int      `json:"priority_distribution"`
}

// Summary rolls up critical fields, top issues and recommendations.
type Summary struct {
	CriticalFields  CriticalFieldsSummary `json:"critical_fields"`
	TopIssues       []Issue               `json:"top_issues"`
	Recommendations Recommendations       `json:"recommendations"`
	LLMInsights     *SelectionSummary     `json:"llm_insights,omitempty"`
}

// LLMInsights describes the dimension selection phase.
type LLMInsights struct {
	TotalColumnsAnalyzed    int `json:"total_columns_analyzed"`
	DimensionSelectionsMade int `json:"dimension_selections_made"`
	DefaultSelections       int `json:"default_selections"`
}

// PerformanceMetrics describes timing and concurrency of an LLM-guided run.
type PerformanceMetrics struct {
	LLMSelectionSeconds       float64 `json:"llm_selection_time_seconds"`
	ColumnAssessmentSeconds   float64 `json:"column_assessment_time_seconds"`
	TotalProcessingSeconds    float64 `json:"total_processing_time_seconds"`
	MaxConcurrentLLMRequests  int     `json:"max_concurrent_llm_requests"`
	MaxConcurrentDBOperations int     `json:"max_concurrent_db_operations"`
	SelectionSequentialRetry  bool    `json:"selection_sequential_fallback"`
	AssessmentSequentialRetry bool    `json:"assessment_sequential_fallback"`
}

// HealthReport is the complete result of one assessment. Built once by the
// report assembler and not modified afterwards.
type HealthReport struct {
	SchemaType          SchemaType               `json:"schema_type"`
	AssessmentType      string                   `json:"assessment_type"`
	TotalRecords        int64                    `json:"total_records"`
	AssessmentTimestamp time.Time                `json:"assessment_timestamp"`
	OverallHealth       OverallHealth            `json:"overall_health"`
	ColumnAnalysis      map[string]*ColumnHealth `json:"column_analysis"`
	Summary             Summary                  `json:"summary"`
	LLMInsights         *LLMInsights             `json:"llm_insights,omitempty"`
	PerformanceMetrics  *PerformanceMetrics      `json:"performance_metrics,omitempty"`
}

// CriticalIssueCount counts high-severity top issues.
func (r *HealthReport) CriticalIssueCount() int {
	n := 0
	for _, issue := range r.Summary.TopIssues {
		if issue.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
