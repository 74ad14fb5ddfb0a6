package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

func TestHealthGrade(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{100, "Excellent"},
		{85, "Excellent"},
		{84.9, "Good"},
		{70, "Good"},
		{69.9, "Poor"},
		{50, "Poor"},
		{49.9, "Bad"},
		{0, "Bad"},
	}
	for _, c := range cases {
		assert.Equal(t, c.grade, HealthGrade(c.score), "score %.1f", c.score)
	}
}

func TestHealthGrade_Monotonic(t *testing.T) {
	rank := map[string]int{"Bad": 0, "Poor": 1, "Good": 2, "Excellent": 3}
	prev := rank[HealthGrade(0)]
	for s := 0.0; s <= 100; s += 0.1 {
		r := rank[HealthGrade(s)]
		assert.GreaterOrEqual(t, r, prev, "score %.1f", s)
		prev = r
	}
}

func TestColumnIssues(t *testing.T) {
	ch := &models.ColumnHealth{
		Completeness: &models.CompletenessResult{NullCount: 30, NullPercentage: 30},
		Uniqueness:   &models.UniquenessResult{DuplicateCount: 4},
		Consistency:  &models.ConsistencyResult{PatternViolations: 2},
		Validity:     &models.ValidityResult{InvalidValues: 1},
		Timeliness:   &models.TimelinessResult{DaysSinceLatest: 45},
	}
	issues, recs := ColumnIssues("event_id", ch)
	assert.Equal(t, []string{
		"30.0% missing values",
		"4 duplicate values",
		"2 format violations",
		"1 invalid values",
		"Data is 45 days old",
	}, issues)
	assert.Equal(t, []string{
		"Address 30 missing event_id values",
		"Investigate 4 duplicate event_id entries",
		"Standardize event_id format",
		"Fix 1 invalid event_id values",
		"Update event_id data (last update: 45 days ago)",
	}, recs)

	issues, recs = ColumnIssues("clean", &models.ColumnHealth{Completeness: &models.CompletenessResult{Score: 100}})
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestColumnIssues_FailedDimension(t *testing.T) {
	ch := &models.ColumnHealth{
		Completeness: &models.CompletenessResult{NullCount: 100, NullPercentage: 100, Error: "boom"},
		Validity:     &models.ValidityResult{InvalidValues: 3},
	}
	issues, _ := ColumnIssues("region", ch)
	assert.Equal(t, []string{"completeness check failed", "3 invalid values"}, issues)
}

func TestGuidedRecommendations(t *testing.T) {
	ch := &models.ColumnHealth{
		Completeness: &models.CompletenessResult{Score: 40},
		Validity:     &models.ValidityResult{Score: 65},
	}
	sel := models.DimensionSelection{
		DimensionsToCheck: []models.Dimension{models.DimensionCompleteness, models.DimensionValidity},
		DimensionsToSkip:  []models.Dimension{models.DimensionUniqueness, models.DimensionTimeliness},
		Reasoning:         map[models.Dimension]string{models.DimensionCompleteness: "required field"},
		Priority:          models.PriorityLow,
	}
	recs := GuidedRecommendations("branch", ch, sel, true)
	assert.Equal(t, []string{
		"Improve completeness for branch - required field",
		"Monitor and improve validity for branch",
		"LLM intelligently skipped uniqueness, timeliness - not relevant for this field type",
		"Low priority field branch has issues but can be addressed in maintenance cycles",
	}, recs)

	sel.Priority = models.PriorityCritical
	recs = GuidedRecommendations("branch", ch, sel, true)
	assert.Equal(t, "URGENT: Address completeness in branch immediately - required field", recs[0])
}

func TestAggregateDimensions(t *testing.T) {
	columns := map[string]*models.ColumnHealth{
		"a": {Completeness: &models.CompletenessResult{Score: 100}, Uniqueness: &models.UniquenessResult{Score: 90}},
		"b": {Completeness: &models.CompletenessResult{Score: 50}},
	}
	dims := AggregateDimensions(columns)
	require.Len(t, dims, 5)
	assert.Equal(t, models.DimensionAggregate{Score: 75, Weight: 25, ColumnsAssessed: 2}, dims[models.DimensionCompleteness])
	assert.Equal(t, models.DimensionAggregate{Score: 90, Weight: 10, ColumnsAssessed: 1}, dims[models.DimensionUniqueness])
	assert.Equal(t, models.DimensionAggregate{Score: 0, Weight: 25, ColumnsAssessed: 0}, dims[models.DimensionTimeliness])

	// Only assessed dimensions count: (75*25 + 90*10) / 35
	assert.Equal(t, 79.3, WeightedOverallScore(dims))
	assert.Equal(t, 0.0, WeightedOverallScore(AggregateDimensions(nil)))
}

func TestBuildSummary_TopIssuesOrdering(t *testing.T) {
	columns := map[string]*models.ColumnHealth{
		// low severity: score >= 70
		"a_notes": {OverallColumnScore: 90, Issues: []string{"1 format violations", "2 invalid values"}},
		// medium: non-critical below 70
		"b_branch_code": {OverallColumnScore: 65, Issues: []string{"3 duplicate values", "4 invalid values"}},
		// high: critical below 60
		"event_id": {OverallColumnScore: 40, Issues: []string{"50.0% missing values", "5 duplicate values"}},
		"region":   {OverallColumnScore: 75, Issues: []string{"6.0% missing values"}},
	}
	summary := BuildSummary(models.SchemaSRS, columns)

	require.Len(t, summary.TopIssues, 5)
	var severities []models.Severity
	for _, issue := range summary.TopIssues {
		severities = append(severities, issue.Severity)
	}
	assert.Equal(t, []models.Severity{
		models.SeverityHigh, models.SeverityHigh,
		models.SeverityMedium, models.SeverityMedium,
		models.SeverityLow,
	}, severities)
	assert.Equal(t, "event_id", summary.TopIssues[0].Column)
	assert.Equal(t, "Critical field event_id missing values affects data reliability", summary.TopIssues[0].Impact)
	assert.Equal(t, "a_notes", summary.TopIssues[4].Column)

	assert.Equal(t, []string{"Fix 50.0% missing values in event_id", "Fix 5 duplicate values in event_id"}, summary.Recommendations.Immediate)
	assert.Len(t, summary.Recommendations.ShortTerm, 2)
	assert.Equal(t, []string{
		"Implement data validation rules at ingestion",
		"Set up automated duplicate detection",
		"Establish data completeness monitoring",
		"Set up automated data quality monitoring",
	}, summary.Recommendations.LongTerm)

	assert.Equal(t, 6, summary.CriticalFields.Total)
	assert.Equal(t, 1, summary.CriticalFields.Critical)
	assert.Equal(t, 1, summary.CriticalFields.Warning)
	assert.Equal(t, 57.5, summary.CriticalFields.AvgScore)
}

func TestBuildSummary_NoIssues(t *testing.T) {
	summary := BuildSummary(models.SchemaNITCT, map[string]*models.ColumnHealth{
		"reporting_id": {OverallColumnScore: 100, Issues: []string{}},
	})
	assert.NotNil(t, summary.TopIssues)
	assert.Empty(t, summary.TopIssues)
	assert.Equal(t, []string{"No immediate actions required"}, summary.Recommendations.Immediate)
	assert.Equal(t, []string{"Monitor data quality trends"}, summary.Recommendations.ShortTerm)
	assert.Equal(t, []string{"Set up automated data quality monitoring"}, summary.Recommendations.LongTerm)
}

func TestBuildSummary_BucketsCapped(t *testing.T) {
	columns := map[string]*models.ColumnHealth{}
	for i := 0; i < 6; i++ {
		columns[fmt.Sprintf("col_%d", i)] = &models.ColumnHealth{OverallColumnScore: 10, Issues: []string{"1 invalid values"}}
	}
	summary := BuildSummary(models.SchemaEITech, columns)
	assert.Len(t, summary.TopIssues, 5)
	assert.Len(t, summary.Recommendations.ShortTerm, 3)
}

func TestSummarizeSelections(t *testing.T) {
	skipAll := models.DimensionSelection{
		DimensionsToCheck: []models.Dimension{models.DimensionCompleteness},
		DimensionsToSkip:  []models.Dimension{models.DimensionUniqueness, models.DimensionConsistency, models.DimensionValidity, models.DimensionTimeliness},
		Reasoning:         map[models.Dimension]string{models.DimensionTimeliness: "not a date"},
		Priority:          models.PriorityCritical,
	}
	selections := map[string]models.DimensionSelection{
		"event_id": skipAll,
		"region":   models.DefaultDimensionSelection(),
	}
	summary, recs := SummarizeSelections(selections)

	opt := summary.DimensionOptimization
	assert.Equal(t, 10, opt.TotalPossibleChecks)
	assert.Equal(t, 6, opt.TotalActualChecks)
	assert.Equal(t, 4, opt.ChecksSkipped)
	assert.Equal(t, 40.0, opt.OptimizationPercentage)

	assert.Equal(t, 1, summary.IntelligentSkips.SkipCounts[models.DimensionTimeliness])
	assert.Equal(t, []string{"event_id: not a date"}, summary.IntelligentSkips.SkipReasons[models.DimensionTimeliness])
	assert.Equal(t, []string{"event_id: No reason provided"}, summary.IntelligentSkips.SkipReasons[models.DimensionUniqueness])
	assert.Equal(t, map[models.Priority]int{models.PriorityCritical: 1, models.PriorityMedium: 1}, summary.PriorityDistribution)

	assert.Equal(t, []string{
		"Focus on 1 critical columns identified by semantic analysis: event_id",
		"LLM optimization reduced validation overhead by 40.0% while maintaining quality coverage",
	}, recs)
}

func TestEmptyReport(t *testing.T) {
	report := EmptyReport(models.SchemaSRS, models.AssessmentStandard, testNow)
	assert.Equal(t, int64(0), report.TotalRecords)
	assert.Equal(t, models.GradeNotAvailable, report.OverallHealth.Grade)
	assert.Empty(t, report.ColumnAnalysis)
	assert.Len(t, report.OverallHealth.Dimensions, 5)
	assert.Equal(t, 0, report.CriticalIssueCount())
}
