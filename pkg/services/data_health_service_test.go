package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/llm"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/workerpool"
)

func TestAssess_ExampleScenario(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, models.SchemaSRS, report.SchemaType)
	assert.Equal(t, models.AssessmentStandard, report.AssessmentType)
	assert.Equal(t, int64(100), report.TotalRecords)
	require.Len(t, report.ColumnAnalysis, 3)
	assert.NotContains(t, report.ColumnAnalysis, "id")

	eventID := report.ColumnAnalysis["event_id"]
	require.NotNil(t, eventID.Completeness)
	require.NotNil(t, eventID.Uniqueness)
	assert.Equal(t, 100.0, eventID.Completeness.Score)
	assert.Equal(t, 100.0, eventID.Uniqueness.Score)
	assert.Nil(t, eventID.Timeliness)
	assert.Equal(t, 100.0, eventID.OverallColumnScore)
	assert.True(t, eventID.IsCritical)

	region := report.ColumnAnalysis["region"]
	assert.Equal(t, 80.0, region.Completeness.Score)
	assert.Equal(t, int64(20), region.Completeness.NullCount)
	assert.Equal(t, 20.0, region.Completeness.NullPercentage)
	assert.Nil(t, region.Uniqueness)
	assert.Nil(t, region.Timeliness)
	assert.Equal(t, 80, region.Consistency.TotalChecked)
	// (80*25 + 100*20 + 100*20) / 65
	assert.InDelta(t, 92.3, region.OverallColumnScore, 0.01)
	assert.Contains(t, region.Issues, "20.0% missing values")

	reported := report.ColumnAnalysis["reported_date"]
	require.NotNil(t, reported.Timeliness)
	assert.Equal(t, 100.0, reported.Timeliness.Score)
	assert.Equal(t, 10, reported.Timeliness.DaysSinceLatest)
	assert.Nil(t, reported.Uniqueness)
	assert.Equal(t, 100.0, reported.Validity.Score)
	assert.Equal(t, 100.0, reported.Consistency.Score)

	dims := report.OverallHealth.Dimensions
	require.Len(t, dims, 5)
	assert.Equal(t, 1, dims[models.DimensionUniqueness].ColumnsAssessed)
	assert.Equal(t, 1, dims[models.DimensionTimeliness].ColumnsAssessed)
	assert.Equal(t, 3, dims[models.DimensionCompleteness].ColumnsAssessed)
	assert.InDelta(t, 93.3, dims[models.DimensionCompleteness].Score, 0.01)
	assert.InDelta(t, 98.3, report.OverallHealth.Score, 0.05)
	assert.Equal(t, "Excellent", report.OverallHealth.Grade)

	assert.Equal(t, 6, report.Summary.CriticalFields.Total)
	assert.Equal(t, 3, report.Summary.CriticalFields.Healthy)
	assert.Nil(t, report.LLMInsights)
	assert.Nil(t, report.PerformanceMetrics)
}

func TestAssess_Invariants(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	for name, ch := range report.ColumnAnalysis {
		assert.Equal(t, report.TotalRecords, ch.Completeness.NullCount+ch.Completeness.NonNullCount, name)
		if u := ch.Uniqueness; u != nil {
			assert.Equal(t, u.TotalNonNull, u.UniqueCount+u.DuplicateCount, name)
		}
		for _, d := range ch.Present() {
			score, _ := ch.DimensionScore(d)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		}
	}
}

func TestAssess_Idempotent(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	first, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)
	second, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, first.OverallHealth, second.OverallHealth)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAssess_UnknownSchemaType(t *testing.T) {
	profiler := scenarioProfiler()
	svc := newTestService(t, profiler, nil, nil)

	_, err := svc.Assess(context.Background(), "not_a_schema")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSchemaType)

	_, err = svc.AssessLLM(context.Background(), "not_a_schema")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSchemaType)
	assert.Zero(t, profiler.callCount("CountRecords"))
}

func TestAssess_EmptySchema(t *testing.T) {
	profiler := newFakeProfiler(scenarioProfiler().columns, nil)
	svc := newTestService(t, profiler, nil, nil)

	for _, assess := range []func(context.Context, string) (*models.HealthReport, error){svc.Assess, svc.AssessLLM} {
		report, err := assess(context.Background(), "srs")
		require.NoError(t, err)
		assert.Equal(t, int64(0), report.TotalRecords)
		assert.Equal(t, 0.0, report.OverallHealth.Score)
		assert.Equal(t, models.GradeNotAvailable, report.OverallHealth.Grade)
		assert.Empty(t, report.ColumnAnalysis)
		assert.NotNil(t, report.ColumnAnalysis)
	}
	assert.Zero(t, profiler.callCount("DiscoverColumns"))
}

func TestAssess_CountRecordsErrorPropagates(t *testing.T) {
	profiler := scenarioProfiler()
	profiler.errs["CountRecords"] = errors.New("relation does not exist")
	svc := newTestService(t, profiler, nil, nil)

	_, err := svc.Assess(context.Background(), "srs")
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestAssess_TableWithoutColumns(t *testing.T) {
	profiler := scenarioProfiler()
	profiler.columns = profiler.columns[:1] // only the system id column
	svc := newTestService(t, profiler, nil, nil)

	_, err := svc.Assess(context.Background(), "srs")
	assert.ErrorIs(t, err, apperrors.ErrTableNotFound)
}

func TestAssess_TableOverride(t *testing.T) {
	profiler := scenarioProfiler()
	svc := newTestService(t, profiler, nil, nil)
	svc.config.Tables = map[string]string{"srs": "srs_events"}

	assert.Equal(t, "srs_events", svc.tableFor(models.SchemaSRS))
	assert.Equal(t, "unsafe_events_ni_tct", svc.tableFor(models.SchemaNITCT))
}

func TestAssess_DimensionFailureBecomesPlaceholder(t *testing.T) {
	profiler := scenarioProfiler()
	profiler.errs["CountDistinct:event_id"] = errors.New("statement timeout")
	profiler.errs["CountNonNull:region"] = errors.New("connection reset")

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc := newTestService(t, profiler, nil, metrics)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	eventID := report.ColumnAnalysis["event_id"]
	assert.Equal(t, 0.0, eventID.Uniqueness.Score)
	assert.Contains(t, eventID.Uniqueness.Error, "statement timeout")
	assert.Contains(t, eventID.Issues, "uniqueness check failed")

	region := report.ColumnAnalysis["region"]
	assert.Equal(t, 0.0, region.Completeness.Score)
	assert.Equal(t, int64(100), region.Completeness.NullCount)
	assert.Equal(t, 100.0, region.Completeness.NullPercentage)
	assert.Equal(t, report.TotalRecords, region.Completeness.NullCount+region.Completeness.NonNullCount)
	assert.Contains(t, region.Issues, "completeness check failed")
	assert.NotContains(t, region.Issues, "100.0% missing values")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dimensionFailures.WithLabelValues("uniqueness")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dimensionFailures.WithLabelValues("completeness")))
}

func TestAssess_SampleFailureMarksSampledDimensions(t *testing.T) {
	profiler := scenarioProfiler()
	profiler.errs["SampleRecords"] = errors.New("canceling statement")
	svc := newTestService(t, profiler, nil, nil)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)

	for name, ch := range report.ColumnAnalysis {
		assert.NotEmpty(t, ch.Consistency.Error, name)
		assert.NotEmpty(t, ch.Validity.Error, name)
		assert.Equal(t, 0.0, ch.Consistency.Score, name)
	}
}

func TestAssess_SequentialFallbackOnDispatchFailure(t *testing.T) {
	baseline, err := newTestService(t, scenarioProfiler(), nil, nil).Assess(context.Background(), "srs")
	require.NoError(t, err)

	tests := []struct {
		name     string
		dispatch dispatchFunc[batchValue]
	}{
		{
			name: "panics",
			dispatch: func(context.Context, *workerpool.Pool, []workerpool.Item[batchValue], func(int, int)) []workerpool.Result[batchValue] {
				panic("worker pool exhausted")
			},
		},
		{
			name: "loses items",
			dispatch: func(context.Context, *workerpool.Pool, []workerpool.Item[batchValue], func(int, int)) []workerpool.Result[batchValue] {
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics(prometheus.NewRegistry())
			svc := newTestService(t, scenarioProfiler(), nil, metrics)
			svc.dispatchQueries = tt.dispatch

			report, err := svc.Assess(context.Background(), "srs")
			require.NoError(t, err)
			assert.Equal(t, baseline.OverallHealth, report.OverallHealth)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sequentialFallbacks.WithLabelValues("batch_queries")))
		})
	}
}

func TestAssess_MetricsRecorded(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newTestService(t, scenarioProfiler(), nil, metrics)

	report, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)
	_, err = svc.Assess(context.Background(), "bogus")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.assessments.WithLabelValues("srs", models.AssessmentStandard, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.assessments.WithLabelValues("bogus", models.AssessmentStandard, "error")))
	assert.Equal(t, report.OverallHealth.Score, testutil.ToFloat64(metrics.overallScore.WithLabelValues("srs", models.AssessmentStandard)))
}

// selectionJSON builds a model answer checking the given dimensions.
func selectionJSON(priority string, check ...models.Dimension) string {
	var checked, skipped, reasons []string
	for _, d := range models.AllDimensions {
		reasons = append(reasons, fmt.Sprintf("%q: %q", d, "reason for "+string(d)))
		found := false
		for _, c := range check {
			if c == d {
				found = true
			}
		}
		if found {
			checked = append(checked, fmt.Sprintf("%q", d))
		} else {
			skipped = append(skipped, fmt.Sprintf("%q", d))
		}
	}
	return fmt.Sprintf(`{"dimensions_to_check": [%s], "dimensions_to_skip": [%s], "reasoning": {%s}, "priority": %q}`,
		strings.Join(checked, ", "), strings.Join(skipped, ", "), strings.Join(reasons, ", "), priority)
}

func scenarioModel() *llm.MockLLMClient {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(_ context.Context, prompt, _ string, _ float64, _ int) (*llm.GenerateResponseResult, error) {
		var content string
		switch {
		case strings.Contains(prompt, "Column Name: event_id"):
			content = selectionJSON("critical", models.DimensionCompleteness, models.DimensionUniqueness, models.DimensionValidity)
		case strings.Contains(prompt, "Column Name: region"):
			content = selectionJSON("high", models.DimensionCompleteness, models.DimensionConsistency, models.DimensionValidity)
		default:
			content = "Here is my analysis:\n```json\n" +
				selectionJSON("medium", models.DimensionCompleteness, models.DimensionConsistency, models.DimensionValidity, models.DimensionTimeliness) +
				"\n```"
		}
		return &llm.GenerateResponseResult{Content: content}, nil
	}
	return client
}

func TestAssessLLM_GuidedSelection(t *testing.T) {
	client := scenarioModel()
	selector := NewDimensionSelector(client, SelectorConfig{}, nil, zap.NewNop())
	svc := newTestService(t, scenarioProfiler(), selector, nil)

	report, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, models.AssessmentLLMEnhanced, report.AssessmentType)
	assert.Equal(t, 3, client.Calls())

	eventID := report.ColumnAnalysis["event_id"]
	assert.Equal(t, []models.Dimension{models.DimensionCompleteness, models.DimensionUniqueness, models.DimensionValidity}, eventID.DimensionsChecked)
	assert.Nil(t, eventID.Consistency)
	assert.Equal(t, models.PriorityCritical, eventID.Priority)
	assert.Equal(t, 100.0, eventID.OverallColumnScore)
	assert.Contains(t, eventID.Recommendations, "Critical field event_id is performing well - maintain current quality standards")

	region := report.ColumnAnalysis["region"]
	assert.Nil(t, region.Uniqueness)
	// (80*25 + 100*20 + 100*20) / 65 renormalized
	assert.InDelta(t, 92.3, region.OverallColumnScore, 0.01)

	reported := report.ColumnAnalysis["reported_date"]
	require.NotNil(t, reported.Timeliness)
	assert.Equal(t, 100.0, reported.Timeliness.Score)

	require.NotNil(t, report.LLMInsights)
	assert.Equal(t, 3, report.LLMInsights.TotalColumnsAnalyzed)
	assert.Equal(t, 3, report.LLMInsights.DimensionSelectionsMade)
	assert.Equal(t, 0, report.LLMInsights.DefaultSelections)

	require.NotNil(t, report.Summary.LLMInsights)
	opt := report.Summary.LLMInsights.DimensionOptimization
	assert.Equal(t, 15, opt.TotalPossibleChecks)
	assert.Equal(t, 10, opt.TotalActualChecks)
	assert.Equal(t, 1, report.Summary.LLMInsights.PriorityDistribution[models.PriorityCritical])
	assert.Contains(t, report.Summary.Recommendations.LLMRecommendations,
		"Focus on 1 critical columns identified by semantic analysis: event_id")

	require.NotNil(t, report.PerformanceMetrics)
	assert.Equal(t, 10, report.PerformanceMetrics.MaxConcurrentLLMRequests)
	assert.Equal(t, 5, report.PerformanceMetrics.MaxConcurrentDBOperations)
	assert.False(t, report.PerformanceMetrics.AssessmentSequentialRetry)
}

func TestAssessLLM_TimelinessDroppedForNonDateColumn(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64, int) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{Content: selectionJSON("low", models.AllDimensions...)}, nil
	}
	selector := NewDimensionSelector(client, SelectorConfig{}, nil, zap.NewNop())
	svc := newTestService(t, scenarioProfiler(), selector, nil)

	report, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	region := report.ColumnAnalysis["region"]
	assert.Nil(t, region.Timeliness)
	assert.NotContains(t, region.DimensionsChecked, models.DimensionTimeliness)
	assert.Contains(t, region.DimensionsSkipped, models.DimensionTimeliness)
	assert.Contains(t, region.LLMReasoning[models.DimensionTimeliness], "Not applicable")
	// The model asked for uniqueness, so it is kept even for a non-identifier.
	assert.NotNil(t, region.Uniqueness)

	assert.NotNil(t, report.ColumnAnalysis["reported_date"].Timeliness)
}

// dimensionSets returns the computed dimensions per column.
func dimensionSets(report *models.HealthReport) map[string][]models.Dimension {
	out := map[string][]models.Dimension{}
	for name, ch := range report.ColumnAnalysis {
		out[name] = ch.Present()
	}
	return out
}

func TestAssessLLM_FailingModelMatchesDeterministic(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64, int) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("model exploded")
	}
	selector := NewDimensionSelector(client, SelectorConfig{}, nil, zap.NewNop())
	svc := newTestService(t, scenarioProfiler(), selector, nil)

	deterministic, err := svc.Assess(context.Background(), "srs")
	require.NoError(t, err)
	guided, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, dimensionSets(deterministic), dimensionSets(guided))
	for name, ch := range guided.ColumnAnalysis {
		assert.Equal(t, ch.Present(), ch.DimensionsChecked, name)
	}
	assert.Equal(t, 3, guided.LLMInsights.DefaultSelections)
}

func TestAssessLLM_IdempotentWithoutModel(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	first, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)
	second, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	assert.Equal(t, first.OverallHealth, second.OverallHealth)
	assert.Equal(t, first.ColumnAnalysis, second.ColumnAnalysis)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestAssessLLM_SemanticsNotFound(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	_, err := svc.AssessLLM(context.Background(), "ei_tech")
	assert.ErrorIs(t, err, apperrors.ErrSemanticsNotFound)
}

func TestAssessLLM_ColumnPhaseFallsBackSequentially(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newTestService(t, scenarioProfiler(), nil, metrics)
	svc.dispatchColumns = func(context.Context, *workerpool.Pool, []workerpool.Item[*models.ColumnHealth], func(int, int)) []workerpool.Result[*models.ColumnHealth] {
		panic("thread pool exhausted")
	}

	report, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	assert.Len(t, report.ColumnAnalysis, 3)
	assert.True(t, report.PerformanceMetrics.AssessmentSequentialRetry)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sequentialFallbacks.WithLabelValues("column_assessment")))
}

func TestAssessLLM_DimensionFailureKeepsColumn(t *testing.T) {
	profiler := scenarioProfiler()
	profiler.errs["SampleValues:region"] = errors.New("timeout expired")
	svc := newTestService(t, profiler, nil, nil)

	report, err := svc.AssessLLM(context.Background(), "srs")
	require.NoError(t, err)

	region := report.ColumnAnalysis["region"]
	assert.Empty(t, region.Error)
	assert.NotEmpty(t, region.Consistency.Error)
	assert.NotEmpty(t, region.Validity.Error)
	assert.Contains(t, region.Issues, "consistency check failed")
	assert.Contains(t, region.Issues, "validity check failed")
	assert.Equal(t, 80.0, region.Completeness.Score)
}

func TestAssess_DimensionTimeoutBecomesPlaceholder(t *testing.T) {
	for _, llmGuided := range []bool{false, true} {
		t.Run(fmt.Sprintf("llm=%t", llmGuided), func(t *testing.T) {
			profiler := scenarioProfiler()
			profiler.block["CountDistinct:event_id"] = true
			svc := newTestServiceWithConfig(t, profiler, nil, nil, DataHealthConfig{DimensionTimeout: 50 * time.Millisecond})

			assess := svc.Assess
			if llmGuided {
				assess = svc.AssessLLM
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			report, err := assess(ctx, "srs")
			require.NoError(t, err)
			require.NoError(t, ctx.Err())

			eventID := report.ColumnAnalysis["event_id"]
			assert.Empty(t, eventID.Error)
			assert.Equal(t, 0.0, eventID.Uniqueness.Score)
			assert.Contains(t, eventID.Uniqueness.Error, context.DeadlineExceeded.Error())
			assert.Contains(t, eventID.Issues, "uniqueness check failed")
			assert.Equal(t, 100.0, eventID.Completeness.Score)

			assert.Equal(t, 80.0, report.ColumnAnalysis["region"].Completeness.Score)
			assert.Len(t, report.ColumnAnalysis, 4)
		})
	}
}

func TestAssess_DBLimiterBoundsConcurrentQueries(t *testing.T) {
	columns := make([]datasource.ColumnMetadata, 12)
	rows := make([]map[string]any, 20)
	for i := range columns {
		columns[i] = datasource.ColumnMetadata{ColumnName: fmt.Sprintf("field_%02d", i), DataType: "character varying", OrdinalPosition: i + 1}
	}
	for r := range rows {
		rows[r] = map[string]any{}
		for _, c := range columns {
			rows[r][c.ColumnName] = fmt.Sprintf("v%d", r%4)
		}
	}

	for _, llmGuided := range []bool{false, true} {
		t.Run(fmt.Sprintf("llm=%t", llmGuided), func(t *testing.T) {
			profiler := newFakeProfiler(columns, rows)
			profiler.delay = 10 * time.Millisecond
			svc := newTestServiceWithConfig(t, profiler, nil, nil, DataHealthConfig{
				MaxConcurrentDBOperations: 2,
				MaxConcurrentColumns:      8,
			})

			assess := svc.Assess
			if llmGuided {
				assess = svc.AssessLLM
			}
			report, err := assess(context.Background(), "srs")
			require.NoError(t, err)
			assert.Len(t, report.ColumnAnalysis, len(columns))

			assert.LessOrEqual(t, profiler.peakInFlight(), 2)
			assert.Positive(t, profiler.peakInFlight())
		})
	}
}

func TestApplicableSelection(t *testing.T) {
	svc := newTestService(t, scenarioProfiler(), nil, nil)

	notes := models.ColumnDescriptor{Name: "incident_description", DataType: "text"}
	sel := svc.applicableSelection(notes, models.DefaultDimensionSelection())
	assert.Equal(t, []models.Dimension{models.DimensionCompleteness, models.DimensionConsistency, models.DimensionValidity}, sel.DimensionsToCheck)
	assert.ElementsMatch(t, []models.Dimension{models.DimensionUniqueness, models.DimensionTimeliness}, sel.DimensionsToSkip)

	created := models.ColumnDescriptor{Name: "created_on", DataType: "timestamp without time zone"}
	sel = svc.applicableSelection(created, models.DefaultDimensionSelection())
	assert.Contains(t, sel.DimensionsToCheck, models.DimensionTimeliness)

	// The default selection itself is not modified.
	assert.Len(t, models.DefaultDimensionSelection().DimensionsToCheck, 5)
}

func TestStatus(t *testing.T) {
	svc := newTestService(t, newFakeProfiler(nil, nil), nil, nil)

	status := svc.Status()
	assert.Equal(t, models.SchemaTypes, status.AvailableSchemas)
	assert.Equal(t, models.AllDimensions, status.AssessmentDimensions)
	assert.Equal(t, 25, status.DimensionWeights[models.DimensionCompleteness])
	assert.Equal(t, APIVersion, status.APIVersion)
}
