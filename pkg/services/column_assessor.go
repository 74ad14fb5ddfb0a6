package services

import (
	"context"
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

// assessGuidedColumn runs the selected dimension checks of one column in
// parallel and waits for all of them before scoring. A failed check becomes
// a score-0 placeholder carrying the error.
func (s *dataHealthService) assessGuidedColumn(
	ctx context.Context,
	runner *dbRunner,
	col models.ColumnDescriptor,
	sel models.DimensionSelection,
	totalRecords int64,
	now time.Time,
) *models.ColumnHealth {
	ch := &models.ColumnHealth{
		DataType:          col.DataType,
		IsCritical:        col.IsCritical,
		DimensionsChecked: sel.DimensionsToCheck,
		DimensionsSkipped: sel.DimensionsToSkip,
		LLMReasoning:      sel.Reasoning,
		Priority:          sel.Priority,
	}

	var (
		wg           sync.WaitGroup
		completeness *models.CompletenessResult
		uniqueness   *models.UniquenessResult
		consistency  *models.ConsistencyResult
		validity     *models.ValidityResult
		timeliness   *models.TimelinessResult
	)

	for _, d := range sel.DimensionsToCheck {
		wg.Add(1)
		go func(d models.Dimension) {
			defer wg.Done()
			switch d {
			case models.DimensionCompleteness:
				completeness = s.measureCompleteness(ctx, runner, col.Name, totalRecords)
			case models.DimensionUniqueness:
				uniqueness = s.measureUniqueness(ctx, runner, col.Name)
			case models.DimensionConsistency:
				consistency = s.measureConsistency(ctx, runner, col.Name)
			case models.DimensionValidity:
				validity = s.measureValidity(ctx, runner, col.Name, now)
			case models.DimensionTimeliness:
				timeliness = s.measureTimeliness(ctx, runner, col.Name, now)
			}
		}(d)
	}
	wg.Wait()

	ch.Completeness = completeness
	ch.Uniqueness = uniqueness
	ch.Consistency = consistency
	ch.Validity = validity
	ch.Timeliness = timeliness

	ch.OverallColumnScore = GuidedColumnScore(ch, sel.DimensionsToCheck)
	issues, recs := ColumnIssues(col.Name, ch)
	recs = append(recs, GuidedRecommendations(col.Name, ch, sel, len(issues) > 0)...)
	if len(recs) == 0 {
		recs = []string{"Column meets quality standards - continue monitoring"}
	}
	ch.Issues = issues
	ch.Recommendations = recs
	return ch
}

func (s *dataHealthService) measureCompleteness(ctx context.Context, runner *dbRunner, column string, totalRecords int64) *models.CompletenessResult {
	var nonNull int64
	err := runner.do(ctx, func(ctx context.Context) error {
		var err error
		nonNull, err = runner.profiler.CountNonNull(ctx, runner.schema, runner.table, column)
		return err
	})
	if err != nil {
		s.logDimensionFailure(models.DimensionCompleteness, column, err)
		return failedCompleteness(totalRecords, err)
	}
	return ScoreCompleteness(totalRecords, nonNull)
}

func (s *dataHealthService) measureUniqueness(ctx context.Context, runner *dbRunner, column string) *models.UniquenessResult {
	var nonNull, distinct int64
	err := runner.do(ctx, func(ctx context.Context) error {
		var err error
		if nonNull, err = runner.profiler.CountNonNull(ctx, runner.schema, runner.table, column); err != nil {
			return err
		}
		distinct, err = runner.profiler.CountDistinct(ctx, runner.schema, runner.table, column)
		return err
	})
	if err != nil {
		s.logDimensionFailure(models.DimensionUniqueness, column, err)
		return &models.UniquenessResult{Error: err.Error()}
	}
	return ScoreUniqueness(nonNull, distinct)
}

func (s *dataHealthService) measureConsistency(ctx context.Context, runner *dbRunner, column string) *models.ConsistencyResult {
	values, err := s.sampleColumn(ctx, runner, column)
	if err != nil {
		s.logDimensionFailure(models.DimensionConsistency, column, err)
		return &models.ConsistencyResult{Error: err.Error()}
	}
	return ScoreConsistency(column, values)
}

func (s *dataHealthService) measureValidity(ctx context.Context, runner *dbRunner, column string, now time.Time) *models.ValidityResult {
	values, err := s.sampleColumn(ctx, runner, column)
	if err != nil {
		s.logDimensionFailure(models.DimensionValidity, column, err)
		return &models.ValidityResult{Error: err.Error()}
	}
	return ScoreValidity(column, values, now)
}

func (s *dataHealthService) measureTimeliness(ctx context.Context, runner *dbRunner, column string, now time.Time) *models.TimelinessResult {
	var result *models.TimelinessResult
	err := runner.do(ctx, func(ctx context.Context) error {
		rng, err := runner.profiler.DateRange(ctx, runner.schema, runner.table, column)
		if err != nil {
			return err
		}
		result = ScoreTimeliness(rng, now)
		return nil
	})
	if err != nil {
		s.logDimensionFailure(models.DimensionTimeliness, column, err)
		return &models.TimelinessResult{Error: err.Error()}
	}
	return result
}

// sampleColumn fetches up to ColumnValueLimit non-null values as text.
func (s *dataHealthService) sampleColumn(ctx context.Context, runner *dbRunner, column string) ([]string, error) {
	var values []string
	err := runner.do(ctx, func(ctx context.Context) error {
		raw, err := runner.profiler.SampleValues(ctx, runner.schema, runner.table, column, s.config.ColumnValueLimit)
		if err != nil {
			return err
		}
		values, err = SampleStrings(raw, s.config.ColumnValueLimit)
		return err
	})
	return values, err
}

// failedColumn marks a column whose whole assessment failed.
func failedColumn(col models.ColumnDescriptor, sel models.DimensionSelection, err error) *models.ColumnHealth {
	return &models.ColumnHealth{
		DataType:          col.DataType,
		IsCritical:        col.IsCritical,
		DimensionsChecked: []models.Dimension{},
		DimensionsSkipped: sel.DimensionsToSkip,
		Priority:          sel.Priority,
		Issues:            []string{"column assessment failed"},
		Recommendations:   []string{"Re-run the assessment for " + col.Name},
		Error:             "Assessment failed: " + err.Error(),
	}
}
