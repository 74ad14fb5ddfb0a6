package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/workerpool"
)

// QueryPlan lists the aggregate queries of a deterministic assessment: one
// non-null count per column, one distinct count per ID-like column, one
// min/max per date column and a single shared sample.
type QueryPlan struct {
	Columns      []models.ColumnDescriptor
	Completeness []string
	Uniqueness   []string
	Timeliness   []string
}

// PlanQueries classifies columns into the batches they need.
func PlanQueries(columns []models.ColumnDescriptor, idLike, dateType *ColumnClassifier) *QueryPlan {
	plan := &QueryPlan{Columns: columns}
	for _, c := range columns {
		plan.Completeness = append(plan.Completeness, c.Name)
		if idLike.Classify(c.Name, c.DataType) {
			plan.Uniqueness = append(plan.Uniqueness, c.Name)
		}
		if dateType.Classify(c.Name, c.DataType) {
			plan.Timeliness = append(plan.Timeliness, c.Name)
		}
	}
	return plan
}

// RoundTrips is the number of queries the plan issues.
func (p *QueryPlan) RoundTrips() int {
	if len(p.Columns) == 0 {
		return 0
	}
	return len(p.Completeness) + len(p.Uniqueness) + len(p.Timeliness) + 1
}

// ColumnNames returns the planned columns in ordinal order.
func (p *QueryPlan) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// BatchStats holds raw query results keyed by column name. A query that
// failed is recorded in the matching error map instead.
type BatchStats struct {
	NonNull     map[string]int64
	Distinct    map[string]int64
	Ranges      map[string]*datasource.DateRange
	Sample      []map[string]any
	QueryErrors map[models.Dimension]map[string]error
	SampleErr   error

	SequentialFallback bool
}

func (s *BatchStats) queryError(d models.Dimension, column string) error {
	return s.QueryErrors[d][column]
}

// dbRunner bounds database calls with a shared limiter and a per-call
// timeout. A panic inside a call is returned as an error.
type dbRunner struct {
	profiler datasource.TableProfiler
	schema   string
	table    string
	limiter  *workerpool.Limiter
	timeout  time.Duration
}

func (r *dbRunner) do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer r.limiter.Release()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("query panicked: %v", rec)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(callCtx)
}

// batchValue is the result of any planned query.
type batchValue struct {
	count  int64
	rng    *datasource.DateRange
	sample []map[string]any
}

const sampleQueryID = "sample"

func queryID(d models.Dimension, column string) string {
	return string(d) + ":" + column
}

// executePlan runs every planned query through the column pool. Query
// failures are kept per column; only a context error is returned.
func (s *dataHealthService) executePlan(ctx context.Context, runner *dbRunner, plan *QueryPlan) (*BatchStats, error) {
	var items []workerpool.Item[batchValue]

	for _, col := range plan.Completeness {
		col := col
		items = append(items, workerpool.Item[batchValue]{
			ID: queryID(models.DimensionCompleteness, col),
			Execute: func(ctx context.Context) (batchValue, error) {
				var v batchValue
				err := runner.do(ctx, func(ctx context.Context) error {
					n, err := runner.profiler.CountNonNull(ctx, runner.schema, runner.table, col)
					v.count = n
					return err
				})
				return v, err
			},
		})
	}
	for _, col := range plan.Uniqueness {
		col := col
		items = append(items, workerpool.Item[batchValue]{
			ID: queryID(models.DimensionUniqueness, col),
			Execute: func(ctx context.Context) (batchValue, error) {
				var v batchValue
				err := runner.do(ctx, func(ctx context.Context) error {
					n, err := runner.profiler.CountDistinct(ctx, runner.schema, runner.table, col)
					v.count = n
					return err
				})
				return v, err
			},
		})
	}
	for _, col := range plan.Timeliness {
		col := col
		items = append(items, workerpool.Item[batchValue]{
			ID: queryID(models.DimensionTimeliness, col),
			Execute: func(ctx context.Context) (batchValue, error) {
				var v batchValue
				err := runner.do(ctx, func(ctx context.Context) error {
					rng, err := runner.profiler.DateRange(ctx, runner.schema, runner.table, col)
					v.rng = rng
					return err
				})
				return v, err
			},
		})
	}
	columns := plan.ColumnNames()
	items = append(items, workerpool.Item[batchValue]{
		ID: sampleQueryID,
		Execute: func(ctx context.Context) (batchValue, error) {
			var v batchValue
			err := runner.do(ctx, func(ctx context.Context) error {
				rows, err := runner.profiler.SampleRecords(ctx, runner.schema, runner.table, columns, s.config.SampleSize)
				v.sample = rows
				return err
			})
			return v, err
		},
	})

	phase, err := runPhase(ctx, "batch_queries", s.columnPool, items, s.dispatchQueries, s.logger)
	if err != nil {
		return nil, err
	}
	if phase.SequentialFallback {
		s.metrics.sequentialFallback("batch_queries")
	}

	stats := &BatchStats{
		NonNull:            make(map[string]int64, len(plan.Completeness)),
		Distinct:           make(map[string]int64, len(plan.Uniqueness)),
		Ranges:             make(map[string]*datasource.DateRange, len(plan.Timeliness)),
		QueryErrors:        make(map[models.Dimension]map[string]error),
		SequentialFallback: phase.SequentialFallback,
	}
	record := func(d models.Dimension, col string, apply func(batchValue)) {
		r := phase.Results[queryID(d, col)]
		if r.Err != nil {
			if stats.QueryErrors[d] == nil {
				stats.QueryErrors[d] = make(map[string]error)
			}
			stats.QueryErrors[d][col] = r.Err
			s.logDimensionFailure(d, col, r.Err)
			return
		}
		apply(r.Result)
	}
	for _, col := range plan.Completeness {
		record(models.DimensionCompleteness, col, func(v batchValue) { stats.NonNull[col] = v.count })
	}
	for _, col := range plan.Uniqueness {
		record(models.DimensionUniqueness, col, func(v batchValue) { stats.Distinct[col] = v.count })
	}
	for _, col := range plan.Timeliness {
		record(models.DimensionTimeliness, col, func(v batchValue) { stats.Ranges[col] = v.rng })
	}
	if r := phase.Results[sampleQueryID]; r.Err != nil {
		stats.SampleErr = r.Err
		s.logger.Warn("Sample query failed",
			zap.String("table", runner.table),
			zap.Error(r.Err))
	} else {
		stats.Sample = r.Result.sample
	}
	return stats, nil
}

// scoreFromStats builds a column's health from batch results.
func (s *dataHealthService) scoreFromStats(
	col models.ColumnDescriptor,
	plan *QueryPlan,
	stats *BatchStats,
	totalRecords int64,
	now time.Time,
) *models.ColumnHealth {
	ch := &models.ColumnHealth{
		DataType:   col.DataType,
		IsCritical: col.IsCritical,
	}

	if err := stats.queryError(models.DimensionCompleteness, col.Name); err != nil {
		ch.Completeness = failedCompleteness(totalRecords, err)
	} else {
		ch.Completeness = ScoreCompleteness(totalRecords, stats.NonNull[col.Name])
	}

	if slices.Contains(plan.Uniqueness, col.Name) {
		switch {
		case stats.queryError(models.DimensionUniqueness, col.Name) != nil:
			ch.Uniqueness = &models.UniquenessResult{Error: stats.queryError(models.DimensionUniqueness, col.Name).Error()}
		case ch.Completeness.Error != "":
			ch.Uniqueness = &models.UniquenessResult{Error: "non-null count unavailable"}
		default:
			ch.Uniqueness = ScoreUniqueness(ch.Completeness.NonNullCount, stats.Distinct[col.Name])
		}
	}

	if slices.Contains(plan.Timeliness, col.Name) {
		if err := stats.queryError(models.DimensionTimeliness, col.Name); err != nil {
			ch.Timeliness = &models.TimelinessResult{Error: err.Error()}
		} else {
			ch.Timeliness = ScoreTimeliness(stats.Ranges[col.Name], now)
		}
	}

	if stats.SampleErr != nil {
		msg := stats.SampleErr.Error()
		ch.Consistency = &models.ConsistencyResult{Error: msg}
		ch.Validity = &models.ValidityResult{Error: msg}
	} else {
		raw := make([]any, 0, len(stats.Sample))
		for _, row := range stats.Sample {
			raw = append(raw, row[col.Name])
		}
		values, err := SampleStrings(raw, s.config.SampleValuesPerColumn)
		if err != nil {
			s.logDimensionFailure(models.DimensionConsistency, col.Name, err)
			ch.Consistency = &models.ConsistencyResult{Error: err.Error()}
			ch.Validity = &models.ValidityResult{Error: err.Error()}
		} else {
			ch.Consistency = ScoreConsistency(col.Name, values)
			ch.Validity = ScoreValidity(col.Name, values, now)
		}
	}

	ch.OverallColumnScore = ColumnScore(ch)
	ch.Issues, ch.Recommendations = ColumnIssues(col.Name, ch)
	return ch
}

// failedCompleteness is the placeholder for a failed non-null count: every
// record is treated as missing.
func failedCompleteness(totalRecords int64, err error) *models.CompletenessResult {
	return &models.CompletenessResult{
		NullCount:      totalRecords,
		NullPercentage: 100,
		Error:          err.Error(),
	}
}
