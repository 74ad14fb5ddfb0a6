package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/logging"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/workerpool"
)

// APIVersion is reported by Status.
const APIVersion = "1.0"

// DataHealthService scores the data quality of safety event tables.
type DataHealthService interface {
	// Assess runs the deterministic assessment.
	Assess(ctx context.Context, schemaType string) (*models.HealthReport, error)
	// AssessLLM runs the assessment with model-selected dimensions per column.
	AssessLLM(ctx context.Context, schemaType string) (*models.HealthReport, error)
	// Status describes what can be assessed.
	Status() *HealthStatus
}

// HealthStatus lists the supported schemas and the scoring model.
type HealthStatus struct {
	AvailableSchemas     []models.SchemaType      `json:"available_schemas"`
	AssessmentDimensions []models.Dimension       `json:"assessment_dimensions"`
	DimensionWeights     map[models.Dimension]int `json:"dimension_weights"`
	APIVersion           string                   `json:"api_version"`
}

// DataHealthConfig tunes assessments.
type DataHealthConfig struct {
	Schema                    string
	Tables                    map[string]string // schema type -> table override
	MaxConcurrentDBOperations int
	MaxConcurrentColumns      int
	DimensionTimeout          time.Duration
	SampleSize                int
	SampleValuesPerColumn     int
	ColumnValueLimit          int
}

func (c *DataHealthConfig) applyDefaults() {
	if c.MaxConcurrentDBOperations < 1 {
		c.MaxConcurrentDBOperations = 5
	}
	if c.MaxConcurrentColumns < 1 {
		c.MaxConcurrentColumns = 8
	}
	if c.DimensionTimeout <= 0 {
		c.DimensionTimeout = 30 * time.Second
	}
	if c.SampleSize < 1 {
		c.SampleSize = 500
	}
	if c.SampleValuesPerColumn < 1 {
		c.SampleValuesPerColumn = 100
	}
	if c.ColumnValueLimit < 1 {
		c.ColumnValueLimit = 1000
	}
}

type dataHealthService struct {
	profiler  datasource.TableProfiler
	semantics SemanticProvider
	selector  DimensionSelector
	config    DataHealthConfig
	metrics   *Metrics
	logger    *zap.Logger

	idLike     *ColumnClassifier
	dateType   *ColumnClassifier
	dbLimiter  *workerpool.Limiter
	columnPool *workerpool.Pool

	now             func() time.Time
	dispatchQueries dispatchFunc[batchValue]
	dispatchColumns dispatchFunc[*models.ColumnHealth]
}

// NewDataHealthService wires the engine. The DB limiter is shared by every
// column of an assessment and is independent of the selector's pool.
func NewDataHealthService(
	profiler datasource.TableProfiler,
	semantics SemanticProvider,
	selector DimensionSelector,
	cfg DataHealthConfig,
	metrics *Metrics,
	logger *zap.Logger,
) DataHealthService {
	cfg.applyDefaults()
	return &dataHealthService{
		profiler:        profiler,
		semantics:       semantics,
		selector:        selector,
		config:          cfg,
		metrics:         metrics,
		logger:          logger.Named("data-health"),
		idLike:          IDLikeClassifier(),
		dateType:        DateTypeClassifier(),
		dbLimiter:       workerpool.NewLimiter(cfg.MaxConcurrentDBOperations),
		columnPool:      workerpool.New(workerpool.Config{Name: "column-assessment-pool", MaxConcurrent: cfg.MaxConcurrentColumns}, logger),
		now:             time.Now,
		dispatchQueries: workerpool.Process[batchValue],
		dispatchColumns: workerpool.Process[*models.ColumnHealth],
	}
}

var _ DataHealthService = (*dataHealthService)(nil)

func (s *dataHealthService) Status() *HealthStatus {
	return &HealthStatus{
		AvailableSchemas:     append([]models.SchemaType(nil), models.SchemaTypes...),
		AssessmentDimensions: append([]models.Dimension(nil), models.AllDimensions...),
		DimensionWeights:     models.DimensionWeights(),
		APIVersion:           APIVersion,
	}
}

// tableFor resolves the table holding a schema type's events.
func (s *dataHealthService) tableFor(st models.SchemaType) string {
	if t, ok := s.config.Tables[string(st)]; ok && t != "" {
		return t
	}
	return st.DefaultTable()
}

func (s *dataHealthService) newRunner(table string) *dbRunner {
	return &dbRunner{
		profiler: s.profiler,
		schema:   s.config.Schema,
		table:    table,
		limiter:  s.dbLimiter,
		timeout:  s.config.DimensionTimeout,
	}
}

// prepared is the shared start of both assessment paths.
type prepared struct {
	schemaType   models.SchemaType
	table        string
	totalRecords int64
	columns      []models.ColumnDescriptor
}

// prepare validates the schema type and counts records. Columns are only
// inspected when there are records to score.
func (s *dataHealthService) prepare(ctx context.Context, schemaType string) (*prepared, error) {
	st, err := models.ParseSchemaType(schemaType)
	if err != nil {
		return nil, err
	}
	p := &prepared{schemaType: st, table: s.tableFor(st)}

	p.totalRecords, err = s.profiler.CountRecords(ctx, s.config.Schema, p.table)
	if err != nil {
		return nil, fmt.Errorf("count records in %s: %w", p.table, err)
	}
	if p.totalRecords == 0 {
		return p, nil
	}

	p.columns, err = InspectColumns(ctx, s.profiler, s.config.Schema, p.table, st)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *dataHealthService) Assess(ctx context.Context, schemaType string) (*models.HealthReport, error) {
	start := s.now()
	s.logger.Info("Starting data health assessment", zap.String("schema_type", schemaType))

	p, err := s.prepare(ctx, schemaType)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentStandard)
		return nil, err
	}
	if p.totalRecords == 0 {
		s.logger.Info("No records to assess", zap.String("schema_type", schemaType), zap.String("table", p.table))
		return EmptyReport(p.schemaType, models.AssessmentStandard, start), nil
	}

	plan := PlanQueries(p.columns, s.idLike, s.dateType)
	s.logger.Debug("Planned batch queries",
		zap.String("table", p.table),
		zap.Int("columns", len(p.columns)),
		zap.Int("round_trips", plan.RoundTrips()))

	stats, err := s.executePlan(ctx, s.newRunner(p.table), plan)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentStandard)
		return nil, err
	}

	columns := make(map[string]*models.ColumnHealth, len(p.columns))
	for _, col := range p.columns {
		columns[col.Name] = s.scoreFromStats(col, plan, stats, p.totalRecords, start)
	}

	report := assembleReport(p.schemaType, models.AssessmentStandard, p.totalRecords, s.now(), columns)

	elapsed := s.now().Sub(start)
	s.metrics.assessmentCompleted(schemaType, models.AssessmentStandard, elapsed.Seconds(), report.OverallHealth.Score)
	s.logger.Info("Data health assessment completed",
		zap.String("schema_type", schemaType),
		zap.Int64("total_records", p.totalRecords),
		zap.Int("columns", len(columns)),
		zap.Float64("overall_score", report.OverallHealth.Score),
		zap.Duration("elapsed", elapsed))
	return report, nil
}

func (s *dataHealthService) AssessLLM(ctx context.Context, schemaType string) (*models.HealthReport, error) {
	start := s.now()
	s.logger.Info("Starting LLM-guided data health assessment", zap.String("schema_type", schemaType))

	p, err := s.prepare(ctx, schemaType)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentLLMEnhanced)
		return nil, err
	}
	if p.totalRecords == 0 {
		return EmptyReport(p.schemaType, models.AssessmentLLMEnhanced, start), nil
	}

	semantics, err := s.semantics.SchemaSemantics(p.schemaType)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentLLMEnhanced)
		return nil, err
	}

	selectionStart := s.now()
	batch, err := s.selector.BatchSelect(ctx, p.columns, semantics)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentLLMEnhanced)
		return nil, err
	}
	selectionElapsed := s.now().Sub(selectionStart)

	selections := make(map[string]models.DimensionSelection, len(p.columns))
	for _, col := range p.columns {
		sel, ok := batch.Selections[col.Name]
		if !ok {
			sel = models.DefaultDimensionSelection()
		}
		selections[col.Name] = s.applicableSelection(col, sel)
	}

	assessmentStart := s.now()
	columns, columnFallback, err := s.assessColumnsGuided(ctx, p, selections, start)
	if err != nil {
		s.metrics.assessmentFailed(schemaType, models.AssessmentLLMEnhanced)
		return nil, err
	}
	assessmentElapsed := s.now().Sub(assessmentStart)

	report := assembleReport(p.schemaType, models.AssessmentLLMEnhanced, p.totalRecords, s.now(), columns)

	selectionSummary, llmRecs := SummarizeSelections(selections)
	report.Summary.LLMInsights = selectionSummary
	report.Summary.Recommendations.LLMRecommendations = llmRecs
	report.LLMInsights = &models.LLMInsights{
		TotalColumnsAnalyzed:    len(p.columns),
		DimensionSelectionsMade: len(batch.Selections),
		DefaultSelections:       batch.DefaultCount(),
	}

	total := s.now().Sub(start)
	report.PerformanceMetrics = &models.PerformanceMetrics{
		LLMSelectionSeconds:       selectionElapsed.Seconds(),
		ColumnAssessmentSeconds:   assessmentElapsed.Seconds(),
		TotalProcessingSeconds:    total.Seconds(),
		MaxConcurrentLLMRequests:  s.selector.MaxConcurrent(),
		MaxConcurrentDBOperations: s.dbLimiter.Cap(),
		SelectionSequentialRetry:  batch.SequentialFallback,
		AssessmentSequentialRetry: columnFallback,
	}

	s.metrics.assessmentCompleted(schemaType, models.AssessmentLLMEnhanced, total.Seconds(), report.OverallHealth.Score)
	s.logger.Info("LLM-guided data health assessment completed",
		zap.String("schema_type", schemaType),
		zap.Int64("total_records", p.totalRecords),
		zap.Int("columns", len(columns)),
		zap.Int("default_selections", report.LLMInsights.DefaultSelections),
		zap.Float64("overall_score", report.OverallHealth.Score),
		zap.Duration("selection", selectionElapsed),
		zap.Duration("assessment", assessmentElapsed))
	return report, nil
}

// assessColumnsGuided fans columns out over the column pool.
func (s *dataHealthService) assessColumnsGuided(
	ctx context.Context,
	p *prepared,
	selections map[string]models.DimensionSelection,
	now time.Time,
) (map[string]*models.ColumnHealth, bool, error) {
	runner := s.newRunner(p.table)
	items := make([]workerpool.Item[*models.ColumnHealth], len(p.columns))
	for i, col := range p.columns {
		col := col
		sel := selections[col.Name]
		items[i] = workerpool.Item[*models.ColumnHealth]{
			ID: col.Name,
			Execute: func(ctx context.Context) (*models.ColumnHealth, error) {
				return s.assessGuidedColumn(ctx, runner, col, sel, p.totalRecords, now), nil
			},
		}
	}

	phase, err := runPhase(ctx, "column_assessment", s.columnPool, items, s.dispatchColumns, s.logger)
	if err != nil {
		return nil, false, err
	}
	if phase.SequentialFallback {
		s.metrics.sequentialFallback("column_assessment")
	}

	columns := make(map[string]*models.ColumnHealth, len(p.columns))
	for _, col := range p.columns {
		r := phase.Results[col.Name]
		if r.Err != nil || r.Result == nil {
			err := r.Err
			if err == nil {
				err = errors.New("no result")
			}
			s.logger.Error("Column assessment failed",
				zap.String("column", col.Name),
				zap.Error(err))
			columns[col.Name] = failedColumn(col, selections[col.Name], err)
			continue
		}
		columns[col.Name] = r.Result
	}
	return columns, phase.SequentialFallback, nil
}

// applicableSelection drops dimensions that cannot apply to a column.
// Timeliness needs a date/time type. A default selection also drops
// uniqueness for columns that are not ID-like, matching the deterministic
// path; a model selection is trusted on uniqueness.
func (s *dataHealthService) applicableSelection(col models.ColumnDescriptor, sel models.DimensionSelection) models.DimensionSelection {
	drop := map[models.Dimension]string{}
	if !s.dateType.Classify(col.Name, col.DataType) {
		drop[models.DimensionTimeliness] = "Not applicable - column is not date/time typed"
	}
	if sel.Source == models.SelectionFromDefault && !s.idLike.Classify(col.Name, col.DataType) {
		drop[models.DimensionUniqueness] = "Not applicable - column is not an identifier"
	}

	out := models.DimensionSelection{
		DimensionsToCheck: []models.Dimension{},
		DimensionsToSkip:  append([]models.Dimension{}, sel.DimensionsToSkip...),
		Reasoning:         make(map[models.Dimension]string, len(sel.Reasoning)),
		Priority:          sel.Priority,
		Source:            sel.Source,
	}
	for d, r := range sel.Reasoning {
		out.Reasoning[d] = r
	}
	for _, d := range sel.DimensionsToCheck {
		if reason, ok := drop[d]; ok {
			out.DimensionsToSkip = append(out.DimensionsToSkip, d)
			out.Reasoning[d] = reason
			continue
		}
		out.DimensionsToCheck = append(out.DimensionsToCheck, d)
	}
	return out
}

func (s *dataHealthService) logDimensionFailure(d models.Dimension, column string, err error) {
	s.metrics.dimensionFailed(string(d))
	s.logger.Warn("Dimension check failed, using placeholder",
		zap.String("dimension", string(d)),
		zap.String("column", column),
		zap.String("error", logging.SanitizeError(err)))
}
