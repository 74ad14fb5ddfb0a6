package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/llm"
	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/retry"
	"github.com/ekaya-inc/ekaya-health/pkg/workerpool"
)

const (
	selectorSystemMessage = "You are a data quality expert specializing in safety incident management systems. " +
		"Analyze column definitions and determine which data quality dimensions are relevant."
	selectorTemperature   = 0.1
	selectorMaxTokens     = 800
	maxPromptSampleValues = 10
)

// DimensionSelector asks a language model which dimensions are meaningful
// for a column. It never fails: any problem yields the default selection.
type DimensionSelector interface {
	Select(ctx context.Context, column models.ColumnDescriptor, semantics models.ColumnSemantics) models.DimensionSelection
	BatchSelect(ctx context.Context, columns []models.ColumnDescriptor, semantics models.SchemaSemantics) (*SelectionBatch, error)
	MaxConcurrent() int
}

// SelectionBatch holds one selection per column name.
type SelectionBatch struct {
	Selections         map[string]models.DimensionSelection
	SequentialFallback bool
}

// DefaultCount is the number of selections that fell back to the default.
func (b *SelectionBatch) DefaultCount() int {
	n := 0
	for _, sel := range b.Selections {
		if sel.Source == models.SelectionFromDefault {
			n++
		}
	}
	return n
}

// SelectorConfig tunes the selector.
type SelectorConfig struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
	Retry          *retry.Config
	CircuitBreaker llm.CircuitBreakerConfig
}

type dimensionSelector struct {
	client   llm.LLMClient
	breaker  *llm.CircuitBreaker
	pool     *workerpool.Pool
	retry    *retry.Config
	timeout  time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	dispatch dispatchFunc[models.DimensionSelection]
}

// NewDimensionSelector creates a selector. A nil client is allowed and
// always yields the default selection.
func NewDimensionSelector(client llm.LLMClient, cfg SelectorConfig, metrics *Metrics, logger *zap.Logger) DimensionSelector {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.LLMConfig()
	}
	if cfg.CircuitBreaker.Threshold == 0 {
		cfg.CircuitBreaker = llm.DefaultCircuitBreakerConfig()
	}
	return &dimensionSelector{
		client:   client,
		breaker:  llm.NewCircuitBreaker(cfg.CircuitBreaker),
		pool:     workerpool.New(workerpool.Config{Name: "dimension-selection-pool", MaxConcurrent: cfg.MaxConcurrent}, logger),
		retry:    cfg.Retry,
		timeout:  cfg.RequestTimeout,
		metrics:  metrics,
		logger:   logger.Named("dimension-selector"),
		dispatch: workerpool.Process[models.DimensionSelection],
	}
}

var _ DimensionSelector = (*dimensionSelector)(nil)

func (s *dimensionSelector) MaxConcurrent() int {
	return s.pool.MaxConcurrent()
}

func (s *dimensionSelector) Select(ctx context.Context, column models.ColumnDescriptor, semantics models.ColumnSemantics) models.DimensionSelection {
	sel, err := s.selectFromModel(ctx, column, semantics)
	if err != nil {
		if !errors.Is(err, apperrors.ErrLLMNotConfigured) {
			s.logger.Warn("Dimension selection failed, using default",
				zap.String("column", column.Name),
				zap.Error(err))
		}
		s.metrics.selectionMade(string(models.SelectionFromDefault))
		return models.DefaultDimensionSelection()
	}

	s.logger.Debug("Dimensions selected",
		zap.String("column", column.Name),
		zap.Any("dimensions_to_check", sel.DimensionsToCheck),
		zap.String("priority", string(sel.Priority)))
	s.metrics.selectionMade(string(models.SelectionFromLLM))
	return sel
}

func (s *dimensionSelector) selectFromModel(ctx context.Context, column models.ColumnDescriptor, semantics models.ColumnSemantics) (models.DimensionSelection, error) {
	if s.client == nil {
		return models.DimensionSelection{}, apperrors.ErrLLMNotConfigured
	}
	if ok, err := s.breaker.Allow(); !ok {
		return models.DimensionSelection{}, err
	}

	prompt := buildSelectionPrompt(column, semantics)
	var content string
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		result, err := s.client.GenerateResponse(callCtx, prompt, selectorSystemMessage, selectorTemperature, selectorMaxTokens)
		if err != nil {
			return err
		}
		content = result.Content
		return nil
	})
	if err != nil {
		s.breaker.RecordFailure()
		if s.breaker.State() == llm.CircuitOpen {
			s.logger.Warn("Circuit breaker open, selections use the default until it resets",
				zap.Int("consecutive_failures", s.breaker.ConsecutiveFailures()))
		}
		return models.DimensionSelection{}, fmt.Errorf("generate selection: %w", err)
	}
	s.breaker.RecordSuccess()

	resp, err := llm.ParseJSONResponse[selectionResponse](content)
	if err != nil {
		return models.DimensionSelection{}, fmt.Errorf("parse selection: %w", err)
	}
	return resp.toSelection()
}

func (s *dimensionSelector) BatchSelect(ctx context.Context, columns []models.ColumnDescriptor, semantics models.SchemaSemantics) (*SelectionBatch, error) {
	items := make([]workerpool.Item[models.DimensionSelection], len(columns))
	for i, col := range columns {
		col := col
		items[i] = workerpool.Item[models.DimensionSelection]{
			ID: col.Name,
			Execute: func(ctx context.Context) (models.DimensionSelection, error) {
				return s.Select(ctx, col, semantics[col.Name]), nil
			},
		}
	}

	s.logger.Info("Selecting dimensions",
		zap.Int("columns", len(columns)),
		zap.Int("max_concurrent", s.pool.MaxConcurrent()))

	phase, err := runPhase(ctx, "dimension_selection", s.pool, items, s.dispatch, s.logger)
	if err != nil {
		return nil, err
	}
	if phase.SequentialFallback {
		s.metrics.sequentialFallback("dimension_selection")
	}

	batch := &SelectionBatch{
		Selections:         make(map[string]models.DimensionSelection, len(columns)),
		SequentialFallback: phase.SequentialFallback,
	}
	for _, col := range columns {
		r := phase.Results[col.Name]
		if r.Err != nil {
			s.logger.Error("Dimension selection item failed, using default",
				zap.String("column", col.Name),
				zap.Error(r.Err))
			batch.Selections[col.Name] = models.DefaultDimensionSelection()
			continue
		}
		batch.Selections[col.Name] = r.Result
	}
	return batch, nil
}

// selectionResponse is the JSON shape the model is asked to return.
type selectionResponse struct {
	DimensionsToCheck []string          `json:"dimensions_to_check"`
	DimensionsToSkip  []string          `json:"dimensions_to_skip"`
	Reasoning         map[string]string `json:"reasoning"`
	Priority          string            `json:"priority"`
}

// toSelection validates the response: every dimension decided exactly once,
// a reason for each, and a known priority.
func (r selectionResponse) toSelection() (models.DimensionSelection, error) {
	decided := make(map[models.Dimension]bool, len(models.AllDimensions))
	checked := make(map[models.Dimension]bool)

	for _, group := range []struct {
		names []string
		check bool
	}{{r.DimensionsToCheck, true}, {r.DimensionsToSkip, false}} {
		for _, name := range group.names {
			d, err := models.ParseDimension(strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return models.DimensionSelection{}, err
			}
			if decided[d] {
				return models.DimensionSelection{}, fmt.Errorf("dimension %s decided more than once", d)
			}
			decided[d] = true
			checked[d] = group.check
		}
	}
	if len(decided) != len(models.AllDimensions) {
		return models.DimensionSelection{}, fmt.Errorf("selection decides %d of %d dimensions", len(decided), len(models.AllDimensions))
	}

	reasoning := make(map[models.Dimension]string, len(models.AllDimensions))
	for key, reason := range r.Reasoning {
		if d, err := models.ParseDimension(strings.ToLower(strings.TrimSpace(key))); err == nil {
			reasoning[d] = strings.TrimSpace(reason)
		}
	}
	for _, d := range models.AllDimensions {
		if reasoning[d] == "" {
			return models.DimensionSelection{}, fmt.Errorf("missing reasoning for %s", d)
		}
	}

	priority := models.Priority(strings.ToLower(strings.TrimSpace(r.Priority)))
	if !priority.Valid() {
		return models.DimensionSelection{}, fmt.Errorf("invalid priority %q", r.Priority)
	}

	sel := models.DimensionSelection{
		DimensionsToCheck: []models.Dimension{},
		DimensionsToSkip:  []models.Dimension{},
		Reasoning:         reasoning,
		Priority:          priority,
		Source:            models.SelectionFromLLM,
	}
	for _, d := range models.AllDimensions {
		if checked[d] {
			sel.DimensionsToCheck = append(sel.DimensionsToCheck, d)
		} else {
			sel.DimensionsToSkip = append(sel.DimensionsToSkip, d)
		}
	}
	return sel, nil
}

func buildSelectionPrompt(column models.ColumnDescriptor, sem models.ColumnSemantics) string {
	description := sem.Description
	if description == "" {
		description = "No description available"
	}
	dataType := sem.DataType
	if dataType == "" {
		dataType = column.DataType
	}
	samples := "None available"
	if len(sem.UniqueValues) > 0 {
		vals := sem.UniqueValues
		if len(vals) > maxPromptSampleValues {
			vals = vals[:maxPromptSampleValues]
		}
		samples = "[" + strings.Join(vals, ", ") + "]"
	}
	uniqueCount := "Unknown"
	if sem.UniqueCount > 0 {
		uniqueCount = fmt.Sprintf("%d", sem.UniqueCount)
	}
	bound := func(v *float64) string {
		if v == nil {
			return "Not specified"
		}
		return fmt.Sprintf("%g", *v)
	}

	var b strings.Builder
	b.WriteString("Analyze this column from a safety incident reporting system and decide which data quality dimensions should be checked.\n\n")
	b.WriteString("COLUMN INFORMATION:\n")
	fmt.Fprintf(&b, "- Column Name: %s\n", column.Name)
	fmt.Fprintf(&b, "- Description: %q\n", description)
	fmt.Fprintf(&b, "- Data Type: %s\n", dataType)
	fmt.Fprintf(&b, "- Sample Values: %s\n", samples)
	fmt.Fprintf(&b, "- Unique Count: %s\n", uniqueCount)
	fmt.Fprintf(&b, "- Value Range: %s to %s\n", bound(sem.Min), bound(sem.Max))
	fmt.Fprintf(&b, "- Additional Notes: %s\n\n", sem.Note)

	b.WriteString(`DATA QUALITY DIMENSIONS:
1. COMPLETENESS: missing or null values
2. UNIQUENESS: whether values should be unique
3. CONSISTENCY: data patterns and formats
4. VALIDITY: business rules and constraints
5. TIMELINESS: date freshness and recency

GUIDANCE:
- "unique identifier" in the description: check COMPLETENESS, UNIQUENESS, VALIDITY
- "if applicable" or "optional": skip COMPLETENESS or reduce its weight
- "date when" or "timestamp": check COMPLETENESS, CONSISTENCY, VALIDITY, TIMELINESS
- "type of" or "indicates whether": check COMPLETENESS, CONSISTENCY, VALIDITY
- "name of": check COMPLETENESS, CONSISTENCY, VALIDITY
- a short list of allowed values: check VALIDITY against that list
- free text with many distinct values: focus on CONSISTENCY

Every dimension must appear in exactly one of dimensions_to_check or dimensions_to_skip,
with a reason for each.

RESPONSE FORMAT (JSON only):
{
  "dimensions_to_check": ["completeness", "..."],
  "dimensions_to_skip": ["timeliness", "..."],
  "reasoning": {
    "completeness": "why",
    "uniqueness": "why",
    "consistency": "why",
    "validity": "why",
    "timeliness": "why"
  },
  "priority": "critical|high|medium|low"
}
`)
	return b.String()
}
