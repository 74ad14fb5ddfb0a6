package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource/mssql"    // registers "sqlserver"
	_ "github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource/postgres" // registers "postgres"
	_ "github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource/sqlite"   // registers "sqlite"
	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-health/pkg/config"
	"github.com/ekaya-inc/ekaya-health/pkg/database"
	"github.com/ekaya-inc/ekaya-health/pkg/llm"
	"github.com/ekaya-inc/ekaya-health/pkg/logging"
	"github.com/ekaya-inc/ekaya-health/pkg/repositories"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// engine is the wired assessment stack shared by serve and assess.
type engine struct {
	profiler datasource.TableProfiler
	health   services.DataHealthService

	// Set only when history is enabled.
	db          *database.DB
	historyRepo repositories.HealthHistoryRepository
	history     services.HealthHistoryService
}

// openEngine connects to the datasource (and the engine store when history
// is enabled) and wires the services. reg may be nil.
func openEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*engine, error) {
	profiler, err := datasource.Open(ctx, cfg.Datasource.Type, cfg.Datasource.AdapterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s datasource: %s", cfg.Datasource.Type, logging.SanitizeError(err))
	}
	e := &engine{profiler: profiler}

	client, err := llm.NewClient(&llm.Config{
		Provider:   cfg.LLM.Provider,
		Endpoint:   cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		APIVersion: cfg.LLM.APIVersion,
	}, logger)
	switch {
	case errors.Is(err, apperrors.ErrLLMNotConfigured):
		logger.Info("No LLM model configured; LLM-guided assessments use default dimension selections")
	case err != nil:
		e.Close()
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	metrics := services.NewMetrics(reg)
	selector := services.NewDimensionSelector(client, services.SelectorConfig{
		MaxConcurrent:  cfg.LLM.MaxConcurrent,
		RequestTimeout: cfg.LLM.RequestTimeout,
	}, metrics, logger)

	e.health = services.NewDataHealthService(
		profiler,
		services.NewSemanticConfigService(cfg.DataHealth.SemanticsPath, logger),
		selector,
		services.DataHealthConfig{
			Schema:                    cfg.Datasource.Schema,
			Tables:                    cfg.DataHealth.Tables,
			MaxConcurrentDBOperations: cfg.DataHealth.MaxConcurrentDBOperations,
			MaxConcurrentColumns:      cfg.DataHealth.MaxConcurrentColumns,
			DimensionTimeout:          cfg.DataHealth.DimensionTimeout,
			SampleSize:                cfg.DataHealth.SampleSize,
			SampleValuesPerColumn:     cfg.DataHealth.SampleValuesPerColumn,
			ColumnValueLimit:          cfg.DataHealth.ColumnValueLimit,
		},
		metrics,
		logger,
	)

	if !cfg.History.Enabled {
		return e, nil
	}

	e.db, err = openEngineStore(ctx, cfg, logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.historyRepo = repositories.NewHealthHistoryRepository(e.db.Pool)
	e.history = services.NewHealthHistoryService(
		e.historyRepo,
		repositories.NewQualityAlertRepository(e.db.Pool),
		services.AlertThresholds{
			OverallScore:   cfg.History.OverallScoreThreshold,
			DimensionScore: cfg.History.DimensionScoreThreshold,
			CriticalColumn: cfg.History.CriticalColumnThreshold,
		},
		logger,
	)
	return e, nil
}

// openEngineStore connects to the history database.
func openEngineStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine store: %s", logging.SanitizeError(err))
	}
	return db, nil
}

// Close releases the datasource and engine store.
func (e *engine) Close() {
	if e.profiler != nil {
		_ = e.profiler.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}
