package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-health/pkg/config"
	"github.com/ekaya-inc/ekaya-health/pkg/database"
	"github.com/ekaya-inc/ekaya-health/pkg/handlers"
	"github.com/ekaya-inc/ekaya-health/pkg/logging"
	"github.com/ekaya-inc/ekaya-health/pkg/mcp"
	"github.com/ekaya-inc/ekaya-health/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-health/pkg/middleware"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, MCP endpoint and scheduled assessments.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("datasource_type", cfg.Datasource.Type),
		zap.String("datasource_host", cfg.Datasource.Host),
		zap.Bool("llm_available", cfg.LLM.IsAvailable()),
		zap.Bool("history_enabled", cfg.History.Enabled),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := openEngine(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.db != nil {
		if err := migrateUp(e.db, cfg.Database.MigrationsPath, logger); err != nil {
			return err
		}
	}

	handler := newRouter(cfg, e, reg, logger)

	if cfg.Scheduler.Enabled {
		scheduler := services.NewHealthScheduler(e.health, e.history, services.SchedulerConfig{
			Cron:        cfg.Scheduler.Cron,
			SchemaTypes: cfg.Scheduler.SchemaTypes,
			UseLLM:      cfg.Scheduler.UseLLM,
		}, logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if e.historyRepo != nil && cfg.History.RetentionDays > 0 {
		services.NewRetentionService(e.historyRepo, cfg.History.RetentionDays, logger).
			RunScheduler(ctx, cfg.History.RetentionInterval)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-health", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newRouter registers every HTTP route and wraps the mux in request logging
// and metrics. Metrics sit directly on the mux so they see the matched pattern.
func newRouter(cfg *config.Config, e *engine, reg *prometheus.Registry, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	checks := map[string]handlers.Pinger{}
	var pingDatasource tools.PingFunc
	if p, ok := e.profiler.(datasource.Pinger); ok {
		checks["datasource"] = p
		pingDatasource = p.Ping
	}
	if e.db != nil {
		checks["engine_store"] = e.db
	}

	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewDataHealthHandler(e.health, e.history, logger).RegisterRoutes(mux)
	if e.history != nil {
		handlers.NewAlertHandler(e.history, logger).RegisterRoutes(mux)
	}

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewDataHealthServer(cfg.Version, &mcp.ServerDeps{
			Health:         e.health,
			PingDatasource: pingDatasource,
			ToolMetrics:    mcp.NewToolMetrics(reg),
		}, logger)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	httpMetrics := middleware.NewHTTPMetrics(reg)
	return middleware.RequestLogger(logger)(httpMetrics.Middleware(mux))
}

// migrateUp applies pending engine-store migrations.
func migrateUp(db *database.DB, migrationsPath string, logger *zap.Logger) error {
	sqlDB := db.SQLDB()
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, migrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %s", logging.SanitizeError(err))
	}
	return nil
}
