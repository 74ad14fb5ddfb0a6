package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SchedulerConfig drives periodic assessments.
type SchedulerConfig struct {
	Cron        string // six fields, seconds first
	SchemaTypes []string
	UseLLM      bool
}

// HealthScheduler runs assessments for a set of schema types on a cron
// schedule and records each report. A failing schema type does not stop
// the others.
type HealthScheduler struct {
	health  DataHealthService
	history HealthHistoryService
	config  SchedulerConfig
	cron    *cron.Cron
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func NewHealthScheduler(health DataHealthService, history HealthHistoryService, cfg SchedulerConfig, logger *zap.Logger) *HealthScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthScheduler{
		health:  health,
		history: history,
		config:  cfg,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.Named("health-scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the cron entry and starts the scheduler.
func (s *HealthScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("health scheduler already started")
	}
	if _, err := s.cron.AddFunc(s.config.Cron, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.config.Cron, err)
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("Health scheduler started",
		zap.String("cron", s.config.Cron),
		zap.Strings("schema_types", s.config.SchemaTypes),
		zap.Bool("use_llm", s.config.UseLLM))
	return nil
}

// Stop cancels in-flight runs and waits for the cron runner to finish.
func (s *HealthScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Health scheduler stopped")
}

// RunOnce assesses every configured schema type and returns how many were
// recorded.
func (s *HealthScheduler) RunOnce(ctx context.Context) int {
	recorded := 0
	for _, schemaType := range s.config.SchemaTypes {
		if ctx.Err() != nil {
			return recorded
		}

		assess := s.health.Assess
		if s.config.UseLLM {
			assess = s.health.AssessLLM
		}
		report, err := assess(ctx, schemaType)
		if err != nil {
			s.logger.Error("Scheduled assessment failed",
				zap.String("schema_type", schemaType),
				zap.Error(err))
			continue
		}

		if _, alerts, err := s.history.Record(ctx, report); err != nil {
			s.logger.Error("Failed to record scheduled assessment",
				zap.String("schema_type", schemaType),
				zap.Error(err))
			continue
		} else if len(alerts) > 0 {
			s.logger.Warn("Scheduled assessment raised alerts",
				zap.String("schema_type", schemaType),
				zap.Int("alerts", len(alerts)))
		}
		recorded++
	}
	return recorded
}
