package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/repositories"
)

// DefaultRetentionDays is the default retention period for health history.
const DefaultRetentionDays = 90

// RetentionService removes old health history. Alerts keep their rows; the
// history reference is cleared by the foreign key.
type RetentionService interface {
	// Prune removes history older than retentionDays and returns the count.
	Prune(ctx context.Context, retentionDays int) (int64, error)

	// RunScheduler prunes immediately and then on every interval until ctx
	// is cancelled.
	RunScheduler(ctx context.Context, interval time.Duration)
}

type retentionService struct {
	historyRepo   repositories.HealthHistoryRepository
	retentionDays int
	now           func() time.Time
	logger        *zap.Logger
}

func NewRetentionService(historyRepo repositories.HealthHistoryRepository, retentionDays int, logger *zap.Logger) RetentionService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &retentionService{
		historyRepo:   historyRepo,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.Named("retention-service"),
	}
}

var _ RetentionService = (*retentionService)(nil)

func (s *retentionService) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = s.retentionDays
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted, err := s.historyRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune health history", zap.Error(err))
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("Retention cleanup completed",
			zap.Int("retention_days", retentionDays),
			zap.Int64("history_deleted", deleted))
	}
	return deleted, nil
}

func (s *retentionService) RunScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Retention scheduler started",
			zap.Duration("interval", interval),
			zap.Int("retention_days", s.retentionDays))

		_, _ = s.Prune(ctx, s.retentionDays)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Retention scheduler stopped")
				return
			case <-ticker.C:
				_, _ = s.Prune(ctx, s.retentionDays)
			}
		}
	}()
}
