package jobs

import (
	"context"
	"fmt"
	"time"

	"vocabapp/internal/metrics"
	"vocabapp/internal/repositories"

	"go.uber.org/zap"
)

// SessionSweeper deactivates sessions whose refresh window has closed and
// purges rows that stayed expired longer than the retention period.
type SessionSweeper struct {
	sessions  repositories.SessionRepository
	metrics   *metrics.AuthMetrics
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time
}

type SweepResult struct {
	Deactivated int64
	Purged      int64
	SweptAt     time.Time
}

func NewSessionSweeper(sessions repositories.SessionRepository, m *metrics.AuthMetrics, logger *zap.Logger, retention time.Duration, now func() time.Time) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &SessionSweeper{
		sessions:  sessions,
		metrics:   m,
		logger:    logger.Named("session_sweeper"),
		retention: retention,
		now:       now,
	}
}

func (s *SessionSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	result := &SweepResult{SweptAt: now}

	deactivated, err := s.sessions.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	result.Deactivated = deactivated
	s.metrics.SessionsSwept("deactivated", deactivated)

	if s.retention > 0 {
		purged, err := s.sessions.PurgeExpiredBefore(ctx, now.Add(-s.retention))
		if err != nil {
			return result, fmt.Errorf("purge expired sessions: %w", err)
		}
		result.Purged = purged
		s.metrics.SessionsSwept("purged", purged)
	}

	return result, nil
}

// ScheduledSweep is the scheduler entry point.
func (s *SessionSweeper) ScheduledSweep(ctx context.Context) error {
	started := time.Now()
	result, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return err
	}

	s.logger.Info("session sweep completed",
		zap.Int64("deactivated", result.Deactivated),
		zap.Int64("purged", result.Purged),
		zap.Duration("took", time.Since(started)))
	return nil
}
