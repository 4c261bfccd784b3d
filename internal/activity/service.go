package activity

import (
	"context"
	"log/slog"
	"time"
)

// RetentionDays is how long trail entries are kept before the nightly purge
// removes them.
const RetentionDays = 90

// Service implements the audit trail. It satisfies ledger.ActivityRecorder.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record appends one entry to the trail.
func (s *Service) Record(ctx context.Context, userID int64, role, action string) error {
	return s.repo.Insert(ctx, userID, role, action)
}

// List returns trail entries matching the filters, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Entry, int, error) {
	return s.repo.List(ctx, req)
}

// GetStats summarizes the trail.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.GetStats(ctx)
}

// Purge deletes entries past the retention window and reports how many were
// removed.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -RetentionDays)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("purged activity log",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return removed, nil
}
