package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campuspay/campuspay/internal/jobs"
)

// ActivityPurger is the slice of the activity service the purge job needs.
type ActivityPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ActivityPurgeJob removes expired audit trail entries.
type ActivityPurgeJob struct {
	purger  ActivityPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewActivityPurgeJob constructs the job.
func NewActivityPurgeJob(purger ActivityPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityPurgeJob {
	return &ActivityPurgeJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskActivityPurge tasks.
func (j *ActivityPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("activity_purge")
	removed, err := j.purger.Purge(ctx)
	if err != nil {
		j.logger.Error("activity purge", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddPurged(removed)
	j.logger.Info("activity purge done", slog.Int64("removed", removed))
	return tracker.End(nil)
}
