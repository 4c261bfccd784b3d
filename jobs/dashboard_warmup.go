package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campuspay/campuspay/internal/jobs"
)

// DashboardWarmer is the slice of the dashboard service the warmup job needs.
type DashboardWarmer interface {
	Warmup(ctx context.Context) error
}

// DashboardWarmupJob rebuilds the cached admin dashboard into a fresh cache
// generation so the first morning request is served warm.
type DashboardWarmupJob struct {
	warmer  DashboardWarmer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewDashboardWarmupJob constructs the job.
func NewDashboardWarmupJob(warmer DashboardWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{warmer: warmer, logger: logger, metrics: metrics}
}

// Handle processes TaskDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("dashboard_warmup")
	if err := j.warmer.Warmup(ctx); err != nil {
		j.logger.Error("dashboard warmup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("dashboard warmup done")
	return tracker.End(nil)
}
