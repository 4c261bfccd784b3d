// Package jobs runs the portal's background work on asynq.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskActivityPurge removes activity log entries past retention.
	TaskActivityPurge = "activity:purge"
	// TaskDashboardWarmup rebuilds the cached admin dashboard.
	TaskDashboardWarmup = "dashboard:warmup"
)

// NewActivityPurgeTask constructs the nightly purge task.
func NewActivityPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskActivityPurge, nil)
}

// NewDashboardWarmupTask constructs the dashboard warmup task.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardWarmup, nil)
}
