package workflow

import (
	"context"
	"time"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/notifications"
)

// Alerts outlive the job context so a timed-out job can still report.
func (r *Runner) notifyCompleted(ctx context.Context, s *runState, elapsed time.Duration) {
	if r.collab.Notifier == nil {
		return
	}
	err := r.collab.Notifier.NotifyJobCompleted(context.WithoutCancel(ctx), summaryOf(s, elapsed))
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "job notification failed", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.Error(err),
		)
	}
}

func (r *Runner) notifyFailed(ctx context.Context, s *runState, stageName string, stageErr error) {
	if r.collab.Notifier == nil {
		return
	}
	err := r.collab.Notifier.NotifyJobFailed(context.WithoutCancel(ctx), summaryOf(s, 0), stageName, stageErr)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "job notification failed", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.Error(err),
		)
	}
}

func summaryOf(s *runState, elapsed time.Duration) notifications.JobSummary {
	return notifications.JobSummary{
		JobID:    s.id,
		Filename: s.req.displayName(),
		Slides:   len(s.notes),
		Duration: elapsed,
	}
}
