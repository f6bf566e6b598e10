package workflow

import (
	"context"
	"fmt"
	"strings"

	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/services"
)

// handleFailure records a stage failure on the job. Input errors found
// during prepare reject the job so it never enters running.
func (r *Runner) handleFailure(ctx context.Context, s *runState, stageName string, stageErr error) {
	logger := logging.WithContext(ctx, r.logger)
	message := failureMessage(stageName, stageErr)

	rejected := false
	if stageName == "prepare" && services.Classify(stageErr) == services.KindInput {
		rejected = r.jobs.Reject(s.id, message)
	}
	if !rejected {
		r.jobs.Update(s.id, jobs.ProgressFailed, message)
	}

	details := services.Details(stageErr)
	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("slides_saved", len(s.notes)),
		logging.Bool("rejected", rejected),
		logging.String(logging.FieldEventType, "stage_failure"),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	if details.Kind == services.KindCancelled {
		logger.Info("job cancelled", logging.Args(attrs...)...)
		return
	}
	logger.Error("stage failed", logging.Args(attrs...)...)
	r.notifyFailed(ctx, s, stageName, stageErr)
}

func failureMessage(stageName string, err error) string {
	cause := "unknown error"
	if err != nil {
		if text := strings.TrimSpace(err.Error()); text != "" {
			cause = text
		}
	}
	return fmt.Sprintf("%s failed: %s", stageName, cause)
}
