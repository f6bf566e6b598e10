package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lecturenotes/internal/config"
)

const userAgent = "lecturenotes/1.0"

// JobSummary describes a finished job for an alert.
type JobSummary struct {
	JobID    string
	Filename string
	Slides   int
	Duration time.Duration
}

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job JobSummary) error
	NotifyJobFailed(ctx context.Context, job JobSummary, stage string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func displayName(job JobSummary) string {
	if name := strings.TrimSpace(job.Filename); name != "" {
		return name
	}
	return job.JobID
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job JobSummary) error {
	duration := job.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return n.send(ctx, payload{
		title:   "Lecture notes ready",
		message: fmt.Sprintf("📝 %s: %d slides in %s", displayName(job), job.Slides, duration),
		tags:    []string{"lecturenotes", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job JobSummary, stage string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ ")
	builder.WriteString(displayName(job))
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" failed during ")
		builder.WriteString(stage)
	} else {
		builder.WriteString(" failed")
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Lecture notes failed",
		message:  builder.String(),
		tags:     []string{"lecturenotes", "job", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "lecturenotes test",
		message:  "🧪 Notification system test",
		tags:     []string{"lecturenotes", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, JobSummary) error             { return nil }
func (noopService) NotifyJobFailed(context.Context, JobSummary, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
