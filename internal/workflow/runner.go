package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"lecturenotes/internal/config"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/segment"
	"lecturenotes/internal/services"
)

// Runner executes lecture jobs in background goroutines.
type Runner struct {
	cfg     *config.Config
	jobs    *jobs.Manager
	collab  Collaborators
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	segmenter segment.Segmenter
	mapper    *mapping.Mapper
	assembler *notes.Assembler

	callTimeout time.Duration
	slots       chan struct{}

	root context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewRunner wires the pipeline. Transcriber, Rasterizer, Captioner, Embedder
// and Generator are required.
func NewRunner(cfg *config.Config, manager *jobs.Manager, collab Collaborators, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "config required", nil)
	}
	if manager == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "job manager required", nil)
	}
	missing := ""
	switch {
	case collab.Transcriber == nil:
		missing = "transcriber"
	case collab.Rasterizer == nil:
		missing = "rasterizer"
	case collab.Captioner == nil:
		missing = "captioner"
	case collab.Embedder == nil:
		missing = "embedder"
	case collab.Generator == nil:
		missing = "note generator"
	}
	if missing != "" {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", missing+" required", nil)
	}

	slots := cfg.Workflow.MaxConcurrentJobs
	if slots <= 0 {
		slots = 1
	}
	root, stop := context.WithCancel(context.Background())
	return &Runner{
		cfg:         cfg,
		jobs:        manager,
		collab:      collab,
		logger:      logging.NewComponentLogger(logger, "workflow-runner"),
		sampler:     logging.NewProgressSampler(10),
		segmenter:   segment.Segmenter{MaxSentences: cfg.Workflow.MaxSentences},
		mapper:      mapping.New(collab.Embedder),
		assembler:   notes.NewAssembler(collab.Generator),
		callTimeout: cfg.CallTimeout(),
		slots:       make(chan struct{}, slots),
		root:        root,
		stop:        stop,
		cancels:     make(map[string]context.CancelFunc),
	}, nil
}

// NewWorkspace creates an empty per-job directory under the workspace root.
func (r *Runner) NewWorkspace() (string, error) {
	if err := os.MkdirAll(r.cfg.Paths.WorkspaceDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "submit", "workspace", "create workspace root", err)
	}
	dir, err := os.MkdirTemp(r.cfg.Paths.WorkspaceDir, "job-")
	if err != nil {
		return "", services.Wrap(services.ErrResource, "submit", "workspace", "create job workspace", err)
	}
	return dir, nil
}

// Submit validates req, registers a job and starts it in the background.
// The runner owns req.WorkDir from this point on, including when Submit
// returns an error.
func (r *Runner) Submit(ctx context.Context, req Request) (string, error) {
	logger := logging.WithContext(ctx, r.logger)
	if err := req.validate(r.cfg.TranscriptCachePath()); err != nil {
		r.cleanupWorkspace(logger, req.WorkDir)
		return "", err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.cleanupWorkspace(logger, req.WorkDir)
		return "", services.Wrap(services.ErrResource, "submit", "start", "runner is shutting down", nil)
	}
	id := r.jobs.Create(jobs.Options{Owner: req.Owner, Filename: req.displayName()})
	jobCtx, cancel := context.WithCancel(r.root)
	r.cancels[id] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	logger.Info("job submitted",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("filename", req.displayName()),
		logging.Bool("skip_transcription", req.SkipTranscription),
	)

	go func() {
		defer r.wg.Done()
		defer r.forget(id)
		if err := r.acquire(jobCtx); err != nil {
			r.jobs.Update(id, jobs.ProgressFailed, "queue failed: "+err.Error())
			r.cleanupWorkspace(logger, req.WorkDir)
			return
		}
		defer r.release()
		r.Run(jobCtx, id, req)
	}()
	return id, nil
}

// Cancel stops a running or queued job. It reports whether the job was
// still active.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active reports whether id still has a goroutine attached.
func (r *Runner) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[id]
	return ok
}

// ActiveCount is the number of jobs still attached to a goroutine.
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Shutdown cancels every job and waits for their goroutines to exit or ctx
// to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return services.Wrap(services.ErrCancelled, "queue", "wait for slot", "job cancelled before start", ctx.Err())
	}
}

func (r *Runner) release() {
	<-r.slots
}

// call runs one collaborator invocation under the per-call timeout.
func (r *Runner) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if r.callTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		stage, _ := services.StageFromContext(ctx)
		return services.Wrap(services.ErrTimeout, stage, op,
			fmt.Sprintf("no response within %s", r.callTimeout), err)
	}
	return err
}

// report forwards progress to the job manager and logs sampled checkpoints.
func (r *Runner) report(ctx context.Context, id string, percent int, message string) {
	r.jobs.Update(id, percent, message)
	stage, _ := services.StageFromContext(ctx)
	if r.sampler.ShouldLog(id, percent, stage) {
		logging.WithContext(ctx, r.logger).Info("job progress",
			logging.Int("progress", percent),
			logging.String("message", message),
			logging.String(logging.FieldEventType, "job_progress"),
		)
	}
}

func (r *Runner) cleanupWorkspace(logger *slog.Logger, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
			logging.String("workspace", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "uploads remain on disk"),
		)
	}
}
