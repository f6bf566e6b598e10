package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"lecturenotes/internal/config"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/workflow"
)

// Daemon owns the HTTP server, the retention sweeper and the process lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	jobs    *jobs.Manager
	runner  *workflow.Runner
	handler http.Handler

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	Address      string `json:"address"`
	LockFilePath string `json:"lock_file_path"`
	Jobs         int    `json:"jobs"`
	ActiveJobs   int    `json:"active_jobs"`
}

// New constructs a daemon serving handler.
func New(cfg *config.Config, manager *jobs.Manager, runner *workflow.Runner, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil || runner == nil || handler == nil {
		return nil, errors.New("daemon requires config, job manager, runner and handler")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		jobs:     manager,
		runner:   runner,
		handler:  handler,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, binds the API and starts the sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lecturenotes daemon instance is already running")
	}

	server := newAPIServer(d.cfg.API.Bind, d.handler, d.logger)
	if err := server.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.server = server

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if interval := d.sweepInterval(); interval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sweepLoop(runCtx, interval)
		}()
	}

	d.running.Store(true)
	d.logger.Info("lecturenotes daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", server.addr()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop shuts the HTTP server down, cancels running jobs and releases the
// lock. ctx bounds how long in-flight requests and jobs may take to finish.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop(ctx)
	d.server = nil
	if err := d.runner.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "jobs did not stop in time", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job workspaces may be left behind"),
		)
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lecturenotes daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Addr returns the bound API address, or "" when not running.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.Addr(),
		LockFilePath: d.lockPath,
		Jobs:         len(d.jobs.List()),
		ActiveJobs:   d.runner.ActiveCount(),
	}
}

func (d *Daemon) sweepInterval() time.Duration {
	if d.cfg.JobRetention() <= 0 {
		return 0
	}
	interval := time.Duration(d.cfg.Jobs.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return interval
}

// sweepLoop evicts finished jobs older than jobs.retention_minutes.
func (d *Daemon) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.jobs.Sweep(ctx, d.cfg.JobRetention())
		}
	}
}
