package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lecturenotes/internal/api"
	"lecturenotes/internal/config"
	"lecturenotes/internal/daemon"
	"lecturenotes/internal/deps"
	"lecturenotes/internal/history"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notifications"
	"lecturenotes/internal/preflight"
	"lecturenotes/internal/rasterize"
	"lecturenotes/internal/realtime"
	"lecturenotes/internal/results"
	"lecturenotes/internal/services"
	"lecturenotes/internal/services/llm"
	"lecturenotes/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

// staleWorkspaceAge is how long a job workspace may outlive its process
// before startup removes it.
const staleWorkspaceAge = 24 * time.Hour

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the lecturenotes daemon and blocks until SIGINT/SIGTERM or
// cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lecturenotes-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lecturenotes.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lecturenotes-*.log", Exclude: []string{logPath}},
	)
	logging.PruneOlderThan(logger, staleWorkspaceAge,
		logging.RetentionTarget{Dir: cfg.Paths.WorkspaceDir, Pattern: "job-*", Dirs: true},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	app, err := build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("daemon setup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_setup_failed"),
			logging.String(logging.FieldErrorHint, setupHint(err)),
		)
		return err
	}
	defer app.close(logger)

	if err := app.daemon.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("lecturenotes daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	app.daemon.Stop(stopCtx)
	return nil
}

// components holds everything Run has to close on exit.
type components struct {
	daemon  *daemon.Daemon
	jobs    *jobs.Manager
	history history.Store
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	store, err := results.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open results store: %w", err)
	}
	manager := jobs.NewManager(store, logger)

	hist, err := history.Open(ctx, cfg)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}
	app := &components{jobs: manager, history: hist}

	client := llm.FromConfig(cfg)
	converter := rasterize.New(cfg.Rasterize, logger)
	collab := workflow.Collaborators{
		Transcriber: client,
		Rasterizer:  converter,
		Captioner:   client,
		Embedder:    client,
		Generator:   client,
		History:     hist,
		Notifier:    notifications.NewService(cfg),
	}
	if cfg.Workflow.ImportanceEnabled {
		collab.Importance = client
	}
	runner, err := workflow.NewRunner(cfg, manager, collab, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	sessions, err := realtime.NewSessions(cfg, client, logger, realtime.WithDeckIndexer(realtime.CaptionIndexer{
		Rasterizer: converter,
		Captioner:  client,
		Mapper:     mapping.New(client),
	}))
	if err != nil {
		app.close(logger)
		return nil, err
	}
	router, err := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Jobs:     manager,
		Runner:   runner,
		History:  hist,
		Embedder: client,
		Realtime: sessions,
		Health:   func(ctx context.Context) []preflight.Result { return preflight.RunAll(ctx, cfg) },
		Logger:   logger,
	})
	if err != nil {
		app.close(logger)
		return nil, err
	}
	d, err := daemon.New(cfg, manager, runner, router, logger)
	if err != nil {
		app.close(logger)
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	app.daemon = d
	return app, nil
}

func (c *components) close(logger *slog.Logger) {
	var errs []error
	if c.history != nil {
		errs = append(errs, c.history.Close())
	}
	if c.jobs != nil {
		errs = append(errs, c.jobs.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("failed to close stores", logging.Error(err))
	}
}

func setupHint(err error) string {
	switch msg := err.Error(); {
	case strings.Contains(msg, "history store"):
		return "check history.dsn and that the vector extension is installed"
	case strings.Contains(msg, "results store"):
		return "check the [results] backend settings"
	default:
		return services.Details(err).Hint
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lecturenotes.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_base_url", cfg.LLM.BaseURL),
		logging.String("results_backend", cfg.Results.Backend),
		logging.String("history_backend", cfg.History.Backend),
	}
	statuses := preflight.CheckSystemDeps(cfg)
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(statuses) {
		level := slog.LevelWarn
		if missing.Optional {
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "dependency unavailable",
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String(logging.FieldImpact, missing.Description),
		)
	}
}
