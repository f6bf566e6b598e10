// Package daemonctl starts and stops a background lecturenotes daemon on
// behalf of the CLI.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lecturenotes/internal/api"
	"lecturenotes/internal/client"
)

// Prober reports daemon liveness.
type Prober interface {
	Ping(ctx context.Context) (api.PingResponse, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
	// Args replaces the default "serve" subcommand, for tests.
	Args []string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates the daemon did not answer.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// Launch starts a detached daemon process in its own session.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := opts.Args
	if len(args) == 0 {
		args = []string{"serve"}
		if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
			args = append(args, "--config", cfg)
		}
		if level := strings.TrimSpace(opts.LogLevel); level != "" {
			args = append(args, "--log-level", level)
		}
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// alive treats any HTTP answer as a live daemon; only transport errors mean
// nothing is listening.
func alive(ctx context.Context, prober Prober) (api.PingResponse, bool) {
	resp, err := prober.Ping(ctx)
	if err == nil {
		return resp, true
	}
	var apiErr *client.APIError
	return resp, errors.As(err, &apiErr)
}

// WaitReady polls until the daemon answers or timeout passes.
func WaitReady(ctx context.Context, prober Prober, timeout time.Duration) (api.PingResponse, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := prober.Ping(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.PingResponse{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, prober Prober, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if resp, ok := alive(ctx, prober); ok {
		return StartResult{State: StartStateAlreadyRunning, PID: resp.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	resp, err := WaitReady(ctx, prober, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: resp.PID}, nil
}

// WaitForShutdown polls until the daemon stops answering.
func WaitForShutdown(ctx context.Context, prober Prober, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, ok := alive(ctx, prober); !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ReadPID parses the daemon pid file. A missing file yields 0 and no error.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is malformed", pidPath)
	}
	return pid, nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM and escalates to SIGKILL when the daemon
// still answers after gracePeriod. The pid comes from the ping response,
// falling back to pidPath.
func StopAndTerminate(ctx context.Context, prober Prober, pidPath, lockPath string, gracePeriod time.Duration) (StopResult, error) {
	resp, ok := alive(ctx, prober)
	if !ok {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid := resp.PID
	if pid == 0 {
		var err error
		if pid, err = ReadPID(pidPath); err != nil {
			return StopResult{}, err
		}
	}
	result := StopResult{PID: pid}
	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return result, err
	}
	if WaitForShutdown(ctx, prober, gracePeriod) == nil {
		return result, nil
	}

	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return result, nil
}
