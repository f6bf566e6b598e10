package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"lecturenotes/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 35 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startDaemon(cmd, ctx, logLevel)
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd, ctx)
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop the daemon if running, then start it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopDaemon(cmd, ctx); err != nil {
				return err
			}
			return startDaemon(cmd, ctx, logLevel)
		},
	}
	restartCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

func startDaemon(cmd *cobra.Command, ctx *commandContext, logLevel string) error {
	exe, err := daemonExecutable()
	if err != nil {
		return err
	}
	cl, err := ctx.newClient()
	if err != nil {
		return err
	}
	configPath := ctx.configPath()
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
	}
	result, err := daemonctl.EnsureStarted(cmd.Context(), cl, exe, daemonctl.LaunchOptions{
		ConfigPath: configPath,
		LogLevel:   logLevel,
	}, startWaitTimeout)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "Daemon already running (pid %d) at %s\n", result.PID, ctx.address())
	default:
		fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", result.PID, ctx.address())
	}
	return nil
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cl, err := ctx.newClient()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	result, err := daemonctl.StopAndTerminate(cmd.Context(), cl, cfg.PIDPath(), cfg.LockPath(), stopGracePeriod)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
		return nil
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
