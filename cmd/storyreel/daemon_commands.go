package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyreel/internal/daemonctl"
	"storyreel/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the storyreel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the storyreel daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon pipeline...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, workflow, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range systemStatusLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}

			if len(statusResp.Pipeline.HandlerHealth) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Pipeline Handlers", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range handlerHealthLines(statusResp.Pipeline.HandlerHealth, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Workflows", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if rows := buildCountRows(statusResp.Workflows); len(rows) > 0 {
				fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(stdout)
			} else {
				fmt.Fprintln(stdout, "No workflows yet")
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if rows := buildCountRows(statusResp.Jobs); len(rows) > 0 {
				fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(stdout)
			} else {
				fmt.Fprintln(stdout, "No jobs yet")
			}
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the storyreel daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func systemStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 5)
	if status.Running {
		lines = append(lines, renderStatusLine("Storyreel", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		if lastErr := strings.TrimSpace(status.Pipeline.LastError); lastErr != "" {
			lines = append(lines, renderStatusLine("Pipeline", statusWarn, lastErr, colorize))
		} else if status.Pipeline.Running {
			lines = append(lines, renderStatusLine("Pipeline", statusOK, "Active", colorize))
		} else {
			lines = append(lines, renderStatusLine("Pipeline", statusWarn, "Idle", colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Storyreel", statusWarn, "Not running (run `storyreel start`)", colorize))
	}
	lines = append(lines, renderStatusLine("Projects", statusInfo, fmt.Sprintf("%d imported", status.Projects), colorize))
	if path := strings.TrimSpace(status.DatabasePath); path != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, path, colorize))
	}
	return lines
}

func handlerHealthLines(health []ipc.HandlerHealth, colorize bool) []string {
	lines := make([]string, 0, len(health))
	notReady := make([]string, 0)
	for _, h := range health {
		label := strings.TrimSpace(h.Name)
		if label == "" {
			label = h.StepID
		}
		detail := strings.TrimSpace(h.Detail)
		if h.Ready {
			if detail == "" {
				detail = "Ready"
			}
			lines = append(lines, renderStatusLine(label, statusOK, detail, colorize))
			continue
		}
		if detail == "" {
			detail = "not ready"
		}
		lines = append(lines, renderStatusLine(label, statusWarn, detail, colorize))
		notReady = append(notReady, label)
	}
	if len(notReady) > 0 {
		lines = append(lines, renderStatusLine("Degraded handlers", statusWarn, strings.Join(notReady, ", "), colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
