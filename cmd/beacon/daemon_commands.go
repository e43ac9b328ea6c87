package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/client"
	"beacon/internal/daemonctl"
)

const stopGrace = 5 * time.Second

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the discovery daemon if it is not already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			_, result, err := ctx.ensureDaemon(cmd)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d) at %s\n", result.PID, result.Address)
			case daemonctl.StateFound:
				fmt.Fprintf(stdout, "Daemon already running (pid %d) at %s\n", result.PID, result.Address)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the discovery daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonctl.Stop(ctx.configValue(), stopGrace)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", pid)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the discovery daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonctl.Stop(ctx.configValue(), stopGrace)
			switch {
			case errors.Is(err, daemonctl.ErrNotRunning):
				fmt.Fprintln(stdout, "Daemon was not running")
			case err != nil:
				return err
			default:
				fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", pid)
			}

			_, result, err := ctx.ensureDaemon(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Daemon running (pid %d) at %s\n", result.PID, result.Address)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

// runStatus reports on the daemon without launching one: an absent daemon is
// a legitimate status, not a bootstrap trigger.
func runStatus(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}

	rec, ok := daemonctl.Discover(cmd.Context(), cfg)
	if !ok {
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "not running", colorize))
		fmt.Fprintln(stdout, renderStatusLine("Record", statusInfo, cfg.RecordPath(), colorize))
		return nil
	}

	fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("pid %d at %s", rec.PID, rec.Address()), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Record", statusInfo, cfg.RecordPath(), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Refreshed", statusInfo, rec.StartedAt.Local().Format(time.RFC3339), colorize))
	fmt.Fprintln(stdout, renderStatusLine("TTL", statusInfo, cfg.TTL().String(), colorize))

	services, err := client.New(rec.Address()).List(cmd.Context())
	if err != nil {
		fmt.Fprintln(stdout, renderStatusLine("Directory", statusWarn, fmt.Sprintf("unavailable: %v", err), colorize))
		return nil
	}

	instances := 0
	for _, list := range services {
		instances += len(list)
	}
	fmt.Fprintln(stdout, renderStatusLine("Directory", statusOK,
		fmt.Sprintf("%d services, %d instances", len(services), instances), colorize))

	if len(services) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Services", colorize) {
			fmt.Fprintln(stdout, line)
		}
		fmt.Fprintln(stdout, renderInstanceTable(buildListRows(services, time.Now())))
	}
	return nil
}
