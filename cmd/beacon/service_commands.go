package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"beacon/internal/api"
	"beacon/internal/client"
	"beacon/internal/discovery"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var (
		host      string
		port      int
		id        string
		pid       int
		metaFlags []string
		jsonOut   bool
		keepalive bool
	)

	cmd := &cobra.Command{
		Use:   "register <service>",
		Short: "Register a service instance with the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMetaFlags(metaFlags)
			if err != nil {
				return err
			}

			return ctx.withClient(cmd, func(c *client.Client) error {
				inst, err := c.Register(cmd.Context(), api.RegisterRequest{
					Name: args[0],
					Host: host,
					Port: port,
					PID:  pid,
					ID:   id,
					Meta: meta,
				})
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				if jsonOut {
					if err := writeJSON(cmd, inst); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(stdout, "Registered %s as %s at %s:%d\n", inst.Name, inst.ID, inst.Host, inst.Port)
				}

				if !keepalive {
					return nil
				}

				cfg := ctx.configValue()
				fmt.Fprintf(stdout, "Sending heartbeats every %s, Ctrl-C to stop\n", cfg.HeartbeatInterval())
				signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				err = c.HeartbeatLoop(signalCtx, inst.Name, inst.ID, cfg.HeartbeatInterval())
				switch {
				case errors.Is(err, discovery.ErrNotFound):
					return fmt.Errorf("instance %s/%s was evicted; register again", inst.Name, inst.ID)
				case errors.Is(err, discovery.ErrTransport):
					return fmt.Errorf("lost contact with the daemon; run the command again to re-register: %w", err)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port the instance listens on (required)")
	cmd.Flags().StringVar(&host, "host", "", "Host the instance listens on (default 127.0.0.1)")
	cmd.Flags().StringVar(&id, "id", "", "Explicit instance id (default generated)")
	cmd.Flags().IntVar(&pid, "pid", 0, "Owning process id")
	cmd.Flags().StringArrayVar(&metaFlags, "meta", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the stored instance as JSON")
	cmd.Flags().BoolVar(&keepalive, "keepalive", false, "Stay in the foreground and send heartbeats until interrupted")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newHeartbeatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <service> <instance-id>",
		Short: "Refresh an instance's liveness window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c *client.Client) error {
				inst, err := c.Heartbeat(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if inst == nil {
					fmt.Fprintf(stdout, "Instance %s/%s is not registered; register again\n", args[0], args[1])
					return nil
				}
				fmt.Fprintf(stdout, "Heartbeat recorded for %s/%s\n", inst.Name, inst.ID)
				return nil
			})
		},
	}
}

func newUnregisterCommand(ctx *commandContext) *cobra.Command {
	var (
		id   string
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "unregister <service>",
		Short: "Remove service instances from the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" && host == "" && port == 0 {
				return fmt.Errorf("one of --id, --host, or --port is required")
			}
			return ctx.withClient(cmd, func(c *client.Client) error {
				removed, err := c.Unregister(cmd.Context(), api.UnregisterRequest{
					Name: args[0],
					ID:   id,
					Host: host,
					Port: port,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if removed {
					fmt.Fprintf(stdout, "Unregistered from %s\n", args[0])
				} else {
					fmt.Fprintf(stdout, "Nothing matched under %s\n", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Remove the instance with this id")
	cmd.Flags().StringVar(&host, "host", "", "Remove instances bound to this host")
	cmd.Flags().IntVar(&port, "port", 0, "Remove instances bound to this port")
	return cmd
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resolve <service>",
		Short: "Print the address of the most recently seen instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c *client.Client) error {
				inst, err := c.Resolve(cmd.Context(), args[0])
				if errors.Is(err, discovery.ErrNotFound) {
					return fmt.Errorf("service %s has no live instances", args[0])
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, inst)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\n", inst.Host, inst.Port)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full instance as JSON")
	return cmd
}

func parseMetaFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta value %q, expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}
