package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/api"
	"beacon/internal/client"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered service and instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c *client.Client) error {
				services, err := c.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, services)
				}

				stdout := cmd.OutOrStdout()
				if len(services) == 0 {
					fmt.Fprintln(stdout, "No services registered")
					return nil
				}
				fmt.Fprintln(stdout, renderInstanceTable(buildListRows(services, time.Now())))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the snapshot as JSON")
	return cmd
}

func buildListRows(services map[string][]api.Instance, now time.Time) [][]string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]string
	for _, name := range names {
		instances := services[name]
		sort.Slice(instances, func(i, j int) bool {
			return instances[i].LastSeen.After(instances[j].LastSeen)
		})
		for _, inst := range instances {
			pid := ""
			if inst.PID > 0 {
				pid = strconv.Itoa(inst.PID)
			}
			rows = append(rows, []string{
				name,
				inst.ID,
				fmt.Sprintf("%s:%d", inst.Host, inst.Port),
				pid,
				formatAge(now.Sub(inst.LastSeen)),
			})
		}
	}
	return rows
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Second:
		return fmt.Sprintf("%dms ago", age.Milliseconds())
	case age < time.Minute:
		return fmt.Sprintf("%.1fs ago", age.Seconds())
	default:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
}
