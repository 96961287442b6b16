package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show project store diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StoreHealth()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Health)
				}

				health := resp.Health
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Store Health", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, health.DBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Exists", boolKind(health.DatabaseExists), yesNo(health.DatabaseExists), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", boolKind(health.DatabaseReadable), yesNo(health.DatabaseReadable), colorize))
				if len(health.TablesMissing) > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Tables", statusError,
						fmt.Sprintf("missing %s", strings.Join(health.TablesMissing, ", ")), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Tables", statusOK,
						fmt.Sprintf("%d present", len(health.TablesPresent)), colorize))
				}
				if msg := strings.TrimSpace(health.Error); msg != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, msg, colorize))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of status lines")
	return cmd
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
