package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyreel/internal/ipc"
)

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowList(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Workflows)
				}
				if len(resp.Workflows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workflows found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Project", "Type", "Status", "Step", "Updated"},
					buildWorkflowRows(resp.Workflows),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by workflow status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
