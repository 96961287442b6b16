package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show a workflow with per-step detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowDescribe(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Workflow)
				}

				wf := resp.Workflow
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				title := strings.TrimSpace(wf.ProjectTitle)
				if title == "" {
					title = wf.ProjectID
				}
				for _, line := range renderSectionHeader(fmt.Sprintf("Workflow %s", wf.ID), colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Project", statusInfo, title, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Type", statusInfo, wf.ProjectType, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Status", workflowStatusKind(wf.Status), formatStatusLabel(wf.Status), colorize))
				if wf.CompletedAt != "" {
					fmt.Fprintln(stdout, renderStatusLine("Completed", statusOK, formatDisplayTime(wf.CompletedAt), colorize))
				} else if wf.UpdatedAt != "" {
					fmt.Fprintln(stdout, renderStatusLine("Updated", statusInfo, formatDisplayTime(wf.UpdatedAt), colorize))
				}
				if lastErr := strings.TrimSpace(wf.LastError); lastErr != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, lastErr, colorize))
				}

				if len(wf.Steps) == 0 {
					return nil
				}
				fmt.Fprintln(stdout)
				table := renderTable(
					[]string{"#", "Step", "Status", "Progress", "Detail"},
					buildStepRows(wf.Steps),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func workflowStatusKind(status string) statusKind {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "running":
		return statusOK
	default:
		return statusInfo
	}
}
