package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/ipc"
)

var scriptExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".story":    {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var projectType string
	var voiceID string
	var styleID string

	cmd := &cobra.Command{
		Use:   "add <script>",
		Short: "Import a script file and start its workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("script does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect script: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			if _, ok := scriptExtensions[ext]; !ok {
				return fmt.Errorf("unsupported script extension %q", ext)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ProjectAdd(ipc.ProjectAddRequest{
					ScriptPath: absPath,
					Title:      strings.TrimSpace(title),
					Type:       strings.TrimSpace(projectType),
					VoiceID:    strings.TrimSpace(voiceID),
					StyleID:    strings.TrimSpace(styleID),
				})
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}

				out := cmd.OutOrStdout()
				if resp.Reused {
					fmt.Fprintf(out, "Script already imported as project %s (%s)\n", resp.Project.ID, resp.Project.Title)
					return nil
				}
				fmt.Fprintf(out, "Imported %q as project %s\n", resp.Project.Title, resp.Project.ID)
				if resp.WorkflowID != "" {
					fmt.Fprintf(out, "Workflow %s started\n", resp.WorkflowID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Project title (defaults to the script heading or filename)")
	cmd.Flags().StringVar(&projectType, "type", "", "Project type: standard, music-video, or animation")
	cmd.Flags().StringVar(&voiceID, "voice", "", "Narration voice override")
	cmd.Flags().StringVar(&styleID, "style", "", "Image style override")
	return cmd
}
