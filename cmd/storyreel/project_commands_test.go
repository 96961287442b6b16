package main

import (
	"context"
	"strings"
	"testing"

	"storyreel/internal/jobs"
	"storyreel/internal/testsupport"
)

// The pipeline loop stays stopped in these tests so imported workflows remain
// pending and the listings are deterministic.
func TestAddWorkflowsShowFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	script := testsupport.WriteScript(t, env.baseDir, "voyage.md",
		"# Voyage Home\n\nA lighthouse keeper rows out at dawn.\nThe tide carries her past the breakwater.\n")

	out, _, err := runCLI(t, []string{"add", script}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, `Imported "Voyage Home" as project`)
	requireContains(t, out, "Workflow ")

	workflowID := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Workflow ") {
			workflowID = strings.Fields(line)[1]
		}
	}
	if workflowID == "" {
		t.Fatalf("workflow id missing from output: %q", out)
	}

	out, _, err = runCLI(t, []string{"add", script}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	requireContains(t, out, "Script already imported as project")

	out, _, err = runCLI(t, []string{"workflows"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	requireContains(t, out, workflowID)
	requireContains(t, out, "Voyage Home")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"workflows", "--status", "completed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflows filter: %v", err)
	}
	requireContains(t, out, "No workflows found")

	out, _, err = runCLI(t, []string{"show", workflowID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Workflow "+workflowID)
	requireContains(t, out, "Voyage Home")
	requireContains(t, out, "Create project")

	if _, _, err := runCLI(t, []string{"show", "no-such-workflow"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}

func TestAddRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)

	script := testsupport.WriteScript(t, env.baseDir, "voyage.pdf", "not a script")
	_, _, err := runCLI(t, []string{"add", script}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported script extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestJobsListAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs found")

	project := testsupport.NewProject(t, env.store, "Voyage Home", "A lighthouse keeper rows out at dawn.")
	job, err := env.scheduler.Enqueue(context.Background(), project.ID, jobs.ImagePayload{}, []jobs.Item{
		{SceneID: "scene-1", SceneNumber: 1},
		{SceneID: "scene-2", SceneNumber: 2},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "0/2 (0%)")

	out, _, err = runCLI(t, []string{"jobs", "cancel", job.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs cancel: %v", err)
	}
	requireContains(t, out, "Job "+job.ID+" cancelled")

	out, _, err = runCLI(t, []string{"jobs", "cancel", job.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs cancel repeat: %v", err)
	}
	requireContains(t, out, "already finished")

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list failed: %v", err)
	}
	requireContains(t, out, job.ID)

	out, _, err = runCLI(t, []string{"jobs", "cancel-project", project.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cancel-project: %v", err)
	}
	requireContains(t, out, "Cancelled 0 jobs")
}
