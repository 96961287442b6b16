package api

import (
	"testing"
	"time"

	"storyreel/internal/jobs"
	"storyreel/internal/workflow"
)

func TestFromWorkflowIncludesStepsOnDemand(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	wf := &workflow.Workflow{
		ID:               "wf-1",
		ProjectID:        "p-1",
		ProjectType:      "standard",
		Status:           workflow.StatusProcessing,
		CurrentStepIndex: 1,
		CreatedAt:        created,
		Steps: []workflow.Step{
			{ID: "create", DisplayName: "Create", Status: workflow.StepCompleted, Progress: 100},
			{ID: "generate_audio", DisplayName: "Generate Audio", Status: workflow.StepProcessing, Progress: 40},
		},
	}

	lean := FromWorkflow(wf, false)
	if lean.Steps != nil {
		t.Fatalf("lean view should omit steps, got %d", len(lean.Steps))
	}
	if lean.CurrentStepID != "generate_audio" {
		t.Fatalf("currentStepId = %q", lean.CurrentStepID)
	}
	if lean.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("createdAt = %q", lean.CreatedAt)
	}

	full := FromWorkflow(wf, true)
	if len(full.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(full.Steps))
	}
	if full.Steps[1].Status != "processing" || full.Steps[1].Progress != 40 {
		t.Fatalf("unexpected step DTO %+v", full.Steps[1])
	}
}

func TestFromJobComputesPercent(t *testing.T) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	job := &jobs.Job{
		ID:        "j-1",
		ProjectID: "p-1",
		Kind:      jobs.KindImageGeneration,
		Status:    jobs.StatusProcessing,
		Progress:  jobs.Progress{Completed: 3, Total: 4},
		StartedAt: &started,
		Items: []jobs.Item{
			{ID: "i-1", SceneID: "s-1", SceneNumber: 1, Done: true},
			{ID: "i-2", SceneID: "s-2", SceneNumber: 2, Done: true, Error: "boom"},
		},
	}

	dto := FromJob(job, true)
	if dto.Progress.Percent != 75 {
		t.Fatalf("percent = %d, want 75", dto.Progress.Percent)
	}
	if dto.StartedAt == "" || dto.CompletedAt != "" {
		t.Fatalf("unexpected timestamps %+v", dto)
	}
	if len(dto.Items) != 2 || dto.Items[1].Error != "boom" {
		t.Fatalf("unexpected items %+v", dto.Items)
	}
	if lean := FromJob(job, false); lean.Items != nil {
		t.Fatalf("lean view should omit items")
	}
}

func TestFromStatusSummarySortsHandlers(t *testing.T) {
	summary := workflow.StatusSummary{
		Running: true,
		StepHealth: map[string]workflow.Health{
			"generate_videos": workflow.Healthy("animation"),
			"generate_audio":  workflow.Unhealthy("narration", "provider unavailable"),
		},
	}

	status := FromStatusSummary(summary)
	if !status.Running {
		t.Fatal("expected running status")
	}
	if len(status.HandlerHealth) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(status.HandlerHealth))
	}
	if status.HandlerHealth[0].StepID != "generate_audio" || status.HandlerHealth[1].StepID != "generate_videos" {
		t.Fatalf("handlers not sorted: %+v", status.HandlerHealth)
	}
	if status.HandlerHealth[0].Ready || status.HandlerHealth[0].Detail == "" {
		t.Fatalf("unhealthy handler lost detail: %+v", status.HandlerHealth[0])
	}
}

func TestFormatTimeZero(t *testing.T) {
	if got := FormatTime(time.Time{}); got != "" {
		t.Fatalf("expected empty string for zero time, got %q", got)
	}
}
