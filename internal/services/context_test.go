package services_test

import (
	"context"
	"testing"

	"storyreel/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "proj-7")
	ctx = services.WithWorkflowID(ctx, "wf-42")
	ctx = services.WithJobID(ctx, "job-9")
	ctx = services.WithStep(ctx, "generate_images")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "proj-7" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if id, ok := services.WorkflowIDFromContext(ctx); !ok || id != "wf-42" {
		t.Fatalf("unexpected workflow id: %v %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-9" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "generate_images" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStepBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStep(ctx, "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
