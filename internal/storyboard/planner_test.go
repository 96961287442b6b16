package storyboard_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/storyboard"
	"storyreel/internal/testsupport"
	"storyreel/internal/workflow"
)

type stubBreaker struct {
	plans []provider.ScenePlan
	err   error
}

func (s *stubBreaker) BreakdownScenes(ctx context.Context, script string) ([]provider.ScenePlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plans, nil
}

func ptr(v float64) *float64 { return &v }

func scenesRun(t *testing.T, projectID string) *workflow.Run {
	t.Helper()
	steps, err := workflow.StepsFor(project.TypeStandard)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	wf := workflow.NewWorkflow(projectID, string(project.TypeStandard), steps)
	return workflow.NewRun(wf, wf.StepByID(workflow.StepGenerateScenes))
}

func narratedProject(t *testing.T, st *store.Store, duration float64) *project.Project {
	t.Helper()
	proj := testsupport.NewProject(t, st, "Demo", "One. Two. Three.")
	proj.AudioDurationSeconds = duration
	proj.AudioURL = "https://store.example/narration.mp3"
	if err := st.UpdateProject(context.Background(), proj); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	return proj
}

func TestPlannerAllocatesByWordCountWithoutClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := narratedProject(t, st, 30)

	breaker := &stubBreaker{plans: []provider.ScenePlan{
		{Number: 1, Text: "A beginning with a handful of words"},
		{Number: 2, Text: "A middle"},
		{Number: 3, Text: "An end that runs a little longer than the middle"},
	}}
	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), breaker)

	run := scenesRun(t, proj.ID)
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	scenes, err := st.ListProjectScenes(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("ListProjectScenes: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	if scenes[0].StartSeconds != 0 {
		t.Fatalf("first scene must start at 0, got %v", scenes[0].StartSeconds)
	}
	if math.Abs(scenes[2].EndSeconds-30) > 0.005 {
		t.Fatalf("last scene must end at the audio duration, got %v", scenes[2].EndSeconds)
	}
	for i := 1; i < len(scenes); i++ {
		if math.Abs(scenes[i].StartSeconds-scenes[i-1].EndSeconds) > 0.005 {
			t.Fatalf("scene %d does not start where scene %d ends", i+1, i)
		}
	}
	if got := run.Step.ResultField("timeline_mode"); got != "weighted" {
		t.Fatalf("timeline_mode = %q, want weighted", got)
	}
}

func TestPlannerReconcilesProviderTimestamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := narratedProject(t, st, 60)

	// Overlapping, offset claims for two of three scenes.
	breaker := &stubBreaker{plans: []provider.ScenePlan{
		{Number: 1, Text: "First", StartSeconds: ptr(2.0), EndSeconds: ptr(25.0)},
		{Number: 2, Text: "Second", StartSeconds: ptr(20.0), EndSeconds: ptr(40.0)},
		{Number: 3, Text: "Third"},
	}}
	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), breaker)

	run := scenesRun(t, proj.ID)
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	scenes, err := st.ListProjectScenes(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("ListProjectScenes: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	if scenes[0].StartSeconds != 0 {
		t.Fatalf("first scene must start at 0, got %v", scenes[0].StartSeconds)
	}
	if math.Abs(scenes[2].EndSeconds-60) > 0.005 {
		t.Fatalf("last scene must end at 60, got %v", scenes[2].EndSeconds)
	}
	for i := 1; i < len(scenes); i++ {
		if math.Abs(scenes[i].StartSeconds-scenes[i-1].EndSeconds) > 0.005 {
			t.Fatalf("gap between scenes %d and %d", i, i+1)
		}
	}
	if got := run.Step.ResultField("timeline_mode"); got != "reconciled" {
		t.Fatalf("timeline_mode = %q, want reconciled", got)
	}
}

func TestPlannerDropsBlankScenesAndRenumbers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := narratedProject(t, st, 20)

	breaker := &stubBreaker{plans: []provider.ScenePlan{
		{Number: 7, Text: "Kept one"},
		{Number: 9, Text: "   "},
		{Number: 12, Text: "Kept two"},
	}}
	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), breaker)

	if err := handler.Execute(context.Background(), scenesRun(t, proj.ID)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	scenes, err := st.ListProjectScenes(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("ListProjectScenes: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected blank scene dropped, got %d scenes", len(scenes))
	}
	if scenes[0].Number != 1 || scenes[1].Number != 2 {
		t.Fatalf("expected sequential renumbering, got %d and %d", scenes[0].Number, scenes[1].Number)
	}
}

func TestPlannerReplacesPreviousBreakdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := narratedProject(t, st, 20)
	testsupport.SeedScenes(t, st, proj.ID, 20, "Old scene one", "Old scene two", "Old scene three", "Old scene four")

	breaker := &stubBreaker{plans: []provider.ScenePlan{
		{Number: 1, Text: "New scene"},
		{Number: 2, Text: "Another new scene"},
	}}
	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), breaker)

	if err := handler.Execute(context.Background(), scenesRun(t, proj.ID)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	scenes, err := st.ListProjectScenes(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("ListProjectScenes: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected wholesale replacement, got %d scenes", len(scenes))
	}
	if scenes[0].Text != "New scene" {
		t.Fatalf("unexpected first scene %q", scenes[0].Text)
	}
}

func TestPlannerRequiresAudioDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "One. Two.")

	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), &stubBreaker{})
	err := handler.Execute(context.Background(), scenesRun(t, proj.ID))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlannerWrapsBreakdownFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := narratedProject(t, st, 20)

	handler := storyboard.NewPlanner(cfg, st, logging.NewNop(), &stubBreaker{err: errors.New("model overloaded")})
	err := handler.Execute(context.Background(), scenesRun(t, proj.ID))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
