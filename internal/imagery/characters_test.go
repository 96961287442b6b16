package imagery_test

import (
	"context"
	"errors"
	"testing"

	"storyreel/internal/assets"
	"storyreel/internal/imagery"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/testsupport"
	"storyreel/internal/workflow"
)

func charactersRun(t *testing.T, projectID string) *workflow.Run {
	t.Helper()
	steps, err := workflow.StepsFor(project.TypeStandard)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	wf := workflow.NewWorkflow(projectID, string(project.TypeStandard), steps)
	return workflow.NewRun(wf, wf.StepByID(workflow.StepExtractCharacters))
}

func extractorUnderTest(t *testing.T, st *store.Store, source *stubProvider) (*imagery.CharacterExtractor, *memStorage) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	storage := newMemStorage()
	return imagery.NewCharacterExtractor(cfg, st, logging.NewNop(), source, assets.NewUploader(storage)), storage
}

func TestCharacterExtractorStoresRosterWithPortraits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "Ava meets Bo.")

	source := &stubProvider{
		characters: []project.Character{
			{Name: "Ava", Description: "a wandering cartographer"},
			{Name: "Bo"},
		},
		imageURL: "https://provider.example/portrait",
		asset:    []byte("png-bytes"),
	}
	extractor, storage := extractorUnderTest(t, st, source)

	run := charactersRun(t, proj.ID)
	if err := extractor.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	updated, err := st.GetProject(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if len(updated.Characters) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(updated.Characters))
	}
	wantAva := "https://store.example/" + assets.CharacterImageKey(proj.ID, "Ava")
	if updated.Characters[0].ImageURL != wantAva {
		t.Fatalf("Ava portrait = %q, want %q", updated.Characters[0].ImageURL, wantAva)
	}
	if _, ok := storage.objects[assets.CharacterImageKey(proj.ID, "Bo")]; !ok {
		t.Fatalf("Bo portrait object missing from storage")
	}
	result := decodeResult(t, run.Step.Result)
	if result["character_count"] != float64(2) {
		t.Fatalf("character_count = %v, want 2", result["character_count"])
	}
	if result["portraits"] != float64(2) {
		t.Fatalf("portraits = %v, want 2", result["portraits"])
	}
	// Description folds into the portrait prompt.
	if source.imageReqs[0].Prompt != "Ava, a wandering cartographer" {
		t.Fatalf("unexpected portrait prompt %q", source.imageReqs[0].Prompt)
	}
}

func TestCharacterExtractorToleratesPortraitFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "Ava meets Bo.")

	source := &stubProvider{
		characters: []project.Character{{Name: "Ava"}, {Name: "Bo"}},
		imageErr:   errors.New("image backend down"),
	}
	extractor, _ := extractorUnderTest(t, st, source)

	run := charactersRun(t, proj.ID)
	if err := extractor.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute should tolerate portrait failures, got %v", err)
	}

	updated, err := st.GetProject(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if len(updated.Characters) != 2 {
		t.Fatalf("expected roster despite failed portraits, got %d", len(updated.Characters))
	}
	for _, ch := range updated.Characters {
		if ch.ImageURL != "" {
			t.Fatalf("character %s unexpectedly has a portrait", ch.Name)
		}
	}
	result := decodeResult(t, run.Step.Result)
	if result["portrait_failures"] != float64(2) {
		t.Fatalf("portrait_failures = %v, want 2", result["portrait_failures"])
	}
}

func TestCharacterExtractorReusesEarlierPortraits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "Ava meets Bo.")
	proj.Characters = []project.Character{{Name: "Ava", ImageURL: "https://store.example/ava.png"}}
	if err := st.UpdateProject(context.Background(), proj); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	source := &stubProvider{
		characters: []project.Character{{Name: "Ava"}},
		imageURL:   "https://provider.example/portrait",
		asset:      []byte("png-bytes"),
	}
	extractor, _ := extractorUnderTest(t, st, source)

	run := charactersRun(t, proj.ID)
	if err := extractor.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(source.imageReqs) != 0 {
		t.Fatalf("expected no regeneration for an existing portrait, got %d calls", len(source.imageReqs))
	}
	updated, err := st.GetProject(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if updated.Characters[0].ImageURL != "https://store.example/ava.png" {
		t.Fatalf("existing portrait lost: %+v", updated.Characters[0])
	}
}

func TestCharacterExtractorHandlesEmptyRoster(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "No names here.")

	source := &stubProvider{}
	extractor, _ := extractorUnderTest(t, st, source)

	run := charactersRun(t, proj.ID)
	if err := extractor.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := decodeResult(t, run.Step.Result)
	if result["character_count"] != float64(0) {
		t.Fatalf("character_count = %v, want 0", result["character_count"])
	}
}

func TestCharacterExtractorWrapsExtractionFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "Ava meets Bo.")

	source := &stubProvider{charactersErr: errors.New("model unavailable")}
	extractor, _ := extractorUnderTest(t, st, source)

	err := extractor.Execute(context.Background(), charactersRun(t, proj.ID))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
