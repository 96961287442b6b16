package narration_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storyreel/internal/assets"
	"storyreel/internal/logging"
	"storyreel/internal/narration"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/testsupport"
	"storyreel/internal/workflow"
)

type stubNarrator struct {
	result    provider.NarrationResult
	synthErr  error
	asset     []byte
	fetchErr  error
	lastVoice string
}

func (s *stubNarrator) SynthesizeNarration(ctx context.Context, req provider.NarrationRequest) (provider.NarrationResult, error) {
	s.lastVoice = req.VoiceID
	if s.synthErr != nil {
		return provider.NarrationResult{}, s.synthErr
	}
	return s.result, nil
}

func (s *stubNarrator) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.asset, nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) UploadBuffer(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = bytes.Clone(data)
	return "https://store.example/" + key, nil
}

func (s *memStorage) DownloadToBuffer(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return bytes.Clone(data), nil
}

func audioRun(t *testing.T, projectID string) *workflow.Run {
	t.Helper()
	steps, err := workflow.StepsFor(project.TypeStandard)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	wf := workflow.NewWorkflow(projectID, string(project.TypeStandard), steps)
	return workflow.NewRun(wf, wf.StepByID(workflow.StepGenerateAudio))
}

func TestSynthesizerStoresNarration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "Once upon a time there was a storyboard.")

	narrator := &stubNarrator{
		result: provider.NarrationResult{AudioURL: "https://provider.example/a1", DurationSeconds: 42.5, ByteSize: 24},
		asset:  []byte("synthesized-narration-bytes"),
	}
	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), narrator, assets.NewUploader(storage), storage)

	run := audioRun(t, proj.ID)
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	updated, err := st.GetProject(context.Background(), proj.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if updated.AudioURL == "" || updated.AudioChecksum == "" {
		t.Fatalf("expected stored audio url and checksum, got %+v", updated)
	}
	if updated.AudioDurationSeconds != 42.5 {
		t.Fatalf("expected duration 42.5, got %v", updated.AudioDurationSeconds)
	}
	if updated.AudioByteSize != int64(len(narrator.asset)) {
		t.Fatalf("expected byte size %d, got %d", len(narrator.asset), updated.AudioByteSize)
	}
	if got := run.Step.ResultField("audio_url"); got != updated.AudioURL {
		t.Fatalf("step result audio_url = %q, want %q", got, updated.AudioURL)
	}
	if _, err := storage.DownloadToBuffer(context.Background(), assets.NarrationKey(proj.ID)); err != nil {
		t.Fatalf("expected narration object in storage: %v", err)
	}
}

func TestSynthesizerUsesConfiguredVoiceFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Provider.VoiceID = "voice-default"
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "A short tale.")

	narrator := &stubNarrator{
		result: provider.NarrationResult{AudioURL: "https://provider.example/a2", DurationSeconds: 10},
		asset:  []byte("narration-bytes"),
	}
	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), narrator, assets.NewUploader(storage), storage)

	if err := handler.Execute(context.Background(), audioRun(t, proj.ID)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if narrator.lastVoice != "voice-default" {
		t.Fatalf("expected config voice fallback, got %q", narrator.lastVoice)
	}
}

func TestSynthesizerRejectsEmptyScript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Empty", "   ")

	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), &stubNarrator{}, assets.NewUploader(storage), storage)

	err := handler.Execute(context.Background(), audioRun(t, proj.ID))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynthesizerIntegrityGateRejectsTinyAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinNarrationBytes(1024))
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "A short tale.")

	narrator := &stubNarrator{
		result: provider.NarrationResult{AudioURL: "https://provider.example/a3", DurationSeconds: 5},
		asset:  []byte("tiny"),
	}
	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), narrator, assets.NewUploader(storage), storage)

	err := handler.Execute(context.Background(), audioRun(t, proj.ID))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestSynthesizerIntegrityGateRejectsZeroDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "A short tale.")

	narrator := &stubNarrator{
		result: provider.NarrationResult{AudioURL: "https://provider.example/a4", DurationSeconds: 0},
		asset:  []byte("narration-bytes"),
	}
	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), narrator, assets.NewUploader(storage), storage)

	err := handler.Execute(context.Background(), audioRun(t, proj.ID))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestSynthesizerWrapsProviderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Demo", "A short tale.")

	narrator := &stubNarrator{synthErr: errors.New("upstream 500")}
	storage := newMemStorage()
	handler := narration.NewSynthesizer(cfg, st, logging.NewNop(), narrator, assets.NewUploader(storage), storage)

	err := handler.Execute(context.Background(), audioRun(t, proj.ID))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
