// Package narration implements the audio steps of the pipeline. Synthesizer
// backs generate_audio for scripted projects; Importer backs process_audio
// for music videos, which arrive with a finished track. Both end at the same
// integrity gate: the audio object must exist in our own storage, meet the
// configured minimum size, and carry a positive duration. Gate failures
// abort the workflow.
package narration

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// Narrator is the slice of the generation provider the synthesizer uses.
type Narrator interface {
	SynthesizeNarration(ctx context.Context, req provider.NarrationRequest) (provider.NarrationResult, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// Synthesizer runs the generate_audio step: synthesize narration for the
// project script, mirror the audio into object storage, and verify the
// stored copy before recording it on the project.
type Synthesizer struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	narrator Narrator
	uploader *assets.Uploader
	storage  assets.ObjectStorage
}

// NewSynthesizer wires the generate_audio step handler. The narrator is
// normally the shared provider client; tests inject stubs.
func NewSynthesizer(cfg *config.Config, st *store.Store, logger *slog.Logger, narrator Narrator, uploader *assets.Uploader, storage assets.ObjectStorage) *Synthesizer {
	return &Synthesizer{
		store:    st,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "narration"),
		narrator: narrator,
		uploader: uploader,
		storage:  storage,
	}
}

// Execute synthesizes and stores narration for the workflow's project.
func (s *Synthesizer) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, s.logger)

	proj, err := s.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "narration", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "narration", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	script := strings.TrimSpace(proj.Script)
	if script == "" {
		return services.Wrap(services.ErrValidation, "narration", "validate inputs", "Project has no script to narrate", nil)
	}
	run.ReportProgress(ctx, 10)

	voiceID := strings.TrimSpace(proj.VoiceID)
	if voiceID == "" {
		voiceID = s.cfg.Provider.VoiceID
	}
	result, err := s.narrator.SynthesizeNarration(ctx, provider.NarrationRequest{Script: script, VoiceID: voiceID})
	if err != nil {
		return services.Wrap(services.ErrProvider, "narration", "synthesize", "Narration synthesis failed", err)
	}
	logger.Info("narration synthesized",
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Int64("byte_size", result.ByteSize),
	)
	run.ReportProgress(ctx, 40)

	data, err := s.narrator.FetchAsset(ctx, result.AudioURL)
	if err != nil {
		return services.Wrap(services.ErrProvider, "narration", "fetch audio", "Failed to download synthesized narration from the provider", err)
	}
	run.ReportProgress(ctx, 60)

	key := assets.NarrationKey(proj.ID)
	uploaded, err := s.uploader.Upload(ctx, assets.UploadRequest{
		Key:              key,
		Data:             data,
		ExistingURL:      proj.AudioURL,
		ExistingChecksum: proj.AudioChecksum,
	})
	if err != nil {
		return err
	}
	run.ReportProgress(ctx, 80)

	if err := verifyStoredNarration(ctx, s.storage, s.cfg.Pipeline.MinNarrationBytes, key, result.DurationSeconds); err != nil {
		return err
	}

	proj.AudioURL = uploaded.URL
	proj.AudioChecksum = uploaded.Checksum
	proj.AudioByteSize = uploaded.ByteSize
	proj.AudioDurationSeconds = result.DurationSeconds
	if err := s.store.UpdateProject(ctx, proj); err != nil {
		return services.Wrap(services.ErrPersistence, "narration", "save project", "Failed to record narration on the project", err)
	}

	logger.Info("narration stored",
		logging.String("audio_url", uploaded.URL),
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Bool("reused", uploaded.Reused),
	)
	return run.Step.SetResult(map[string]any{
		"audio_url":        uploaded.URL,
		"duration_seconds": result.DurationSeconds,
		"byte_size":        uploaded.ByteSize,
		"reused":           uploaded.Reused,
	})
}

// HealthCheck verifies the synthesizer's dependencies.
func (s *Synthesizer) HealthCheck(ctx context.Context) workflow.Health {
	const name = "narration"
	if s.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if s.narrator == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	if s.uploader == nil || s.storage == nil {
		return workflow.Unhealthy(name, "object storage unavailable")
	}
	return workflow.Healthy(name)
}

// verifyStoredNarration is the integrity gate shared by synthesis and
// import. It reads the object back from storage rather than trusting the
// upload result.
func verifyStoredNarration(ctx context.Context, storage assets.ObjectStorage, minBytes int64, key string, durationSeconds float64) error {
	if durationSeconds <= 0 {
		return services.Wrap(services.ErrIntegrity, "narration", "verify audio",
			fmt.Sprintf("Audio duration %.2fs is not positive", durationSeconds), nil)
	}
	stored, err := storage.DownloadToBuffer(ctx, key)
	if err != nil {
		return services.Wrap(services.ErrIntegrity, "narration", "verify audio",
			"Audio object missing from storage after upload", err)
	}
	if int64(len(stored)) < minBytes {
		return services.Wrap(services.ErrIntegrity, "narration", "verify audio",
			fmt.Sprintf("Audio object is %d bytes, below the %d byte minimum", len(stored), minBytes), nil)
	}
	return nil
}
