package narration

import (
	"context"
	"fmt"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// AssetFetcher pulls a remote asset into memory.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// Importer runs the process_audio step for music videos. The project arrives
// with an externally produced track and a known duration; the step mirrors
// the track into object storage and runs the narration integrity gate on the
// stored copy.
type Importer struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	fetcher  AssetFetcher
	uploader *assets.Uploader
	storage  assets.ObjectStorage
}

// NewImporter wires the process_audio step handler.
func NewImporter(cfg *config.Config, st *store.Store, logger *slog.Logger, fetcher AssetFetcher, uploader *assets.Uploader, storage assets.ObjectStorage) *Importer {
	return &Importer{
		store:    st,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "narration"),
		fetcher:  fetcher,
		uploader: uploader,
		storage:  storage,
	}
}

// Execute mirrors the project's audio track into object storage.
func (i *Importer) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, i.logger)

	proj, err := i.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "narration", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "narration", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	if proj.AudioURL == "" {
		return services.Wrap(services.ErrValidation, "narration", "validate inputs",
			"Music video projects need an audio track; add the project with an audio URL", nil)
	}
	if proj.AudioDurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "narration", "validate inputs",
			"Music video projects need a known track duration; add the project with an audio duration", nil)
	}
	run.ReportProgress(ctx, 10)

	data, err := i.fetcher.FetchAsset(ctx, proj.AudioURL)
	if err != nil {
		return services.Wrap(services.ErrProvider, "narration", "fetch audio", "Failed to download the project's audio track", err)
	}
	run.ReportProgress(ctx, 50)

	key := assets.NarrationKey(proj.ID)
	uploaded, err := i.uploader.Upload(ctx, assets.UploadRequest{
		Key:              key,
		Data:             data,
		ExistingURL:      proj.AudioURL,
		ExistingChecksum: proj.AudioChecksum,
	})
	if err != nil {
		return err
	}
	run.ReportProgress(ctx, 80)

	if err := verifyStoredNarration(ctx, i.storage, i.cfg.Pipeline.MinNarrationBytes, key, proj.AudioDurationSeconds); err != nil {
		return err
	}

	proj.AudioURL = uploaded.URL
	proj.AudioChecksum = uploaded.Checksum
	proj.AudioByteSize = uploaded.ByteSize
	if err := i.store.UpdateProject(ctx, proj); err != nil {
		return services.Wrap(services.ErrPersistence, "narration", "save project", "Failed to record the imported track on the project", err)
	}

	logger.Info("audio track imported",
		logging.String("audio_url", uploaded.URL),
		logging.Float64("duration_seconds", proj.AudioDurationSeconds),
		logging.Bool("reused", uploaded.Reused),
	)
	return run.Step.SetResult(map[string]any{
		"audio_url":        uploaded.URL,
		"duration_seconds": proj.AudioDurationSeconds,
		"byte_size":        uploaded.ByteSize,
		"reused":           uploaded.Reused,
	})
}

// HealthCheck verifies the importer's dependencies.
func (i *Importer) HealthCheck(ctx context.Context) workflow.Health {
	const name = "audio-import"
	if i.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if i.fetcher == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	if i.uploader == nil || i.storage == nil {
		return workflow.Unhealthy(name, "object storage unavailable")
	}
	return workflow.Healthy(name)
}
