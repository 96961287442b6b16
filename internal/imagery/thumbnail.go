package imagery

import (
	"context"
	"fmt"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// ThumbnailSource is the slice of the generation provider the thumbnailer
// uses.
type ThumbnailSource interface {
	GenerateThumbnail(ctx context.Context, req provider.ThumbnailRequest) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// Thumbnailer runs the generate_thumbnail step. The step is soft: the
// manager degrades any failure short of an integrity breach to a skipped
// result and the workflow moves on without a cover image.
type Thumbnailer struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	source   ThumbnailSource
	uploader *assets.Uploader
}

// NewThumbnailer wires the generate_thumbnail step handler.
func NewThumbnailer(cfg *config.Config, st *store.Store, logger *slog.Logger, source ThumbnailSource, uploader *assets.Uploader) *Thumbnailer {
	return &Thumbnailer{
		store:    st,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "imagery"),
		source:   source,
		uploader: uploader,
	}
}

// Execute generates and stores the project cover image.
func (t *Thumbnailer) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, t.logger)

	proj, err := t.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "imagery", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	if proj.ThumbnailURL != "" {
		return run.Step.SetResult(map[string]any{"thumbnail_url": proj.ThumbnailURL, "reused": true})
	}
	run.ReportProgress(ctx, 20)

	remote, err := t.source.GenerateThumbnail(ctx, provider.ThumbnailRequest{
		Title:   proj.Title,
		StyleID: styleFor(proj, t.cfg),
	})
	if err != nil {
		return services.Wrap(services.ErrProvider, "imagery", "generate thumbnail", "Thumbnail generation failed", err)
	}
	data, err := t.source.FetchAsset(ctx, remote)
	if err != nil {
		return services.Wrap(services.ErrProvider, "imagery", "fetch thumbnail", "Failed to download the generated thumbnail", err)
	}
	run.ReportProgress(ctx, 60)

	uploaded, err := t.uploader.Upload(ctx, assets.UploadRequest{
		Key:  assets.ThumbnailKey(proj.ID),
		Data: data,
	})
	if err != nil {
		return err
	}

	proj.ThumbnailURL = uploaded.URL
	if err := t.store.UpdateProject(ctx, proj); err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "save project", "Failed to record the thumbnail", err)
	}

	logger.Info("thumbnail stored", logging.String("thumbnail_url", uploaded.URL))
	return run.Step.SetResult(map[string]any{"thumbnail_url": uploaded.URL})
}

// HealthCheck verifies the thumbnailer's dependencies.
func (t *Thumbnailer) HealthCheck(ctx context.Context) workflow.Health {
	const name = "thumbnail"
	if t.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if t.source == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	if t.uploader == nil {
		return workflow.Unhealthy(name, "object storage unavailable")
	}
	return workflow.Healthy(name)
}
