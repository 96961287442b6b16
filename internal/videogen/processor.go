package videogen

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
)

// VideoSource is the slice of the generation provider the item processor
// uses.
type VideoSource interface {
	GenerateSceneVideo(ctx context.Context, req provider.VideoRequest) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// VideoProcessor executes one animation item: animate the scene's
// illustration for the scene's timeline slot and record the stored clip.
type VideoProcessor struct {
	store    *store.Store
	logger   *slog.Logger
	source   VideoSource
	uploader *assets.Uploader
}

// NewVideoProcessor wires the animation item runner.
func NewVideoProcessor(st *store.Store, logger *slog.Logger, source VideoSource, uploader *assets.Uploader) *VideoProcessor {
	return &VideoProcessor{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "videogen"),
		source:   source,
		uploader: uploader,
	}
}

var _ jobs.Runner = (*VideoProcessor)(nil)

// RunItem animates one scene and records the stored clip on it.
func (p *VideoProcessor) RunItem(ctx context.Context, job *jobs.Job, item jobs.Item) (json.RawMessage, error) {
	payload, ok := job.Payload.(jobs.VideoPayload)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "videogen", "decode payload",
			fmt.Sprintf("unexpected payload for job kind %s", job.Kind), nil)
	}

	scene, err := p.store.GetScene(ctx, item.SceneID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "videogen", "load scene", "Failed to load scene", err)
	}
	if scene == nil {
		return nil, services.Wrap(services.ErrNotFound, "videogen", "load scene", fmt.Sprintf("scene %s not found", item.SceneID), nil)
	}
	if scene.VideoURL != "" && !payload.Force {
		return json.Marshal(map[string]any{"video_url": scene.VideoURL, "reused": true})
	}
	if scene.ImageURL == "" {
		return nil, services.Wrap(services.ErrValidation, "videogen", "validate scene",
			fmt.Sprintf("Scene %d has no illustration to animate", scene.Number), nil)
	}

	prompt := scene.VideoPrompt
	if prompt == "" {
		prompt = scene.Text
	}
	remote, err := p.source.GenerateSceneVideo(ctx, provider.VideoRequest{
		SceneNumber:     scene.Number,
		Prompt:          prompt,
		ImageURL:        scene.ImageURL,
		DurationSeconds: scene.EndSeconds - scene.StartSeconds,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "videogen", "generate video",
			fmt.Sprintf("Video generation failed for scene %d", scene.Number), err)
	}
	data, err := p.source.FetchAsset(ctx, remote)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "videogen", "fetch video",
			fmt.Sprintf("Failed to download the generated clip for scene %d", scene.Number), err)
	}

	uploaded, err := p.uploader.Upload(ctx, assets.UploadRequest{
		LockKey:          scene.ID,
		Key:              assets.SceneVideoKey(job.ProjectID, scene.Number),
		Data:             data,
		ExistingURL:      scene.VideoURL,
		ExistingChecksum: scene.VideoChecksum,
		Force:            payload.Force,
	})
	if err != nil {
		return nil, err
	}
	if err := p.store.SetSceneVideo(ctx, scene.ID, uploaded.URL, uploaded.Checksum); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "videogen", "save scene", "Failed to record the scene video", err)
	}

	p.logger.Debug("scene animated",
		logging.Int(logging.FieldSceneNumber, scene.Number),
		logging.Float64("duration_seconds", scene.EndSeconds-scene.StartSeconds),
		logging.Bool("reused", uploaded.Reused),
	)
	return json.Marshal(map[string]any{
		"video_url": uploaded.URL,
		"byte_size": uploaded.ByteSize,
		"reused":    uploaded.Reused,
	})
}
