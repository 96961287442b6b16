package imagery

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
)

// ImageSource is the slice of the generation provider the item processor
// uses.
type ImageSource interface {
	GenerateSceneImage(ctx context.Context, req provider.ImageRequest) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// maxPriorSceneRefs caps how many already-illustrated earlier scenes ride
// along as reference images on a character-aware request.
const maxPriorSceneRefs = 3

// ImageProcessor executes one illustration item. It serves both image job
// kinds; the character-aware kind adds roster portraits and recent prior
// scene images as references. Registered with the scheduler for both kinds.
type ImageProcessor struct {
	store    *store.Store
	logger   *slog.Logger
	source   ImageSource
	uploader *assets.Uploader
}

// NewImageProcessor wires the illustration item runner.
func NewImageProcessor(st *store.Store, logger *slog.Logger, source ImageSource, uploader *assets.Uploader) *ImageProcessor {
	return &ImageProcessor{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "imagery"),
		source:   source,
		uploader: uploader,
	}
}

var _ jobs.Runner = (*ImageProcessor)(nil)

// RunItem illustrates one scene and records the stored image on it.
func (p *ImageProcessor) RunItem(ctx context.Context, job *jobs.Job, item jobs.Item) (json.RawMessage, error) {
	var (
		styleID        string
		force          bool
		roster         []project.Character
		characterAware bool
	)
	switch payload := job.Payload.(type) {
	case jobs.ImagePayload:
		styleID, force = payload.StyleID, payload.Force
	case jobs.CharacterImagePayload:
		styleID, force = payload.StyleID, payload.Force
		roster = payload.Characters
		characterAware = true
	default:
		return nil, services.Wrap(services.ErrValidation, "imagery", "decode payload",
			fmt.Sprintf("unexpected payload for job kind %s", job.Kind), nil)
	}

	scene, err := p.store.GetScene(ctx, item.SceneID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "imagery", "load scene", "Failed to load scene", err)
	}
	if scene == nil {
		return nil, services.Wrap(services.ErrNotFound, "imagery", "load scene", fmt.Sprintf("scene %s not found", item.SceneID), nil)
	}
	if scene.ImageURL != "" && !force {
		return encodeItemResult(map[string]any{"image_url": scene.ImageURL, "reused": true})
	}

	var refs []string
	if characterAware {
		refs, err = p.referenceImages(ctx, job.ProjectID, scene.Number, roster)
		if err != nil {
			return nil, err
		}
	}

	remote, err := p.source.GenerateSceneImage(ctx, provider.ImageRequest{
		SceneNumber:        scene.Number,
		Prompt:             scene.Text,
		StyleID:            styleID,
		CharacterImageURLs: refs,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "imagery", "generate image",
			fmt.Sprintf("Image generation failed for scene %d", scene.Number), err)
	}
	data, err := p.source.FetchAsset(ctx, remote)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "imagery", "fetch image",
			fmt.Sprintf("Failed to download the generated image for scene %d", scene.Number), err)
	}

	uploaded, err := p.uploader.Upload(ctx, assets.UploadRequest{
		LockKey:          scene.ID,
		Key:              assets.SceneImageKey(job.ProjectID, scene.Number),
		Data:             data,
		ExistingURL:      scene.ImageURL,
		ExistingChecksum: scene.ImageChecksum,
		Force:            force,
	})
	if err != nil {
		return nil, err
	}
	if err := p.store.SetSceneImage(ctx, scene.ID, uploaded.URL, uploaded.Checksum); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "imagery", "save scene", "Failed to record the scene image", err)
	}

	p.logger.Debug("scene illustrated",
		logging.Int(logging.FieldSceneNumber, scene.Number),
		logging.Int("reference_count", len(refs)),
		logging.Bool("reused", uploaded.Reused),
	)
	return encodeItemResult(map[string]any{
		"image_url": uploaded.URL,
		"byte_size": uploaded.ByteSize,
		"reused":    uploaded.Reused,
	})
}

// referenceImages assembles the roster portraits plus the most recent
// already-illustrated earlier scenes. Sequential kind execution guarantees
// earlier scenes settle before later ones ask for them.
func (p *ImageProcessor) referenceImages(ctx context.Context, projectID string, sceneNumber int, roster []project.Character) ([]string, error) {
	refs := make([]string, 0, len(roster)+maxPriorSceneRefs)
	for _, ch := range roster {
		if ch.ImageURL != "" {
			refs = append(refs, ch.ImageURL)
		}
	}
	scenes, err := p.store.ListProjectScenes(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "imagery", "load scenes", "Failed to load prior scenes for reference", err)
	}
	prior := make([]string, 0, maxPriorSceneRefs)
	for _, scene := range scenes {
		if scene.Number >= sceneNumber || scene.ImageURL == "" {
			continue
		}
		prior = append(prior, scene.ImageURL)
		if len(prior) > maxPriorSceneRefs {
			prior = prior[1:]
		}
	}
	return append(refs, prior...), nil
}

func encodeItemResult(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode item result: %w", err)
	}
	return data, nil
}
