package imagery

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// CharacterSource is the slice of the generation provider character
// extraction uses.
type CharacterSource interface {
	ExtractCharacters(ctx context.Context, script string) ([]project.Character, error)
	GenerateSceneImage(ctx context.Context, req provider.ImageRequest) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// CharacterExtractor runs the extract_characters step: pull the recurring
// characters out of the script and generate a reference portrait for each.
// A failed portrait leaves the character without one; the roster itself
// failing fails the step.
type CharacterExtractor struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	source   CharacterSource
	uploader *assets.Uploader
}

// NewCharacterExtractor wires the extract_characters step handler.
func NewCharacterExtractor(cfg *config.Config, st *store.Store, logger *slog.Logger, source CharacterSource, uploader *assets.Uploader) *CharacterExtractor {
	return &CharacterExtractor{
		store:    st,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "imagery"),
		source:   source,
		uploader: uploader,
	}
}

// Execute extracts the character roster and stores it on the project.
func (e *CharacterExtractor) Execute(ctx context.Context, run *workflow.Run) error {
	logger := logging.WithContext(ctx, e.logger)

	proj, err := e.store.GetProject(ctx, run.Workflow.ProjectID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "load project", "Failed to load project", err)
	}
	if proj == nil {
		return services.Wrap(services.ErrNotFound, "imagery", "load project", fmt.Sprintf("project %s not found", run.Workflow.ProjectID), nil)
	}
	script := strings.TrimSpace(proj.Script)
	if script == "" {
		return services.Wrap(services.ErrValidation, "imagery", "validate inputs", "Project has no script to extract characters from", nil)
	}
	run.ReportProgress(ctx, 10)

	roster, err := e.source.ExtractCharacters(ctx, script)
	if err != nil {
		return services.Wrap(services.ErrProvider, "imagery", "extract characters", "Character extraction failed", err)
	}
	if len(roster) == 0 {
		logger.Info("no recurring characters found")
		return run.Step.SetResult(map[string]any{"character_count": 0})
	}
	run.ReportProgress(ctx, 30)

	// Portraits from an earlier run survive re-execution.
	existing := make(map[string]string, len(proj.Characters))
	for _, ch := range proj.Characters {
		if ch.ImageURL != "" {
			existing[ch.Name] = ch.ImageURL
		}
	}

	portraits := 0
	failures := 0
	for i := range roster {
		run.ReportProgress(ctx, 30+60*i/len(roster))
		if url, ok := existing[roster[i].Name]; ok {
			roster[i].ImageURL = url
			continue
		}
		url, err := e.portrait(ctx, proj, roster[i])
		if err != nil {
			failures++
			logger.Warn("character portrait failed",
				logging.String("character", roster[i].Name),
				logging.Error(err),
			)
			continue
		}
		roster[i].ImageURL = url
		portraits++
	}

	proj.Characters = roster
	if err := e.store.UpdateProject(ctx, proj); err != nil {
		return services.Wrap(services.ErrPersistence, "imagery", "save project", "Failed to record the character roster", err)
	}

	logger.Info("characters extracted",
		logging.Int("character_count", len(roster)),
		logging.Int("portraits", portraits),
		logging.Int("portrait_failures", failures),
	)
	return run.Step.SetResult(map[string]any{
		"character_count":   len(roster),
		"portraits":         portraits,
		"portrait_failures": failures,
	})
}

func (e *CharacterExtractor) portrait(ctx context.Context, proj *project.Project, ch project.Character) (string, error) {
	prompt := ch.Name
	if strings.TrimSpace(ch.Description) != "" {
		prompt = ch.Name + ", " + ch.Description
	}
	remote, err := e.source.GenerateSceneImage(ctx, provider.ImageRequest{
		Prompt:  prompt,
		StyleID: styleFor(proj, e.cfg),
	})
	if err != nil {
		return "", err
	}
	data, err := e.source.FetchAsset(ctx, remote)
	if err != nil {
		return "", err
	}
	uploaded, err := e.uploader.Upload(ctx, assets.UploadRequest{
		Key:  assets.CharacterImageKey(proj.ID, ch.Name),
		Data: data,
	})
	if err != nil {
		return "", err
	}
	return uploaded.URL, nil
}

// HealthCheck verifies the extractor's dependencies.
func (e *CharacterExtractor) HealthCheck(ctx context.Context) workflow.Health {
	const name = "character-extraction"
	if e.cfg == nil {
		return workflow.Unhealthy(name, "configuration unavailable")
	}
	if e.source == nil {
		return workflow.Unhealthy(name, "generation provider unavailable")
	}
	if e.uploader == nil {
		return workflow.Unhealthy(name, "object storage unavailable")
	}
	return workflow.Healthy(name)
}

// styleFor resolves the style parameter, preferring the project's own.
func styleFor(proj *project.Project, cfg *config.Config) string {
	if strings.TrimSpace(proj.StyleID) != "" {
		return proj.StyleID
	}
	if cfg != nil {
		return cfg.Provider.StyleID
	}
	return ""
}
