package workflow

import (
	"fmt"

	"storyreel/internal/project"
)

// Step keys. These are stable identifiers persisted inside workflow rows and
// reported over IPC; renaming one is a schema change.
const (
	StepCreate              = "create"
	StepGenerateAudio       = "generate_audio"
	StepProcessAudio        = "process_audio"
	StepGenerateScenes      = "generate_scenes"
	StepExtractCharacters   = "extract_characters"
	StepGenerateImages      = "generate_images"
	StepGenerateThumbnail   = "generate_thumbnail"
	StepGenerateSoraPrompts = "generate_sora_prompts"
	StepGenerateVideos      = "generate_videos"
	StepComplete            = "complete"
)

var displayNames = map[string]string{
	StepCreate:              "Create project",
	StepGenerateAudio:       "Generate narration audio",
	StepProcessAudio:        "Process audio track",
	StepGenerateScenes:      "Generate scene breakdown",
	StepExtractCharacters:   "Extract characters",
	StepGenerateImages:      "Generate scene images",
	StepGenerateThumbnail:   "Generate thumbnail",
	StepGenerateSoraPrompts: "Compose video prompts",
	StepGenerateVideos:      "Generate scene videos",
	StepComplete:            "Complete project",
}

// DisplayName returns the human label for a step key, falling back to the
// key itself for unknown ids loaded from older rows.
func DisplayName(stepID string) string {
	if name, ok := displayNames[stepID]; ok {
		return name
	}
	return stepID
}

// Soft steps degrade to a skipped result on failure instead of halting the
// workflow. Integrity failures still halt.
var softSteps = map[string]struct{}{
	StepGenerateThumbnail:   {},
	StepGenerateSoraPrompts: {},
}

// IsSoft reports whether a step is allowed to fail without failing the
// workflow.
func IsSoft(stepID string) bool {
	_, ok := softSteps[stepID]
	return ok
}

var stepLists = map[project.Type][]string{
	project.TypeStandard: {
		StepCreate,
		StepGenerateAudio,
		StepGenerateScenes,
		StepExtractCharacters,
		StepGenerateImages,
		StepGenerateThumbnail,
		StepGenerateSoraPrompts,
		StepComplete,
	},
	project.TypeMusicVideo: {
		StepCreate,
		StepProcessAudio,
		StepGenerateScenes,
		StepGenerateImages,
		StepGenerateVideos,
		StepComplete,
	},
	project.TypeAnimation: {
		StepCreate,
		StepGenerateAudio,
		StepGenerateScenes,
		StepExtractCharacters,
		StepGenerateImages,
		StepGenerateVideos,
		StepComplete,
	},
}

// StepsFor returns the ordered step list for a project type.
func StepsFor(projectType project.Type) ([]Step, error) {
	ids, ok := stepLists[projectType]
	if !ok {
		return nil, fmt.Errorf("no step list for project type %q", projectType)
	}
	steps := make([]Step, len(ids))
	for i, id := range ids {
		steps[i] = Step{
			ID:          id,
			DisplayName: DisplayName(id),
			Status:      StepPending,
		}
	}
	return steps, nil
}
