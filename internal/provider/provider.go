package provider

import (
	"context"

	"storyreel/internal/project"
)

// NarrationRequest carries the script and voice settings for narration
// synthesis.
type NarrationRequest struct {
	Script  string `json:"script"`
	VoiceID string `json:"voice_id,omitempty"`
}

// NarrationResult describes a synthesized narration hosted by the provider.
type NarrationResult struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	ByteSize        int64   `json:"byte_size"`
}

// ScenePlan is one scene of a script breakdown. Start and end are optional
// timestamp guesses; the timeline reconciler treats them as claims, never as
// truth.
type ScenePlan struct {
	Number       int      `json:"number"`
	Text         string   `json:"text"`
	StartSeconds *float64 `json:"start_seconds,omitempty"`
	EndSeconds   *float64 `json:"end_seconds,omitempty"`
}

// ImageRequest asks for one scene illustration. CharacterImageURLs carry
// reference portraits when the scene must stay consistent with established
// characters.
type ImageRequest struct {
	SceneNumber        int      `json:"scene_number"`
	Prompt             string   `json:"prompt"`
	StyleID            string   `json:"style_id,omitempty"`
	CharacterImageURLs []string `json:"character_image_urls,omitempty"`
}

// VideoRequest asks for one scene clip animated from its illustration.
type VideoRequest struct {
	SceneNumber     int     `json:"scene_number"`
	Prompt          string  `json:"prompt"`
	ImageURL        string  `json:"image_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PromptRequest asks for a video generation prompt composed from scene text.
type PromptRequest struct {
	Title     string `json:"title"`
	SceneText string `json:"scene_text"`
	StyleID   string `json:"style_id,omitempty"`
}

// ThumbnailRequest asks for a cover image for the finished video.
type ThumbnailRequest struct {
	Title   string `json:"title"`
	StyleID string `json:"style_id,omitempty"`
}

// Generator is the remote generation capability Storyreel builds on. Image
// and video calls take one scene at a time; fan-out, batching, and per-scene
// failure isolation belong to the job scheduler.
type Generator interface {
	SynthesizeNarration(ctx context.Context, req NarrationRequest) (NarrationResult, error)
	BreakdownScenes(ctx context.Context, script string) ([]ScenePlan, error)
	ExtractCharacters(ctx context.Context, script string) ([]project.Character, error)
	GenerateSceneImage(ctx context.Context, req ImageRequest) (string, error)
	GenerateSceneVideo(ctx context.Context, req VideoRequest) (string, error)
	ComposeVideoPrompt(ctx context.Context, req PromptRequest) (string, error)
	GenerateThumbnail(ctx context.Context, req ThumbnailRequest) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}
