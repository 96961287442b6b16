package project

import (
	"strings"
	"time"
)

// Type selects the workflow step list for a project.
type Type string

const (
	TypeStandard   Type = "standard"
	TypeMusicVideo Type = "music-video"
	TypeAnimation  Type = "animation"
)

// ParseType normalizes a user-supplied project type string.
func ParseType(value string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(value))) {
	case TypeStandard, "":
		return TypeStandard, true
	case TypeMusicVideo:
		return TypeMusicVideo, true
	case TypeAnimation:
		return TypeAnimation, true
	default:
		return "", false
	}
}

// Status tracks the project's overall pipeline state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Project is one script driven through the generation pipeline.
type Project struct {
	ID                   string
	Title                string
	Type                 Type
	Status               Status
	Script               string
	ScriptFingerprint    string
	VoiceID              string
	StyleID              string
	AudioURL             string
	AudioDurationSeconds float64
	AudioByteSize        int64
	AudioChecksum        string
	ThumbnailURL         string
	Characters           []Character
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Scene is one narrated beat of a project with its time interval and
// generated assets.
type Scene struct {
	ID            string
	ProjectID     string
	Number        int
	Text          string
	WordCount     int
	StartSeconds  float64
	EndSeconds    float64
	ImageURL      string
	ImageChecksum string
	VideoURL      string
	VideoChecksum string
	VideoPrompt   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Character is a recurring figure extracted from the script, used to keep
// imagery consistent across scenes.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// CountWords reports the whitespace-separated token count of text. Scene
// weighting treats an empty scene as a single word so it still receives time.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
