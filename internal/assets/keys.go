package assets

import (
	"fmt"
	"strings"
)

// Object key layout. Everything a project owns lives under projects/<id>/ so
// retention and manual cleanup can work on a single prefix.

// NarrationKey is the storage key for a project's narration audio.
func NarrationKey(projectID string) string {
	return fmt.Sprintf("projects/%s/narration.mp3", projectID)
}

// SceneImageKey is the storage key for one scene's illustration.
func SceneImageKey(projectID string, sceneNumber int) string {
	return fmt.Sprintf("projects/%s/scenes/%d/image.png", projectID, sceneNumber)
}

// SceneVideoKey is the storage key for one scene's video clip.
func SceneVideoKey(projectID string, sceneNumber int) string {
	return fmt.Sprintf("projects/%s/scenes/%d/video.mp4", projectID, sceneNumber)
}

// ThumbnailKey is the storage key for the project cover image.
func ThumbnailKey(projectID string) string {
	return fmt.Sprintf("projects/%s/thumbnail.png", projectID)
}

// CharacterImageKey is the storage key for a character reference portrait.
func CharacterImageKey(projectID, characterName string) string {
	return fmt.Sprintf("projects/%s/characters/%s.png", projectID, slugify(characterName))
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
