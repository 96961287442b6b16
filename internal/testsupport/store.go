package testsupport

import (
	"context"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/project"
	"storyreel/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates and stores a draft standard project for tests.
func NewProject(t testing.TB, st *store.Store, title, script string) *project.Project {
	t.Helper()

	proj := &project.Project{
		Title:  title,
		Type:   project.TypeStandard,
		Script: script,
	}
	if err := st.CreateProject(context.Background(), proj); err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return proj
}

// SeedScenes replaces the project's scenes with one scene per text, numbered
// in order and spread uniformly over the given duration.
func SeedScenes(t testing.TB, st *store.Store, projectID string, totalSeconds float64, texts ...string) []project.Scene {
	t.Helper()

	scenes := make([]project.Scene, len(texts))
	per := totalSeconds / float64(len(texts))
	for i, text := range texts {
		scenes[i] = project.Scene{
			ProjectID:    projectID,
			Number:       i + 1,
			Text:         text,
			WordCount:    project.CountWords(text),
			StartSeconds: per * float64(i),
			EndSeconds:   per * float64(i+1),
		}
	}
	if err := st.ReplaceProjectScenes(context.Background(), projectID, scenes); err != nil {
		t.Fatalf("store.ReplaceProjectScenes: %v", err)
	}
	stored, err := st.ListProjectScenes(context.Background(), projectID)
	if err != nil {
		t.Fatalf("store.ListProjectScenes: %v", err)
	}
	return stored
}
