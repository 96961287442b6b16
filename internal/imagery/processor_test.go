package imagery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"storyreel/internal/assets"
	"storyreel/internal/imagery"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/provider"
	"storyreel/internal/services"
	"storyreel/internal/testsupport"
)

type stubProvider struct {
	characters    []project.Character
	charactersErr error
	imageURL      string
	imageErr      error
	imageReqs     []provider.ImageRequest
	thumbURL      string
	thumbErr      error
	asset         []byte
	fetchErr      error
}

func (s *stubProvider) ExtractCharacters(ctx context.Context, script string) ([]project.Character, error) {
	if s.charactersErr != nil {
		return nil, s.charactersErr
	}
	return s.characters, nil
}

func (s *stubProvider) GenerateSceneImage(ctx context.Context, req provider.ImageRequest) (string, error) {
	s.imageReqs = append(s.imageReqs, req)
	if s.imageErr != nil {
		return "", s.imageErr
	}
	return s.imageURL, nil
}

func (s *stubProvider) GenerateThumbnail(ctx context.Context, req provider.ThumbnailRequest) (string, error) {
	if s.thumbErr != nil {
		return "", s.thumbErr
	}
	return s.thumbURL, nil
}

func (s *stubProvider) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.asset, nil
}

type memStorage struct {
	objects map[string][]byte
	uploads int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) UploadBuffer(ctx context.Context, key string, data []byte) (string, error) {
	s.uploads++
	s.objects[key] = bytes.Clone(data)
	return "https://store.example/" + key, nil
}

func (s *memStorage) DownloadToBuffer(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return bytes.Clone(data), nil
}

func decodeResult(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("decode item result: %v", err)
	}
	return fields
}

func TestImageProcessorIllustratesScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj, scenes := illustratedProject(t, st)

	source := &stubProvider{imageURL: "https://provider.example/img1", asset: []byte("png-bytes")}
	storage := newMemStorage()
	runner := imagery.NewImageProcessor(st, logging.NewNop(), source, assets.NewUploader(storage))

	job := jobs.NewJob(proj.ID, jobs.ImagePayload{StyleID: "style-1"}, []jobs.Item{
		{SceneID: scenes[0].ID, SceneNumber: scenes[0].Number},
	})
	raw, err := runner.RunItem(context.Background(), job, job.Items[0])
	if err != nil {
		t.Fatalf("RunItem: %v", err)
	}

	result := decodeResult(t, raw)
	wantURL := "https://store.example/" + assets.SceneImageKey(proj.ID, 1)
	if result["image_url"] != wantURL {
		t.Fatalf("result image_url = %v, want %s", result["image_url"], wantURL)
	}
	updated, err := st.GetScene(context.Background(), scenes[0].ID)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if updated.ImageURL != wantURL || updated.ImageChecksum == "" {
		t.Fatalf("scene not updated: %+v", updated)
	}
	if len(source.imageReqs) != 1 {
		t.Fatalf("expected one generation call, got %d", len(source.imageReqs))
	}
	req := source.imageReqs[0]
	if req.Prompt != scenes[0].Text || req.StyleID != "style-1" || req.SceneNumber != 1 {
		t.Fatalf("unexpected image request %+v", req)
	}
}

func TestImageProcessorReusesExistingImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj, scenes := illustratedProject(t, st)
	if err := st.SetSceneImage(context.Background(), scenes[0].ID, "https://store.example/existing.png", "abc"); err != nil {
		t.Fatalf("SetSceneImage: %v", err)
	}

	source := &stubProvider{imageURL: "https://provider.example/img1", asset: []byte("png-bytes")}
	storage := newMemStorage()
	runner := imagery.NewImageProcessor(st, logging.NewNop(), source, assets.NewUploader(storage))

	job := jobs.NewJob(proj.ID, jobs.ImagePayload{}, []jobs.Item{
		{SceneID: scenes[0].ID, SceneNumber: scenes[0].Number},
	})
	raw, err := runner.RunItem(context.Background(), job, job.Items[0])
	if err != nil {
		t.Fatalf("RunItem: %v", err)
	}

	result := decodeResult(t, raw)
	if result["reused"] != true || result["image_url"] != "https://store.example/existing.png" {
		t.Fatalf("expected reuse of the stored image, got %v", result)
	}
	if len(source.imageReqs) != 0 {
		t.Fatalf("expected no generation call, got %d", len(source.imageReqs))
	}
	if storage.uploads != 0 {
		t.Fatalf("expected no upload, got %d", storage.uploads)
	}
}

func TestImageProcessorPassesCharacterReferences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj, scenes := illustratedProject(t, st)
	if err := st.SetSceneImage(context.Background(), scenes[0].ID, "https://store.example/scene1.png", "abc"); err != nil {
		t.Fatalf("SetSceneImage: %v", err)
	}

	source := &stubProvider{imageURL: "https://provider.example/img2", asset: []byte("png-bytes")}
	storage := newMemStorage()
	runner := imagery.NewImageProcessor(st, logging.NewNop(), source, assets.NewUploader(storage))

	payload := jobs.CharacterImagePayload{Characters: []project.Character{
		{Name: "Ava", ImageURL: "https://store.example/ava.png"},
		{Name: "Extra"},
	}}
	job := jobs.NewJob(proj.ID, payload, []jobs.Item{
		{SceneID: scenes[1].ID, SceneNumber: scenes[1].Number},
	})
	if _, err := runner.RunItem(context.Background(), job, job.Items[0]); err != nil {
		t.Fatalf("RunItem: %v", err)
	}

	if len(source.imageReqs) != 1 {
		t.Fatalf("expected one generation call, got %d", len(source.imageReqs))
	}
	refs := source.imageReqs[0].CharacterImageURLs
	if len(refs) != 2 {
		t.Fatalf("expected portrait plus prior scene, got %v", refs)
	}
	if refs[0] != "https://store.example/ava.png" || refs[1] != "https://store.example/scene1.png" {
		t.Fatalf("unexpected reference order %v", refs)
	}
}

func TestImageProcessorWrapsProviderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj, scenes := illustratedProject(t, st)

	source := &stubProvider{imageErr: errors.New("generation backend down")}
	storage := newMemStorage()
	runner := imagery.NewImageProcessor(st, logging.NewNop(), source, assets.NewUploader(storage))

	job := jobs.NewJob(proj.ID, jobs.ImagePayload{}, []jobs.Item{
		{SceneID: scenes[0].ID, SceneNumber: scenes[0].Number},
	})
	_, err := runner.RunItem(context.Background(), job, job.Items[0])
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestImageProcessorRejectsMissingScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	proj, _ := illustratedProject(t, st)

	source := &stubProvider{imageURL: "https://provider.example/img", asset: []byte("png")}
	storage := newMemStorage()
	runner := imagery.NewImageProcessor(st, logging.NewNop(), source, assets.NewUploader(storage))

	job := jobs.NewJob(proj.ID, jobs.ImagePayload{}, []jobs.Item{
		{SceneID: "no-such-scene", SceneNumber: 1},
	})
	_, err := runner.RunItem(context.Background(), job, job.Items[0])
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
