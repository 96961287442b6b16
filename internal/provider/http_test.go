package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storyreel/internal/provider"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := provider.New("", "https://example.com"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := provider.New("key", "  "); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestSynthesizeNarrationSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/narration" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("expected bearer auth, got %q", got)
		}
		var req provider.NarrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.VoiceID != "calm-1" {
			t.Fatalf("voice id = %q, want calm-1", req.VoiceID)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"audio_url":"https://cdn.example/a.mp3","duration_seconds":42.5,"byte_size":680000}`))
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := client.SynthesizeNarration(context.Background(), provider.NarrationRequest{
		Script:  "Once upon a time.",
		VoiceID: "calm-1",
	})
	if err != nil {
		t.Fatalf("SynthesizeNarration returned error: %v", err)
	}
	if result.AudioURL != "https://cdn.example/a.mp3" || result.DurationSeconds != 42.5 || result.ByteSize != 680000 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestSynthesizeNarrationEmptyScript(t *testing.T) {
	client, err := provider.New("key", "https://example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SynthesizeNarration(context.Background(), provider.NarrationRequest{Script: "  "}); err == nil {
		t.Fatal("expected error for empty script")
	}
}

func TestBreakdownScenesDecodesPlans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scenes":[
			{"number":1,"text":"Dawn over the valley.","start_seconds":0,"end_seconds":6.5},
			{"number":2,"text":"The river wakes."}
		]}`))
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scenes, err := client.BreakdownScenes(context.Background(), "A nature story.")
	if err != nil {
		t.Fatalf("BreakdownScenes returned error: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}
	if scenes[0].StartSeconds == nil || *scenes[0].EndSeconds != 6.5 {
		t.Fatalf("scene 1 timestamps not decoded: %#v", scenes[0])
	}
	if scenes[1].StartSeconds != nil || scenes[1].EndSeconds != nil {
		t.Fatalf("scene 2 should have no timestamp guesses: %#v", scenes[1])
	}
}

func TestGenerateSceneImageSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req provider.ImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.CharacterImageURLs) != 1 {
			t.Fatalf("expected one character reference, got %d", len(req.CharacterImageURLs))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"image_url":"https://cdn.example/s1.png"}`))
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	url, err := client.GenerateSceneImage(context.Background(), provider.ImageRequest{
		SceneNumber:        1,
		Prompt:             "A quiet village at dawn",
		CharacterImageURLs: []string{"https://cdn.example/hero.png"},
	})
	if err != nil {
		t.Fatalf("GenerateSceneImage returned error: %v", err)
	}
	if url != "https://cdn.example/s1.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestPostErrorsIncludeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = client.GenerateThumbnail(context.Background(), provider.ThumbnailRequest{Title: "My Story"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error %q should carry the status code", err)
	}
}

func TestFetchAssetReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("binary-image-data"))
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", "https://api.example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	data, err := client.FetchAsset(context.Background(), server.URL+"/assets/s1.png")
	if err != nil {
		t.Fatalf("FetchAsset returned error: %v", err)
	}
	if string(data) != "binary-image-data" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestFetchAssetNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := provider.New("key", "https://api.example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.FetchAsset(context.Background(), server.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404 asset")
	}
}
