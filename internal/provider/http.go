package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"storyreel/internal/project"
)

// Client talks to the generation provider's HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps generation calls at the given number per minute.
// Non-positive values leave the client unlimited.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
		}
	}
}

// New creates a provider client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("provider api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("provider base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SynthesizeNarration renders the script into narration audio.
func (c *Client) SynthesizeNarration(ctx context.Context, req NarrationRequest) (NarrationResult, error) {
	var result NarrationResult
	if strings.TrimSpace(req.Script) == "" {
		return result, errors.New("script must not be empty")
	}
	if err := c.postJSON(ctx, "/v1/narration", req, &result); err != nil {
		return NarrationResult{}, err
	}
	return result, nil
}

// BreakdownScenes splits the script into ordered scene plans.
func (c *Client) BreakdownScenes(ctx context.Context, script string) ([]ScenePlan, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("script must not be empty")
	}
	var payload struct {
		Scenes []ScenePlan `json:"scenes"`
	}
	req := struct {
		Script string `json:"script"`
	}{Script: script}
	if err := c.postJSON(ctx, "/v1/scenes/breakdown", req, &payload); err != nil {
		return nil, err
	}
	return payload.Scenes, nil
}

// ExtractCharacters pulls the recurring characters out of the script.
func (c *Client) ExtractCharacters(ctx context.Context, script string) ([]project.Character, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("script must not be empty")
	}
	var payload struct {
		Characters []project.Character `json:"characters"`
	}
	req := struct {
		Script string `json:"script"`
	}{Script: script}
	if err := c.postJSON(ctx, "/v1/characters/extract", req, &payload); err != nil {
		return nil, err
	}
	return payload.Characters, nil
}

// GenerateSceneImage renders one scene illustration and returns the
// provider-hosted URL.
func (c *Client) GenerateSceneImage(ctx context.Context, req ImageRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("image prompt must not be empty")
	}
	var payload struct {
		ImageURL string `json:"image_url"`
	}
	if err := c.postJSON(ctx, "/v1/images", req, &payload); err != nil {
		return "", err
	}
	return payload.ImageURL, nil
}

// GenerateSceneVideo animates one scene from its illustration and returns
// the provider-hosted URL.
func (c *Client) GenerateSceneVideo(ctx context.Context, req VideoRequest) (string, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return "", errors.New("video request needs a source image url")
	}
	var payload struct {
		VideoURL string `json:"video_url"`
	}
	if err := c.postJSON(ctx, "/v1/videos", req, &payload); err != nil {
		return "", err
	}
	return payload.VideoURL, nil
}

// ComposeVideoPrompt writes a video generation prompt for one scene.
func (c *Client) ComposeVideoPrompt(ctx context.Context, req PromptRequest) (string, error) {
	if strings.TrimSpace(req.SceneText) == "" {
		return "", errors.New("scene text must not be empty")
	}
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := c.postJSON(ctx, "/v1/prompts/video", req, &payload); err != nil {
		return "", err
	}
	return payload.Prompt, nil
}

// GenerateThumbnail renders a cover image for the project.
func (c *Client) GenerateThumbnail(ctx context.Context, req ThumbnailRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" {
		return "", errors.New("thumbnail title must not be empty")
	}
	var payload struct {
		ImageURL string `json:"image_url"`
	}
	if err := c.postJSON(ctx, "/v1/thumbnails", req, &payload); err != nil {
		return "", err
	}
	return payload.ImageURL, nil
}

// FetchAsset downloads a provider-hosted asset. Asset pulls skip the
// generation rate limiter.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	assetURL = strings.TrimSpace(assetURL)
	if assetURL == "" {
		return nil, errors.New("asset url must not be empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("fetch asset (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset fetch returned %d (latency=%v)", resp.StatusCode, latency)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read asset body: %w", err)
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
