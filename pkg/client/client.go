// Package client is the orchestrator for the relay: it routes a generation
// to the matching relay path with the matching credential header, receives
// the binary artifact, and exposes grid splitting and uploading as explicit,
// independent follow-up actions. Neither follow-up ever runs automatically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camerarts/shengtu/internal/imgutil"
)

// Provider selects the relay variant to target.
type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderModelScope Provider = "modelscope"
)

// Artifact is the generated image as owned by the client after a successful
// relay call.
type Artifact struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// GenerateParams describes one generation request.
type GenerateParams struct {
	Provider       Provider
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Quality        string
	// ReferenceImageBase64 is a data URI; only the gemini provider accepts
	// one.
	ReferenceImageBase64 string
}

// APIError is the relay's decoded error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relay: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("relay: %s", e.Message)
}

// Options configures the relay client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Settings   *Settings
}

// Client talks to the relay. It never interprets HTTP status codes beyond
// success/failure; failures are always read from the JSON error envelope,
// with a generic fallback when the envelope itself cannot be parsed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	settings   *Settings
}

// New constructs a relay client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The async provider path blocks for up to its polling budget.
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	settings := opts.Settings
	if settings == nil {
		settings = defaultSettings("")
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		settings:   settings,
	}
}

type wireRequest struct {
	Prompt               string `json:"prompt"`
	NegativePrompt       string `json:"negativePrompt,omitempty"`
	AspectRatio          string `json:"aspectRatio"`
	Quality              string `json:"quality"`
	ReferenceImageBase64 string `json:"referenceImageBase64,omitempty"`
}

// Generate calls the relay and returns the binary artifact.
func (c *Client) Generate(ctx context.Context, params GenerateParams) (*Artifact, error) {
	path, header, key := c.route(params.Provider)
	if path == "" {
		return nil, fmt.Errorf("client: unknown provider %q", params.Provider)
	}
	body, err := json.Marshal(wireRequest{
		Prompt:               params.Prompt,
		NegativePrompt:       params.NegativePrompt,
		AspectRatio:          params.AspectRatio,
		Quality:              params.Quality,
		ReferenceImageBase64: params.ReferenceImageBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(header, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read artifact: %w", err)
	}
	width, _ := strconv.Atoi(resp.Header.Get("X-Image-Width"))
	height, _ := strconv.Atoi(resp.Header.Get("X-Image-Height"))
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return &Artifact{Data: data, MIME: mime, Width: width, Height: height}, nil
}

// Upload persists the artifact through the relay's uploader and returns the
// shareable URL. A failure here is non-fatal to the generation flow: the
// artifact stays usable locally, only sharing is degraded.
func (c *Client) Upload(ctx context.Context, artifact *Artifact) (string, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return "", fmt.Errorf("client: nothing to upload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", bytes.NewReader(artifact.Data))
	if err != nil {
		return "", fmt.Errorf("client: build upload request: %w", err)
	}
	contentType := artifact.MIME
	if contentType == "" {
		contentType = "image/png"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}
	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("client: decode upload response: %w", err)
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("client: uploader returned no URL")
	}
	return decoded.URL, nil
}

// SplitGrid slices the artifact into 9 tiles for batch download. Explicit
// follow-up; the caller decides when (and whether) to split.
func (c *Client) SplitGrid(artifact *Artifact) ([][]byte, error) {
	if artifact == nil {
		return nil, fmt.Errorf("client: no artifact to split")
	}
	return imgutil.SplitGrid(artifact.Data)
}

// UploadTiles persists a set of tiles concurrently and returns their URLs in
// tile order. The first failure cancels the remaining uploads.
func (c *Client) UploadTiles(ctx context.Context, tiles [][]byte) ([]string, error) {
	urls := make([]string, len(tiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, tile := range tiles {
		g.Go(func() error {
			url, err := c.Upload(ctx, &Artifact{Data: tile, MIME: "image/png"})
			if err != nil {
				return fmt.Errorf("tile %d: %w", i, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) route(provider Provider) (path, header, key string) {
	switch provider {
	case ProviderGemini:
		return "/api/generate/gemini", "x-goog-api-key", c.settings.GeminiAPIKey
	case ProviderModelScope:
		return "/api/generate/modelscope", "x-modelscope-key", c.settings.ModelScopeAPIKey
	default:
		return "", "", ""
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("generation failed with status %d", resp.StatusCode),
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
		return apiErr
	}
	apiErr.Code = envelope.Error.Code
	apiErr.Message = envelope.Error.Message
	apiErr.Details = envelope.Error.Details
	return apiErr
}
