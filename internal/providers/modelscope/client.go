// Package modelscope implements the asynchronous image provider. A
// generation is submitted as a task, the task status is polled until it
// reaches a terminal state or the wall-clock budget runs out, and the result
// bytes are downloaded from the URL the final status carries. The caller
// never sees the third-party URL; the relay always streams the bytes itself.
package modelscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	gimage "image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/camerarts/shengtu/internal/domain"
	"github.com/camerarts/shengtu/internal/infra"
	img "github.com/camerarts/shengtu/internal/providers/image"
)

const (
	defaultPollInterval = time.Second
	defaultPollBudget   = 45 * time.Second

	// Conservative margins below the provider's documented byte limits.
	// Budgets are bytes, not runes; truncation must respect rune boundaries.
	promptByteBudget   = 1200
	negativeByteBudget = 600
)

// SleepFunc suspends for d or until the context is done. Injectable so tests
// can simulate the full polling budget without waiting on a real clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures the ModelScope client.
type Options struct {
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	PollBudget   time.Duration
	Now          func() time.Time
	Sleep        SleepFunc
}

// Client performs HTTP calls against the ModelScope inference API.
type Client struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	pollBudget   time.Duration
	now          func() time.Time
	sleep        SleepFunc
}

type submitRequest struct {
	Model          string           `json:"model"`
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt,omitempty"`
	Parameters     submitParameters `json:"parameters"`
}

type submitParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type taskResponse struct {
	TaskStatus   string   `json:"task_status"`
	OutputImages []string `json:"output_images"`
	Message      string   `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-inference.modelscope.cn"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "MusePublic/489_ckpt_FLUX_1"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.Nop()
		logger = &discard
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	budget := opts.PollBudget
	if budget <= 0 {
		budget = defaultPollBudget
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &Client{
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: interval,
		pollBudget:   budget,
		now:          now,
		sleep:        sleep,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate submits a task, polls it to a terminal state and downloads the
// resulting image. There is no backoff between polls; the fixed 1-second
// interval mirrors the task API's expectations. No cancellation is issued
// upstream when the budget runs out, the task simply keeps running remotely.
func (c *Client) Generate(ctx context.Context, apiKey string, req img.GenerateRequest) (*img.Artifact, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.E(domain.KindCredentialMissing, "modelscope API key is not configured")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.E(domain.KindInvalidInput, "prompt is required")
	}
	dims, err := img.Resolve(img.ModelScopeTable, req.AspectRatio, req.Quality)
	if err != nil {
		return nil, err
	}

	taskID, err := c.submit(ctx, apiKey, prompt, req.NegativePrompt, dims)
	if err != nil {
		return nil, err
	}
	resultURL, err := c.await(ctx, apiKey, taskID)
	if err != nil {
		return nil, err
	}
	artifact, err := c.fetch(ctx, resultURL)
	if err != nil {
		return nil, err
	}
	if artifact.Width == 0 || artifact.Height == 0 {
		artifact.Width, artifact.Height = dims.Width, dims.Height
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("task_id", taskID).
		Str("request_id", req.RequestID).
		Int("bytes", len(artifact.Data)).
		Msg("modelscope: generated image")
	return artifact, nil
}

func (c *Client) submit(ctx context.Context, apiKey, prompt, negative string, dims img.Dimensions) (string, error) {
	payload := submitRequest{
		Model:          c.model,
		Prompt:         img.TruncateBytes(prompt, promptByteBudget),
		NegativePrompt: img.TruncateBytes(strings.TrimSpace(negative), negativeByteBudget),
		Parameters:     submitParameters{Width: dims.Width, Height: dims.Height},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("modelscope: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("modelscope: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("X-ModelScope-Async-Mode", "true")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.E(domain.KindUpstreamUnavailable, "could not reach modelscope").WithDetails(err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.E(domain.KindUpstreamUnavailable, "could not read modelscope response").WithDetails(err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.FromProviderStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("modelscope: decode submit response: %w", err)
	}
	taskID := strings.TrimSpace(decoded.TaskID)
	if taskID == "" {
		e := domain.E(domain.KindGenerationFailed, "provider did not return a task id")
		if decoded.Message != "" {
			return "", e.WithDetails(decoded.Message)
		}
		return "", e
	}
	return taskID, nil
}

// await is the poll loop: PENDING/RUNNING keep polling at the fixed interval,
// SUCCEED(ED) must carry at least one output image URL, FAILED propagates the
// provider's message, and exhausting the budget is fatal with no partial
// result. Polling stops immediately once the budget elapses.
func (c *Client) await(ctx context.Context, apiKey, taskID string) (string, error) {
	start := c.now()
	for {
		if c.now().Sub(start) >= c.pollBudget {
			return "", domain.Ef(domain.KindGenerationTimedOut,
				"generation did not finish within %s", c.pollBudget)
		}
		task, err := c.pollOnce(ctx, apiKey, taskID)
		if err != nil {
			return "", err
		}
		switch strings.ToUpper(strings.TrimSpace(task.TaskStatus)) {
		case "SUCCEED", "SUCCEEDED":
			for _, u := range task.OutputImages {
				if u = strings.TrimSpace(u); u != "" {
					return u, nil
				}
			}
			return "", domain.E(domain.KindMissingImageData, "task succeeded without an output image URL")
		case "FAILED":
			e := domain.E(domain.KindGenerationFailed, "image generation failed")
			if task.Message != "" {
				return "", e.WithDetails(task.Message)
			}
			return "", e
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return "", domain.E(domain.KindUpstreamUnavailable, "request aborted while polling").WithDetails(err.Error())
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, apiKey, taskID string) (*taskResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("modelscope: build poll request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("X-ModelScope-Task-Type", "image_generation")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not poll task status").WithDetails(err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not read task status").WithDetails(err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.FromProviderStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("modelscope: decode task status: %w", err)
	}
	return &decoded, nil
}

func (c *Client) fetch(ctx context.Context, resultURL string) (*img.Artifact, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "invalid result image URL").WithDetails(err.Error())
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not fetch generated image").WithDetails(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.Ef(domain.KindUpstreamUnavailable, "result fetch answered status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not read generated image").WithDetails(err.Error())
	}
	if len(data) == 0 {
		return nil, domain.E(domain.KindMissingImageData, "result image is empty")
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	artifact := &img.Artifact{Data: data, MIME: mime}
	if cfg, _, err := gimage.DecodeConfig(bytes.NewReader(data)); err == nil {
		artifact.Width, artifact.Height = cfg.Width, cfg.Height
	}
	return artifact, nil
}

var _ img.Generator = (*Client)(nil)
