// Package gemini implements the synchronous image provider. One POST to
// generateContent returns the image inline in the response body; there is no
// job lifecycle to track.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/camerarts/shengtu/internal/domain"
	"github.com/camerarts/shengtu/internal/infra"
	img "github.com/camerarts/shengtu/internal/providers/image"
)

// Options configures the Gemini client.
type Options struct {
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Gemini generateContent API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	SafetySettings   []safetySetting   `json:"safetySettings"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// The safety thresholds are fixed: image generation already runs behind the
// provider's own filter, and the relay only relaxes the categories the
// upstream default blocks too aggressively for product imagery.
var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-3-pro-image-preview"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.Nop()
		logger = &discard
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate invokes generateContent once and returns the first inline image
// from the response. The provider has no native negative-prompt field, so a
// non-empty negative prompt is folded into the text part with a textual
// marker; this is a documented lossy approximation.
func (c *Client) Generate(ctx context.Context, apiKey string, req img.GenerateRequest) (*img.Artifact, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.E(domain.KindCredentialMissing, "gemini API key is not configured")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.E(domain.KindInvalidInput, "prompt is required")
	}
	dims, err := img.Resolve(img.GeminiTable, req.AspectRatio, req.Quality)
	if err != nil {
		return nil, err
	}

	parts := []part{{Text: combinedPrompt(prompt, req.NegativePrompt)}}
	if ref := req.Reference; ref != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: ref.MIME,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	payload := generateContentRequest{
		Contents:       []content{{Role: "user", Parts: parts}},
		SafetySettings: defaultSafetySettings,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: req.AspectRatio,
				ImageSize:   string(req.Quality),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not reach gemini").WithDetails(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "could not read gemini response").WithDetails(err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.FromProviderStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	artifact, err := firstInlineImage(decoded)
	if err != nil {
		return nil, err
	}
	artifact.Width = dims.Width
	artifact.Height = dims.Height
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Int("bytes", len(artifact.Data)).
		Msg("gemini: generated image")
	return artifact, nil
}

func combinedPrompt(prompt, negative string) string {
	negative = strings.TrimSpace(negative)
	if negative == "" {
		return prompt
	}
	return prompt + "\n\nDo not include: " + negative
}

// firstInlineImage scans the heterogeneous response parts for inline image
// data. The provider can answer 200 with text-only parts (e.g. a safety
// refusal), so an absent image part is an explicit failure, with whatever
// text the model returned attached as detail.
func firstInlineImage(resp generateContentResponse) (*img.Artifact, error) {
	var refusal string
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil {
				if refusal == "" {
					refusal = strings.TrimSpace(p.Text)
				}
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, domain.E(domain.KindMissingImageData, "inline image payload is not valid base64")
			}
			if len(data) == 0 {
				continue
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &img.Artifact{Data: data, MIME: mime}, nil
		}
	}
	e := domain.E(domain.KindMissingImageData, "provider returned no image data")
	if resp.PromptFeedback.BlockReason != "" {
		return nil, e.WithDetails("blocked: " + resp.PromptFeedback.BlockReason)
	}
	if refusal != "" {
		return nil, e.WithDetails(refusal)
	}
	return nil, e
}

var _ img.Generator = (*Client)(nil)
