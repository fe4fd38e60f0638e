package modelscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	gimage "image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/camerarts/shengtu/internal/domain"
	img "github.com/camerarts/shengtu/internal/providers/image"
)

// fakeClock advances only when the client sleeps, so the 45-second budget can
// be simulated instantly.
type fakeClock struct {
	t         time.Time
	pollTimes []time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

type scriptedTransport struct {
	clock       *fakeClock
	submitBody  []byte
	pollBodies  [][]byte
	pollStatus  int
	resultBytes []byte
	polls       int
	submits     int
	fetches     int
	lastSubmit  []byte
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reply := func(status int, body []byte, contentType string) *http.Response {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header:     http.Header{"Content-Type": []string{contentType}},
		}
	}
	switch {
	case strings.HasSuffix(req.URL.Path, "/v1/images/generations"):
		t.submits++
		if req.Body != nil {
			t.lastSubmit, _ = io.ReadAll(req.Body)
		}
		return reply(http.StatusOK, t.submitBody, "application/json"), nil
	case strings.Contains(req.URL.Path, "/v1/tasks/"):
		if t.clock != nil {
			t.clock.pollTimes = append(t.clock.pollTimes, t.clock.t)
		}
		status := t.pollStatus
		if status == 0 {
			status = http.StatusOK
		}
		idx := t.polls
		if idx >= len(t.pollBodies) {
			idx = len(t.pollBodies) - 1
		}
		t.polls++
		return reply(status, t.pollBodies[idx], "application/json"), nil
	default:
		t.fetches++
		return reply(http.StatusOK, t.resultBytes, "image/png"), nil
	}
}

func pollBody(t *testing.T, status string, urls ...string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"task_status": status, "output_images": urls})
	if err != nil {
		t.Fatalf("marshal poll body: %v", err)
	}
	return body
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gimage.NewRGBA(gimage.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestClient(transport *scriptedTransport, clock *fakeClock) *Client {
	return NewClient(Options{
		HTTPClient: &http.Client{Transport: transport},
		Now:        clock.now,
		Sleep:      clock.sleep,
	})
}

func TestGeneratePollsUntilSucceeded(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"task_id":"task-1"}`),
		pollBodies: [][]byte{
			pollBody(t, "PENDING"),
			pollBody(t, "PENDING"),
			pollBody(t, "SUCCEEDED", "https://cdn.example.com/out.png"),
		},
		resultBytes: testPNG(t, 768, 1344),
	}
	client := newTestClient(transport, clock)

	artifact, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt:      "a lighthouse in fog",
		AspectRatio: "9:16",
		Quality:     img.Quality1K,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if transport.polls != 3 {
		t.Fatalf("polls = %d, want 3", transport.polls)
	}
	for i := 1; i < len(clock.pollTimes); i++ {
		if spacing := clock.pollTimes[i].Sub(clock.pollTimes[i-1]); spacing < time.Second {
			t.Fatalf("poll spacing %d = %s, want >= 1s", i, spacing)
		}
	}
	if transport.fetches != 1 {
		t.Fatalf("fetches = %d, want 1", transport.fetches)
	}
	if artifact.Width != 768 || artifact.Height != 1344 {
		t.Fatalf("dimensions = %dx%d, want 768x1344 (decoded)", artifact.Width, artifact.Height)
	}
	if artifact.MIME != "image/png" {
		t.Fatalf("mime = %q", artifact.MIME)
	}
}

func TestGenerateTimesOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"task_id":"task-1"}`),
		pollBodies: [][]byte{pollBody(t, "PENDING")},
	}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "never finishes", AspectRatio: "1:1", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindGenerationTimedOut {
		t.Fatalf("err = %v, want GENERATION_TIMED_OUT", err)
	}
	// 45s budget at 1s interval: polls at t=0s..44s, none once the budget
	// has elapsed.
	if transport.polls != 45 {
		t.Fatalf("polls = %d, want 45", transport.polls)
	}
	if last := clock.pollTimes[len(clock.pollTimes)-1]; last.Sub(time.Unix(0, 0)) >= defaultPollBudget {
		t.Fatalf("poll issued at %s, after the budget elapsed", last.Sub(time.Unix(0, 0)))
	}
	if transport.fetches != 0 {
		t.Fatalf("no result fetch expected on timeout, got %d", transport.fetches)
	}
}

func TestGenerateSubmitPayload(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:       clock,
		submitBody:  []byte(`{"task_id":"task-1"}`),
		pollBodies:  [][]byte{pollBody(t, "SUCCEED", "https://cdn.example.com/out.png")},
		resultBytes: testPNG(t, 4, 4),
	}
	client := newTestClient(transport, clock)

	longPrompt := strings.Repeat("塔", 600) // 1800 bytes, over the 1200 budget
	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt:         longPrompt,
		NegativePrompt: strings.Repeat("n", 700),
		AspectRatio:    "16:9",
		Quality:        img.Quality2K,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var payload struct {
		Model          string `json:"model"`
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt"`
		Parameters     struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(transport.lastSubmit, &payload); err != nil {
		t.Fatalf("decode submit payload: %v", err)
	}
	if len(payload.Prompt) > promptByteBudget {
		t.Fatalf("prompt = %d bytes, budget %d", len(payload.Prompt), promptByteBudget)
	}
	if len(payload.Prompt) != 1200 {
		t.Fatalf("prompt = %d bytes, want the full 1200 (3-byte runes divide evenly)", len(payload.Prompt))
	}
	if len(payload.NegativePrompt) != negativeByteBudget {
		t.Fatalf("negative prompt = %d bytes, want %d", len(payload.NegativePrompt), negativeByteBudget)
	}
	if payload.Parameters.Width != 2688 || payload.Parameters.Height != 1536 {
		t.Fatalf("parameters = %dx%d, want 2688x1536", payload.Parameters.Width, payload.Parameters.Height)
	}
	if payload.Model == "" {
		t.Fatal("model missing from submit payload")
	}
}

func TestGenerateTaskFailed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	body, _ := json.Marshal(map[string]any{"task_status": "FAILED", "message": "contentFilter rejected"})
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"task_id":"task-1"}`),
		pollBodies: [][]byte{body},
	}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "x", AspectRatio: "1:1", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindGenerationFailed {
		t.Fatalf("err = %v, want GENERATION_FAILED", err)
	}
	if !strings.Contains(de.Details, "contentFilter") {
		t.Fatalf("provider detail not preserved: %q", de.Details)
	}
}

func TestGenerateSucceededWithoutURL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"task_id":"task-1"}`),
		pollBodies: [][]byte{pollBody(t, "SUCCEEDED")},
	}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "x", AspectRatio: "1:1", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindMissingImageData {
		t.Fatalf("err = %v, want MISSING_IMAGE_DATA", err)
	}
}

func TestGenerateSubmitWithoutTaskID(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"message":"model is warming up"}`),
	}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "x", AspectRatio: "1:1", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindGenerationFailed {
		t.Fatalf("err = %v, want GENERATION_FAILED", err)
	}
	if transport.polls != 0 {
		t.Fatalf("no polls expected after failed submission, got %d", transport.polls)
	}
}

func TestGeneratePollError(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{
		clock:      clock,
		submitBody: []byte(`{"task_id":"task-1"}`),
		pollBodies: [][]byte{[]byte(`{"error":"boom"}`)},
		pollStatus: http.StatusInternalServerError,
	}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "x", AspectRatio: "1:1", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindUpstreamUnavailable {
		t.Fatalf("err = %v, want UPSTREAM_UNAVAILABLE", err)
	}
	if transport.polls != 1 {
		t.Fatalf("polling must stop on a non-success status, polls = %d", transport.polls)
	}
}

func TestGenerateUnsupportedRatio(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	transport := &scriptedTransport{clock: clock}
	client := newTestClient(transport, clock)

	_, err := client.Generate(context.Background(), "key", img.GenerateRequest{
		Prompt: "x", AspectRatio: "21:9", Quality: img.Quality1K,
	})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindInvalidInput {
		t.Fatalf("err = %v, want INVALID_INPUT for a ratio outside the 5-ratio table", err)
	}
	if transport.submits != 0 {
		t.Fatalf("no submission expected, got %d", transport.submits)
	}
}
