package image

import (
	"context"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/camerarts/shengtu/internal/domain"
)

// QualityTier is a coarse resolution class mapped to concrete pixels per
// aspect ratio by the dimension tables.
type QualityTier string

const (
	Quality1K QualityTier = "1K"
	Quality2K QualityTier = "2K"
	Quality4K QualityTier = "4K"
)

// ReferenceImage is an inline conditioning image decoded from the request's
// data URI.
type ReferenceImage struct {
	MIME string
	Data []byte
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Quality        QualityTier
	Reference      *ReferenceImage
	RequestID      string
}

// Artifact represents one generated image, owned by the relay until the
// response body is written.
type Artifact struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers. Credentials
// are per-call because the relay may forward a client-supplied key instead of
// the server-held one.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req GenerateRequest) (*Artifact, error)
}

// ParseDataURI decodes a "data:<mime>;base64,<payload>" string into a
// reference image. Returns INVALID_INPUT for anything else.
func ParseDataURI(s string) (*ReferenceImage, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, domain.E(domain.KindInvalidInput, "reference image must be a data URI")
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, domain.E(domain.KindInvalidInput, "malformed reference image data URI")
	}
	mime, _, _ := strings.Cut(meta, ";")
	if !strings.Contains(meta, ";base64") {
		return nil, domain.E(domain.KindInvalidInput, "reference image data URI must be base64 encoded")
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		return nil, domain.E(domain.KindInvalidInput, "reference image must declare an image MIME type")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.E(domain.KindInvalidInput, "reference image payload is not valid base64")
	}
	if len(data) == 0 {
		return nil, domain.E(domain.KindInvalidInput, "reference image payload is empty")
	}
	return &ReferenceImage{MIME: mime, Data: data}, nil
}

// TruncateBytes trims s to at most budget UTF-8 bytes without splitting a
// multi-byte rune. Providers enforce byte limits, not character limits, so a
// rune-boundary cut keeps the result both within budget and valid UTF-8.
func TruncateBytes(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(s) <= budget {
		return s
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
