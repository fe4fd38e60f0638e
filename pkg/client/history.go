package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/camerarts/shengtu/internal/imgutil"
)

// History entries persist under a small local-state budget, so thumbnails
// are aggressively downscaled and recompressed.
const (
	thumbnailMaxEdge = 256
	thumbnailQuality = 70
)

// HistoryEntry is the record handed to the history list. Retention and
// eviction of the list itself belong to the list's owner; this package only
// supplies well-formed entries with a budget-friendly thumbnail.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt,omitempty"`
	AspectRatio    string    `json:"aspectRatio"`
	Quality        string    `json:"quality"`
	Provider       Provider  `json:"provider"`
	Thumbnail      []byte    `json:"thumbnail"`
	RemoteURL      string    `json:"remoteUrl,omitempty"`
}

// NewHistoryEntry derives a history record from a finished generation.
// remoteURL may be empty when the artifact was never uploaded.
func NewHistoryEntry(params GenerateParams, artifact *Artifact, remoteURL string) (*HistoryEntry, error) {
	thumbnail, err := imgutil.Thumbnail(artifact.Data, thumbnailMaxEdge, thumbnailQuality)
	if err != nil {
		return nil, err
	}
	return &HistoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		AspectRatio:    params.AspectRatio,
		Quality:        params.Quality,
		Provider:       params.Provider,
		Thumbnail:      thumbnail,
		RemoteURL:      remoteURL,
	}, nil
}
