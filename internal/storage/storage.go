// Package storage persists generated artifacts for shareable URLs. Writes
// are independent and idempotent by construction: every call mints a fresh
// key, no key is ever reused or updated.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Public objects are immutable, so clients may cache them indefinitely.
const cacheControl = "public, max-age=31536000, immutable"

// BlobStore writes an object and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NewKey builds a collision-resistant object key from the creation timestamp
// plus a short random suffix. No coordinating database is involved.
func NewKey(now time.Time, contentType string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("images/%s-%s%s", now.UTC().Format("20060102T150405"), suffix, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// PublicURL joins a configured base URL with an object key, stripping any
// trailing slash from the base first.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
