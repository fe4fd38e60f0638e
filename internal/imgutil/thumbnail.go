package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Thumbnail downscales the image so its longest edge is at most maxEdge
// pixels and re-encodes it as JPEG at the given quality. History entries
// persist under a small local-storage budget, so the output trades fidelity
// for size. Images already within maxEdge are re-encoded without scaling.
func Thumbnail(data []byte, maxEdge, quality int) ([]byte, error) {
	if maxEdge <= 0 {
		return nil, fmt.Errorf("imgutil: thumbnail edge must be positive, got %d", maxEdge)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = h * maxEdge / w
			w = maxEdge
		} else {
			w = w * maxEdge / h
			h = maxEdge
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Src, nil)
		src = scaled
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imgutil: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
