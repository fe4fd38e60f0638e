// Package imgutil holds the client-side image transforms: the 3x3 grid
// splitter and the history thumbnail downscaler.
package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrDecode reports that the source bytes could not be decoded as an image.
var ErrDecode = errors.New("imgutil: source bytes are not a decodable image")

const gridSize = 3

// Grid slices one decoded source image into a 3x3 set of tiles. Tiles are
// independently regenerable from the same source; the only shared state is a
// single reusable drawing surface that is fully cleared between draws so a
// smaller final tile cannot bleed pixels from the previous one.
//
// Tile sizes use integer division of the source dimensions; the last column
// and row absorb the remainder, so tile widths sum to the source width across
// each row and heights sum to the source height down each column.
type Grid struct {
	src     image.Image
	tileW   int
	tileH   int
	scratch *image.RGBA
}

// NewGrid decodes the source bytes and prepares the splitter.
func NewGrid(data []byte) (*Grid, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := src.Bounds()
	tileW := bounds.Dx() / gridSize
	tileH := bounds.Dy() / gridSize
	if tileW == 0 || tileH == 0 {
		return nil, fmt.Errorf("%w: image %dx%d too small for a %dx%d grid",
			ErrDecode, bounds.Dx(), bounds.Dy(), gridSize, gridSize)
	}
	// The remainder lands on the last row/column, so the scratch surface is
	// sized for the largest possible tile.
	maxW := bounds.Dx() - 2*tileW
	maxH := bounds.Dy() - 2*tileH
	return &Grid{
		src:     src,
		tileW:   tileW,
		tileH:   tileH,
		scratch: image.NewRGBA(image.Rect(0, 0, maxW, maxH)),
	}, nil
}

// Bounds returns the size of the decoded source image.
func (g *Grid) Bounds() (width, height int) {
	return g.src.Bounds().Dx(), g.src.Bounds().Dy()
}

// TileRect returns the source rectangle of a tile, relative to the source
// image's own bounds.
func (g *Grid) TileRect(row, col int) image.Rectangle {
	bounds := g.src.Bounds()
	x0 := bounds.Min.X + col*g.tileW
	y0 := bounds.Min.Y + row*g.tileH
	x1 := x0 + g.tileW
	y1 := y0 + g.tileH
	if col == gridSize-1 {
		x1 = bounds.Max.X
	}
	if row == gridSize-1 {
		y1 = bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

// Tile renders one tile as PNG bytes. Calling it again for the same position
// produces byte-identical output.
func (g *Grid) Tile(row, col int) ([]byte, error) {
	if row < 0 || row >= gridSize || col < 0 || col >= gridSize {
		return nil, fmt.Errorf("imgutil: tile position %d,%d outside %dx%d grid", row, col, gridSize, gridSize)
	}
	// Clear the whole reusable surface, not just the region this tile needs.
	clear(g.scratch.Pix)
	srcRect := g.TileRect(row, col)
	dstRect := image.Rect(0, 0, srcRect.Dx(), srcRect.Dy())
	draw.Draw(g.scratch, dstRect, g.src, srcRect.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, g.scratch.SubImage(dstRect)); err != nil {
		return nil, fmt.Errorf("imgutil: encode tile %d,%d: %w", row, col, err)
	}
	return buf.Bytes(), nil
}

// SplitGrid slices the source into 9 tiles in row-major order.
func SplitGrid(data []byte) ([][]byte, error) {
	grid, err := NewGrid(data)
	if err != nil {
		return nil, err
	}
	tiles := make([][]byte, 0, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			tile, err := grid.Tile(row, col)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, tile)
		}
	}
	return tiles, nil
}
