package image

import (
	"fmt"

	"github.com/camerarts/shengtu/internal/domain"
)

// Dimensions is the resolved pixel size for an (aspect ratio, quality tier)
// pair.
type Dimensions struct {
	Width  int
	Height int
}

// ErrUnsupportedDimension wraps INVALID_INPUT for pairs absent from a table.
// Callers must either validate membership beforehand or propagate this; no
// call site is allowed to silently fall back to a default.
func errUnsupportedDimension(ratio string, quality QualityTier) error {
	return domain.Ef(domain.KindInvalidInput, "unsupported aspect ratio %q at quality %q", ratio, quality)
}

type dimensionKey struct {
	Ratio   string
	Quality QualityTier
}

// The tables are deliberately literal. Several entries are hand-tuned to the
// providers' model constraints (Gemini sizes are multiples of 8, ModelScope
// sizes multiples of 64, 4K capped at 4096 on the long edge) and must never
// be recomputed from the ratio arithmetic.

var geminiDimensions = map[dimensionKey]Dimensions{
	{"1:1", Quality1K}:   {1024, 1024},
	{"1:1", Quality2K}:   {2048, 2048},
	{"1:1", Quality4K}:   {4096, 4096},
	{"2:3", Quality1K}:   {832, 1248},
	{"2:3", Quality2K}:   {1664, 2496},
	{"2:3", Quality4K}:   {3328, 4992},
	{"3:2", Quality1K}:   {1248, 832},
	{"3:2", Quality2K}:   {2496, 1664},
	{"3:2", Quality4K}:   {4992, 3328},
	{"3:4", Quality1K}:   {864, 1184},
	{"3:4", Quality2K}:   {1728, 2368},
	{"3:4", Quality4K}:   {3456, 4736},
	{"4:3", Quality1K}:   {1184, 864},
	{"4:3", Quality2K}:   {2368, 1728},
	{"4:3", Quality4K}:   {4736, 3456},
	{"4:5", Quality1K}:   {896, 1152},
	{"4:5", Quality2K}:   {1792, 2304},
	{"4:5", Quality4K}:   {3584, 4608},
	{"5:4", Quality1K}:   {1152, 896},
	{"5:4", Quality2K}:   {2304, 1792},
	{"5:4", Quality4K}:   {4608, 3584},
	{"9:16", Quality1K}:  {768, 1344},
	{"9:16", Quality2K}:  {1536, 2688},
	{"9:16", Quality4K}:  {3072, 5376},
	{"16:9", Quality1K}:  {1344, 768},
	{"16:9", Quality2K}:  {2688, 1536},
	{"16:9", Quality4K}:  {5376, 3072},
	{"21:9", Quality1K}:  {1536, 672},
	{"21:9", Quality2K}:  {3072, 1344},
	{"21:9", Quality4K}:  {6144, 2688},
}

var modelScopeDimensions = map[dimensionKey]Dimensions{
	{"1:1", Quality1K}:  {1024, 1024},
	{"1:1", Quality2K}:  {2048, 2048},
	{"1:1", Quality4K}:  {4096, 4096},
	{"4:3", Quality1K}:  {1152, 896},
	{"4:3", Quality2K}:  {2304, 1792},
	{"4:3", Quality4K}:  {4096, 3072},
	{"3:4", Quality1K}:  {896, 1152},
	{"3:4", Quality2K}:  {1792, 2304},
	{"3:4", Quality4K}:  {3072, 4096},
	{"16:9", Quality1K}: {1344, 768},
	{"16:9", Quality2K}: {2688, 1536},
	{"16:9", Quality4K}: {4096, 2304},
	{"9:16", Quality1K}: {768, 1344},
	{"9:16", Quality2K}: {1536, 2688},
	{"9:16", Quality4K}: {2304, 4096},
}

// Table names a provider's dimension table.
type Table int

const (
	GeminiTable Table = iota
	ModelScopeTable
)

func (t Table) entries() map[dimensionKey]Dimensions {
	switch t {
	case GeminiTable:
		return geminiDimensions
	case ModelScopeTable:
		return modelScopeDimensions
	default:
		return nil
	}
}

// String implements fmt.Stringer for log fields.
func (t Table) String() string {
	switch t {
	case GeminiTable:
		return "gemini"
	case ModelScopeTable:
		return "modelscope"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// Resolve looks up the pixel dimensions for a ratio/quality pair in the
// given provider table. Purely functional; fails for absent pairs.
func Resolve(table Table, ratio string, quality QualityTier) (Dimensions, error) {
	dims, ok := table.entries()[dimensionKey{Ratio: ratio, Quality: quality}]
	if !ok {
		return Dimensions{}, errUnsupportedDimension(ratio, quality)
	}
	return dims, nil
}

// Supports reports membership without resolving.
func Supports(table Table, ratio string, quality QualityTier) bool {
	_, ok := table.entries()[dimensionKey{Ratio: ratio, Quality: quality}]
	return ok
}

// AspectRatios lists the ratios a table supports, for validation messages.
func AspectRatios(table Table) []string {
	seen := map[string]struct{}{}
	var out []string
	for key := range table.entries() {
		if _, dup := seen[key.Ratio]; dup {
			continue
		}
		seen[key.Ratio] = struct{}{}
		out = append(out, key.Ratio)
	}
	return out
}
