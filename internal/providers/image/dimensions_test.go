package image

import "testing"

func TestResolveGoldenPairs(t *testing.T) {
	cases := []struct {
		table   Table
		ratio   string
		quality QualityTier
		want    Dimensions
	}{
		{GeminiTable, "1:1", Quality1K, Dimensions{1024, 1024}},
		{GeminiTable, "16:9", Quality1K, Dimensions{1344, 768}},
		{GeminiTable, "9:16", Quality2K, Dimensions{1536, 2688}},
		{GeminiTable, "21:9", Quality4K, Dimensions{6144, 2688}},
		{GeminiTable, "4:5", Quality1K, Dimensions{896, 1152}},
		{ModelScopeTable, "1:1", Quality1K, Dimensions{1024, 1024}},
		{ModelScopeTable, "16:9", Quality4K, Dimensions{4096, 2304}},
		{ModelScopeTable, "3:4", Quality2K, Dimensions{1792, 2304}},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.table, tc.ratio, tc.quality)
		if err != nil {
			t.Fatalf("Resolve(%v, %s, %s): %v", tc.table, tc.ratio, tc.quality, err)
		}
		if got != tc.want {
			t.Fatalf("Resolve(%v, %s, %s) = %dx%d, want %dx%d",
				tc.table, tc.ratio, tc.quality, got.Width, got.Height, tc.want.Width, tc.want.Height)
		}
	}
}

func TestResolveNeverReturnsDegenerateDimensions(t *testing.T) {
	for _, table := range []Table{GeminiTable, ModelScopeTable} {
		for key, dims := range table.entries() {
			if dims.Width <= 0 || dims.Height <= 0 {
				t.Fatalf("%v table entry %v has degenerate dimensions %dx%d", table, key, dims.Width, dims.Height)
			}
		}
	}
}

func TestResolveTableGranularity(t *testing.T) {
	for key, dims := range geminiDimensions {
		if dims.Width%8 != 0 || dims.Height%8 != 0 {
			t.Fatalf("gemini entry %v not a multiple of 8: %dx%d", key, dims.Width, dims.Height)
		}
	}
	for key, dims := range modelScopeDimensions {
		if dims.Width%64 != 0 || dims.Height%64 != 0 {
			t.Fatalf("modelscope entry %v not a multiple of 64: %dx%d", key, dims.Width, dims.Height)
		}
	}
}

func TestResolveUnsupportedPair(t *testing.T) {
	if _, err := Resolve(ModelScopeTable, "21:9", Quality1K); err == nil {
		t.Fatal("expected error for ratio missing from the modelscope table")
	}
	if _, err := Resolve(GeminiTable, "1:1", QualityTier("8K")); err == nil {
		t.Fatal("expected error for unknown quality tier")
	}
	if Supports(ModelScopeTable, "2:3", Quality1K) {
		t.Fatal("modelscope table should not claim 2:3 support")
	}
}

func TestModelScopeSupportsFiveRatios(t *testing.T) {
	ratios := AspectRatios(ModelScopeTable)
	if len(ratios) != 5 {
		t.Fatalf("modelscope ratio count = %d, want 5 (%v)", len(ratios), ratios)
	}
	if got := len(AspectRatios(GeminiTable)); got != 10 {
		t.Fatalf("gemini ratio count = %d, want 10", got)
	}
}
