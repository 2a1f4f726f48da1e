package imageproc

import (
	"testing"
)

func TestPlanResize(t *testing.T) {
	tests := []struct {
		size     int
		square   bool
		mode     ResizeMode
		geometry string
		extent   string
	}{
		{0, false, ResizeNone, "", ""},
		{0, true, ResizeNone, "", ""},
		{800, false, ResizeShrink, "800x800>", ""},
		{1024, true, ResizeCover, "1024x1024^", "1024x1024"},
	}

	for _, test := range tests {
		g := PlanResize(test.size, test.square)
		if g.Mode != test.mode {
			t.Errorf("PlanResize(%d, %v).Mode = %s, expected %s", test.size, test.square, g.Mode, test.mode)
		}
		if g.Geometry() != test.geometry {
			t.Errorf("PlanResize(%d, %v).Geometry() = %q, expected %q", test.size, test.square, g.Geometry(), test.geometry)
		}
		if g.Extent() != test.extent {
			t.Errorf("PlanResize(%d, %v).Extent() = %q, expected %q", test.size, test.square, g.Extent(), test.extent)
		}
	}
}

func TestShrinkResizeNeverEnlarges(t *testing.T) {
	for _, size := range []int{1, 10, 640, 800, 4096, 20000} {
		g := PlanResize(size, false)
		geometry := g.Geometry()
		if geometry[len(geometry)-1] != '>' {
			t.Errorf("non-square resize for %d must carry the shrink-only flag, got %s", size, geometry)
		}
	}
}

func TestPlanOverlayLogoWidth(t *testing.T) {
	tests := []struct {
		size     int
		scale    int
		expected int
	}{
		{0, 15, 288},     // 1920 * 15%
		{1024, 15, 153},  // floor(153.6)
		{800, 50, 400},
		{100, 1, MinLogoWidth},
		{0, 0, MinLogoWidth},
		{20, 40, MinLogoWidth},
		{500, 250, 500}, // scale clamped to 100%
	}

	for _, test := range tests {
		g := PlanOverlay(test.size, OverlayOptions{ScalePercent: test.scale, OpacityPercent: 100})
		if g.LogoWidth != test.expected {
			t.Errorf("PlanOverlay(size=%d, scale=%d).LogoWidth = %d, expected %d", test.size, test.scale, g.LogoWidth, test.expected)
		}
	}
}

func TestPlanOverlayLogoWidthFloor(t *testing.T) {
	for size := 0; size <= 200; size += 7 {
		for scale := -5; scale <= 30; scale++ {
			if w := PlanOverlay(size, OverlayOptions{ScalePercent: scale}).LogoWidth; w < MinLogoWidth {
				t.Fatalf("logo width %d below floor for size=%d scale=%d", w, size, scale)
			}
		}
	}
}

func TestPlanOverlayPlacement(t *testing.T) {
	safe := PlanOverlay(1024, OverlayOptions{ScalePercent: 15, SafeZone: true, OpacityPercent: 100})
	if safe.Gravity != GravitySouth || safe.Offset != "+0+250" {
		t.Errorf("safe zone placement = %s %s, expected South +0+250", safe.Gravity, safe.Offset)
	}

	corner := PlanOverlay(1024, OverlayOptions{ScalePercent: 15, SafeZone: false, OpacityPercent: 100})
	if corner.Gravity != GravitySouthEast || corner.Offset != "+50+50" {
		t.Errorf("corner placement = %s %s, expected SouthEast +50+50", corner.Gravity, corner.Offset)
	}
}

func TestPlanOverlayOpacity(t *testing.T) {
	for _, opacity := range []int{100, 101, 150, 1000} {
		g := PlanOverlay(800, OverlayOptions{ScalePercent: 15, OpacityPercent: opacity})
		if g.AdjustAlpha {
			t.Errorf("opacity %d should not adjust alpha", opacity)
		}
	}

	for opacity := 0; opacity < 100; opacity++ {
		g := PlanOverlay(800, OverlayOptions{ScalePercent: 15, OpacityPercent: opacity})
		if !g.AdjustAlpha {
			t.Fatalf("opacity %d should adjust alpha", opacity)
		}
		if g.Opacity != float64(opacity)/100.0 {
			t.Fatalf("opacity %d produced factor %v, expected %v", opacity, g.Opacity, float64(opacity)/100.0)
		}
	}

	g := PlanOverlay(800, OverlayOptions{OpacityPercent: 35})
	if g.OpacityArg() != "0.35" {
		t.Errorf("OpacityArg() = %s, expected 0.35", g.OpacityArg())
	}
}
