package imageproc

import (
	"fmt"
	"strconv"
)

const (
	// DefaultReferenceWidth scales overlays when no target size is requested.
	DefaultReferenceWidth = 1920
	// MinLogoWidth keeps overlays from collapsing to nothing.
	MinLogoWidth = 10

	// SharpenArgs is the fixed unsharp mask applied to every output.
	SharpenArgs = "0x0.75+0.75+0.008"

	safeZoneOffset = "+0+250"
	cornerOffset   = "+50+50"
)

type ResizeMode int

const (
	ResizeNone ResizeMode = iota
	// ResizeShrink fits inside the box and never enlarges.
	ResizeShrink
	// ResizeCover fills the box; the excess is cropped by an extent.
	ResizeCover
)

func (m ResizeMode) String() string {
	switch m {
	case ResizeShrink:
		return "shrink"
	case ResizeCover:
		return "cover"
	default:
		return "none"
	}
}

// ResizeGeometry is the planned resize for a request.
type ResizeGeometry struct {
	Size int
	Mode ResizeMode
}

// PlanResize picks the resize mode for a target size. A size of zero means
// the output keeps the source dimensions.
func PlanResize(size int, square bool) ResizeGeometry {
	switch {
	case size <= 0:
		return ResizeGeometry{Mode: ResizeNone}
	case square:
		return ResizeGeometry{Size: size, Mode: ResizeCover}
	default:
		return ResizeGeometry{Size: size, Mode: ResizeShrink}
	}
}

// Geometry renders the ImageMagick geometry string; '>' only shrinks, '^'
// fills the box.
func (g ResizeGeometry) Geometry() string {
	switch g.Mode {
	case ResizeShrink:
		return fmt.Sprintf("%dx%d>", g.Size, g.Size)
	case ResizeCover:
		return fmt.Sprintf("%dx%d^", g.Size, g.Size)
	default:
		return ""
	}
}

// Extent is the crop box for cover resizes, empty otherwise.
func (g ResizeGeometry) Extent() string {
	if g.Mode != ResizeCover {
		return ""
	}
	return fmt.Sprintf("%dx%d", g.Size, g.Size)
}

type Gravity string

const (
	GravityCenter    Gravity = "center"
	GravitySouth     Gravity = "South"
	GravitySouthEast Gravity = "SouthEast"
)

// OverlayOptions are the caller's overlay settings.
type OverlayOptions struct {
	ScalePercent   int
	SafeZone       bool
	OpacityPercent int
}

// OverlayGeometry is the resolved placement of a logo overlay.
type OverlayGeometry struct {
	LogoWidth int
	Gravity   Gravity
	Offset    string
	// Opacity is the alpha multiplier; only meaningful when AdjustAlpha is set.
	Opacity     float64
	AdjustAlpha bool
}

// PlanOverlay resolves overlay geometry against the target size, or against
// DefaultReferenceWidth when the output keeps its original size.
func PlanOverlay(size int, opts OverlayOptions) OverlayGeometry {
	reference := DefaultReferenceWidth
	if size > 0 {
		reference = size
	}

	scale := clamp(opts.ScalePercent, 0, 100)
	logoWidth := int(float64(reference) * (float64(scale) / 100))
	if logoWidth < MinLogoWidth {
		logoWidth = MinLogoWidth
	}

	g := OverlayGeometry{
		LogoWidth: logoWidth,
		Gravity:   GravitySouthEast,
		Offset:    cornerOffset,
	}
	// The safe zone keeps the logo clear of caption areas at the bottom edge.
	if opts.SafeZone {
		g.Gravity = GravitySouth
		g.Offset = safeZoneOffset
	}

	if opts.OpacityPercent < 100 {
		g.AdjustAlpha = true
		g.Opacity = float64(clamp(opts.OpacityPercent, 0, 100)) / 100.0
	}
	return g
}

// OpacityArg formats the multiplier the way the engine expects it.
func (g OverlayGeometry) OpacityArg() string {
	return strconv.FormatFloat(g.Opacity, 'f', -1, 64)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
