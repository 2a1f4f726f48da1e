package imageproc

import (
	"fmt"
	"strconv"
)

// Operation names, in the order they can appear in a plan.
const (
	OpOrient     = "orient"
	OpColorspace = "colorspace"
	OpStrip      = "strip"
	OpResize     = "resize"
	OpExtent     = "extent"
	OpOverlay    = "overlay"
	OpSharpen    = "sharpen"
	OpEncode     = "encode"
)

// Operation is one step of a plan with its engine arguments.
type Operation struct {
	Name string
	Args []string
}

// Plan is the full, ordered engine invocation for one request.
type Plan struct {
	InputPath   string
	OutputPath  string
	ThreadLimit int
	Operations  []Operation

	Resize  ResizeGeometry
	Overlay *OverlayGeometry
}

// Spec is everything a plan is built from.
type Spec struct {
	InputPath   string
	OutputPath  string
	OverlayPath string // empty when there is no overlay to composite
	ThreadLimit int

	Format    string
	Size      int
	Square    bool
	StripEXIF bool
	Overlay   OverlayOptions
	Encoder   EncoderOptions
}

// BuildPlan turns a spec into an ordered plan. It never touches the
// filesystem or the engine.
func BuildPlan(spec Spec) (*Plan, error) {
	encode, err := EncoderDirectives(spec.Format, spec.Encoder)
	if err != nil {
		return nil, err
	}

	threads := spec.ThreadLimit
	if threads < 1 {
		threads = 1
	}

	p := &Plan{
		InputPath:   spec.InputPath,
		OutputPath:  spec.OutputPath,
		ThreadLimit: threads,
		Resize:      PlanResize(spec.Size, spec.Square),
	}

	p.add(OpOrient, "-auto-orient")
	p.add(OpColorspace, "-colorspace", "sRGB")

	if spec.StripEXIF {
		p.add(OpStrip, "-strip")
	}

	switch p.Resize.Mode {
	case ResizeShrink:
		p.add(OpResize, "-filter", "Lanczos", "-resize", p.Resize.Geometry())
	case ResizeCover:
		p.add(OpResize, "-filter", "Lanczos", "-resize", p.Resize.Geometry())
		p.add(OpExtent, "-gravity", string(GravityCenter), "-extent", p.Resize.Extent())
	}

	if spec.OverlayPath != "" {
		g := PlanOverlay(spec.Size, spec.Overlay)
		p.Overlay = &g

		args := []string{"(", spec.OverlayPath, "-resize", fmt.Sprintf("%dx", g.LogoWidth)}
		if g.AdjustAlpha {
			args = append(args, "-channel", "A", "-evaluate", "multiply", g.OpacityArg())
		}
		args = append(args, ")",
			"-gravity", string(g.Gravity),
			"-geometry", g.Offset,
			"-composite",
		)
		p.add(OpOverlay, args...)
	}

	p.add(OpSharpen, "-unsharp", SharpenArgs)

	if len(encode) > 0 {
		p.add(OpEncode, encode...)
	}

	return p, nil
}

func (p *Plan) add(name string, args ...string) {
	p.Operations = append(p.Operations, Operation{Name: name, Args: args})
}

// Has reports whether the plan contains an operation.
func (p *Plan) Has(name string) bool {
	_, ok := p.Find(name)
	return ok
}

// Find returns the first operation with the given name.
func (p *Plan) Find(name string) (Operation, bool) {
	for _, op := range p.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Args renders the engine argument list, without the binary name.
func (p *Plan) Args() []string {
	args := []string{p.InputPath, "-limit", "thread", strconv.Itoa(p.ThreadLimit)}
	for _, op := range p.Operations {
		args = append(args, op.Args...)
	}
	return append(args, p.OutputPath)
}
